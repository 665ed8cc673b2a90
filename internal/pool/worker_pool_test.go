package pool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	p := NewWorkerPool(4, 16, nil)
	p.Start()

	var done atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		p.Submit(func() {
			defer wg.Done()
			done.Add(1)
		})
	}
	wg.Wait()
	p.Stop()

	assert.Equal(t, int64(16), done.Load())
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	p := NewWorkerPool(1, 4, nil)
	p.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	p.Submit(func() {
		defer wg.Done()
		panic("boom")
	})

	var ran atomic.Bool
	p.Submit(func() {
		defer wg.Done()
		ran.Store(true)
	})

	wg.Wait()
	p.Stop()
	assert.True(t, ran.Load())
}

func TestWorkerPool_MinWorkers(t *testing.T) {
	p := NewWorkerPool(0, 1, nil)
	p.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func() { wg.Done() })
	wg.Wait()
	p.Stop()
}
