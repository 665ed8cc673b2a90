package cache

import (
	"sync"
	"time"
)

// LocalCache 本地内存缓存。
// 会话接口按 cookie 反查用户，用它吸收热点读取；
// 写路径很少，条目靠 TTL 过期而不做主动失效。
type LocalCache[V any] struct {
	data sync.Map
	ttl  time.Duration
}

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存并启动定期清理
func NewLocalCache[V any](ttl time.Duration) *LocalCache[V] {
	c := &LocalCache[V]{ttl: ttl}
	go c.cleanupLoop()
	return c
}

// Get 获取缓存值，过期条目视为未命中
func (c *LocalCache[V]) Get(key string) (V, bool) {
	var zero V

	val, ok := c.data.Load(key)
	if !ok {
		return zero, false
	}

	entry := val.(*cacheEntry[V])
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		return zero, false
	}

	return entry.value, true
}

// Set 写入缓存值
func (c *LocalCache[V]) Set(key string, value V) {
	c.data.Store(key, &cacheEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete 删除缓存值
func (c *LocalCache[V]) Delete(key string) {
	c.data.Delete(key)
}

// cleanupLoop 定期清理过期条目
func (c *LocalCache[V]) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.data.Range(func(key, value interface{}) bool {
			entry := value.(*cacheEntry[V])
			if now.After(entry.expiresAt) {
				c.data.Delete(key)
			}
			return true
		})
	}
}
