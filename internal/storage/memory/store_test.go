package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/storage"
)

// provisionInput 构造一份完整的开通输入
func provisionInput(username, inviteCode string) *storage.ProvisionInput {
	now := time.Now()
	userID := "user-" + username
	mailboxID := "mailbox-" + username
	aliasAddr := username + "@emailthing.xyz"

	return &storage.ProvisionInput{
		User: &domain.User{
			ID:           userID,
			Username:     username,
			Email:        aliasAddr,
			PasswordHash: "hash",
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		Mailbox: &domain.Mailbox{ID: mailboxID, CreatedAt: now},
		Link: &domain.MailboxForUser{
			MailboxID: mailboxID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		},
		Alias: &domain.MailboxAlias{
			ID:        "alias-" + username,
			MailboxID: mailboxID,
			Alias:     aliasAddr,
			Default:   true,
			Name:      username,
			CreatedAt: now,
		},
		InviteCode: inviteCode,
		Welcome: &domain.OutboxEmail{
			ID:        "outbox-" + username,
			UserID:    userID,
			MailboxID: mailboxID,
			Recipient: aliasAddr,
			Subject:   "Welcome to EmailThing!",
			Raw:       []byte("raw"),
			Status:    domain.OutboxPending,
			CreatedAt: now,
		},
	}
}

func seedInvite(store *Store, code string) {
	store.SeedInviteCode(&domain.InviteCode{
		Code:      code,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})
}

func TestProvisionAccount(t *testing.T) {
	store := NewStore()
	seedInvite(store, "invite01")

	err := store.ProvisionAccount(provisionInput("alice", "invite01"))
	require.NoError(t, err)

	user, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "user-alice", user.ID)

	mailbox, err := store.GetMailbox("mailbox-alice")
	require.NoError(t, err)
	assert.Equal(t, "mailbox-alice", mailbox.ID)

	alias, err := store.GetAliasByAddress("alice@emailthing.xyz")
	require.NoError(t, err)
	assert.True(t, alias.Default)

	links, err := store.ListMailboxesForUser("user-alice")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, domain.RoleOwner, links[0].Role)

	invite, err := store.GetInviteCode("invite01")
	require.NoError(t, err)
	require.NotNil(t, invite.UsedAt)
	assert.Equal(t, "user-alice", *invite.UsedBy)

	pending, err := store.ListPendingOutbox(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "outbox-alice", pending[0].ID)
}

func TestProvisionAccount_Conflicts(t *testing.T) {
	t.Run("用户名已占用", func(t *testing.T) {
		store := NewStore()
		seedInvite(store, "invite01")
		seedInvite(store, "invite02")

		require.NoError(t, store.ProvisionAccount(provisionInput("alice", "invite01")))

		input := provisionInput("alice", "invite02")
		input.User.ID = "user-other"
		err := store.ProvisionAccount(input)
		assert.ErrorIs(t, err, storage.ErrUsernameTaken)

		// 失败的开通不消费邀请码
		invite, err := store.GetInviteCode("invite02")
		require.NoError(t, err)
		assert.Nil(t, invite.UsedAt)
	})

	t.Run("别名已占用", func(t *testing.T) {
		store := NewStore()
		seedInvite(store, "invite01")
		seedInvite(store, "invite02")

		require.NoError(t, store.ProvisionAccount(provisionInput("alice", "invite01")))

		input := provisionInput("brian", "invite02")
		input.Alias.Alias = "alice@emailthing.xyz"
		err := store.ProvisionAccount(input)
		assert.ErrorIs(t, err, storage.ErrAliasTaken)

		// 冲突的开通没有留下用户数据
		_, err = store.GetUserByUsername("brian")
		assert.ErrorIs(t, err, storage.ErrUserNotFound)
	})

	t.Run("邀请码已消费", func(t *testing.T) {
		store := NewStore()
		seedInvite(store, "invite01")

		require.NoError(t, store.ProvisionAccount(provisionInput("alice", "invite01")))

		err := store.ProvisionAccount(provisionInput("brian", "invite01"))
		assert.ErrorIs(t, err, storage.ErrInviteConsumed)
	})

	t.Run("邀请码不存在", func(t *testing.T) {
		store := NewStore()
		err := store.ProvisionAccount(provisionInput("alice", "missing"))
		assert.ErrorIs(t, err, storage.ErrInviteConsumed)
	})
}

// 并发抢注同一用户名时只有一个成功
func TestProvisionAccount_ConcurrentUsername(t *testing.T) {
	store := NewStore()

	const attempts = 16
	for i := 0; i < attempts; i++ {
		seedInvite(store, fmt.Sprintf("invite%02d", i))
	}

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			input := provisionInput("alice", fmt.Sprintf("invite%02d", i))
			input.User.ID = fmt.Sprintf("user-%d", i)
			input.Link.UserID = input.User.ID
			input.Welcome.UserID = input.User.ID
			errs[i] = store.ProvisionAccount(input)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, storage.ErrUsernameTaken)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestGetValidInviteCode(t *testing.T) {
	store := NewStore()
	now := time.Now()

	seedInvite(store, "valid001")
	store.SeedInviteCode(&domain.InviteCode{
		Code:      "expired1",
		ExpiresAt: now.Add(-time.Minute),
		CreatedAt: now.Add(-time.Hour),
	})
	used := now.Add(-time.Minute)
	usedBy := "someone"
	store.SeedInviteCode(&domain.InviteCode{
		Code:      "used0001",
		ExpiresAt: now.Add(time.Hour),
		UsedAt:    &used,
		UsedBy:    &usedBy,
		CreatedAt: now.Add(-time.Hour),
	})

	_, err := store.GetValidInviteCode("valid001", now)
	assert.NoError(t, err)

	for _, code := range []string{"expired1", "used0001", "missing1"} {
		_, err := store.GetValidInviteCode(code, now)
		assert.ErrorIs(t, err, storage.ErrInviteNotFound, "code %q", code)
	}
}

func TestCreateInviteCode(t *testing.T) {
	store := NewStore()

	invite := &domain.InviteCode{
		Code:      "fresh001",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateInviteCode(invite))
	assert.Error(t, store.CreateInviteCode(invite))

	_, err := store.GetValidInviteCode("fresh001", time.Now())
	assert.NoError(t, err)
}

func TestOutboxLifecycle(t *testing.T) {
	store := NewStore()
	seedInvite(store, "invite01")
	require.NoError(t, store.ProvisionAccount(provisionInput("alice", "invite01")))

	t.Run("投递成功", func(t *testing.T) {
		sentAt := time.Now()
		require.NoError(t, store.MarkOutboxSent("outbox-alice", sentAt))

		pending, err := store.ListPendingOutbox(10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("记录失败", func(t *testing.T) {
		seedInvite(store, "invite02")
		require.NoError(t, store.ProvisionAccount(provisionInput("brian", "invite02")))

		require.NoError(t, store.MarkOutboxFailed("outbox-brian", "boom", false))
		pending, err := store.ListPendingOutbox(10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 1, pending[0].Attempts)
		assert.Equal(t, "boom", pending[0].LastError)

		// 最终失败后不再出现在待投递列表
		require.NoError(t, store.MarkOutboxFailed("outbox-brian", "boom again", true))
		pending, err = store.ListPendingOutbox(10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("条目不存在", func(t *testing.T) {
		assert.ErrorIs(t, store.MarkOutboxSent("missing", time.Now()), storage.ErrOutboxNotFound)
		assert.ErrorIs(t, store.MarkOutboxFailed("missing", "x", false), storage.ErrOutboxNotFound)
	})
}
