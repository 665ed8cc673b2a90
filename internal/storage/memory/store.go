package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/storage"
)

// Store 使用内存保存注册相关数据，主要用于开发验证和测试。
type Store struct {
	mu         sync.RWMutex
	users      map[string]*domain.User           // userID -> user
	byUsername map[string]string                 // lower(username) -> userID
	mailboxes  map[string]*domain.Mailbox        // mailboxID -> mailbox
	links      map[string][]*domain.MailboxForUser // userID -> links
	aliases    map[string]*domain.MailboxAlias   // aliasID -> alias
	byAlias    map[string]string                 // lower(address) -> aliasID
	invites    map[string]*domain.InviteCode     // code -> invite
	outbox     map[string]*domain.OutboxEmail    // entryID -> entry
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		mailboxes:  make(map[string]*domain.Mailbox),
		links:      make(map[string][]*domain.MailboxForUser),
		aliases:    make(map[string]*domain.MailboxAlias),
		byAlias:    make(map[string]string),
		invites:    make(map[string]*domain.InviteCode),
		outbox:     make(map[string]*domain.OutboxEmail),
	}
}

// SeedInviteCode 预置一个邀请码（测试与开发环境使用）
func (s *Store) SeedInviteCode(invite *domain.InviteCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *invite
	s.invites[invite.Code] = &clone
}

// CreateInviteCode 录入新邀请码，code 重复时返回错误
func (s *Store) CreateInviteCode(invite *domain.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invites[invite.Code]; exists {
		return fmt.Errorf("invite code %q already exists", invite.Code)
	}
	clone := *invite
	s.invites[invite.Code] = &clone
	return nil
}

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

// GetUserByUsername 根据用户名获取用户（不区分大小写）
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	clone := *s.users[id]
	return &clone, nil
}

// GetAliasByAddress 根据别名地址获取别名（不区分大小写）
func (s *Store) GetAliasByAddress(address string) (*domain.MailboxAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAlias[strings.ToLower(address)]
	if !ok {
		return nil, storage.ErrAliasNotFound
	}
	clone := *s.aliases[id]
	return &clone, nil
}

// ListAliasesByMailboxID 列出邮箱的全部别名
func (s *Store) ListAliasesByMailboxID(mailboxID string) ([]*domain.MailboxAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.MailboxAlias
	for _, alias := range s.aliases {
		if alias.MailboxID == mailboxID {
			clone := *alias
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// GetMailbox 根据ID获取邮箱
func (s *Store) GetMailbox(id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mailbox, ok := s.mailboxes[id]
	if !ok {
		return nil, storage.ErrMailboxNotFound
	}
	clone := *mailbox
	return &clone, nil
}

// ListMailboxesForUser 列出用户可访问的全部邮箱关联
func (s *Store) ListMailboxesForUser(userID string) ([]*domain.MailboxForUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.MailboxForUser
	for _, link := range s.links[userID] {
		clone := *link
		out = append(out, &clone)
	}
	return out, nil
}

// GetValidInviteCode 查询未使用且未过期的邀请码
func (s *Store) GetValidInviteCode(code string, now time.Time) (*domain.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invite, ok := s.invites[code]
	if !ok || !invite.IsValid(now) {
		return nil, storage.ErrInviteNotFound
	}
	clone := *invite
	return &clone, nil
}

// ProvisionAccount 原子执行账户开通。
// 互斥锁覆盖全部检查与写入，对应 SQL 实现的单事务语义。
func (s *Store) ProvisionAccount(input *storage.ProvisionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUsername[strings.ToLower(input.User.Username)]; ok {
		return storage.ErrUsernameTaken
	}
	if _, ok := s.byAlias[strings.ToLower(input.Alias.Alias)]; ok {
		return storage.ErrAliasTaken
	}

	invite, ok := s.invites[input.InviteCode]
	if !ok || invite.IsUsed() {
		return storage.ErrInviteConsumed
	}

	now := time.Now()

	user := *input.User
	s.users[user.ID] = &user
	s.byUsername[strings.ToLower(user.Username)] = user.ID

	mailbox := *input.Mailbox
	s.mailboxes[mailbox.ID] = &mailbox

	link := *input.Link
	s.links[link.UserID] = append(s.links[link.UserID], &link)

	alias := *input.Alias
	s.aliases[alias.ID] = &alias
	s.byAlias[strings.ToLower(alias.Alias)] = alias.ID

	invite.UsedAt = &now
	usedBy := user.ID
	invite.UsedBy = &usedBy

	welcome := *input.Welcome
	s.outbox[welcome.ID] = &welcome

	return nil
}

// ListPendingOutbox 列出待投递的系统邮件
func (s *Store) ListPendingOutbox(limit int) ([]*domain.OutboxEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*domain.OutboxEmail
	for _, entry := range s.outbox {
		if entry.Status == domain.OutboxPending {
			clone := *entry
			entries = append(entries, &clone)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.Before(entries[j].CreatedAt) })

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// MarkOutboxSent 标记条目投递成功
func (s *Store) MarkOutboxSent(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.outbox[id]
	if !ok {
		return storage.ErrOutboxNotFound
	}
	entry.Status = domain.OutboxSent
	entry.SentAt = &at
	return nil
}

// MarkOutboxFailed 记录一次投递失败
func (s *Store) MarkOutboxFailed(id string, lastError string, final bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.outbox[id]
	if !ok {
		return storage.ErrOutboxNotFound
	}
	entry.Attempts++
	entry.LastError = lastError
	if final {
		entry.Status = domain.OutboxFailed
	}
	return nil
}

// GetInviteCode 按 code 读取邀请码（忽略有效性，测试断言使用）
func (s *Store) GetInviteCode(code string) (*domain.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invite, ok := s.invites[code]
	if !ok {
		return nil, storage.ErrInviteNotFound
	}
	clone := *invite
	return &clone, nil
}

// Health 内存存储总是健康的
func (s *Store) Health() error {
	return nil
}

// Close 关闭存储（内存实现为空操作）
func (s *Store) Close() error {
	return nil
}
