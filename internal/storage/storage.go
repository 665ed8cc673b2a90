package storage

import (
	"errors"
	"time"

	"github.com/blessen010/EmailThing/internal/domain"
)

var (
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrAliasNotFound 别名未找到错误
	ErrAliasNotFound = errors.New("alias not found")
	// ErrMailboxNotFound 邮箱未找到错误
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrInviteNotFound 邀请码不存在、已过期或已被使用
	ErrInviteNotFound = errors.New("invite code not found")
	// ErrUsernameTaken 用户名已被占用（唯一约束冲突）
	ErrUsernameTaken = errors.New("username already taken")
	// ErrAliasTaken 别名已被占用（唯一约束冲突）
	ErrAliasTaken = errors.New("alias already taken")
	// ErrInviteConsumed 邀请码在提交时已被并发注册消费
	ErrInviteConsumed = errors.New("invite code already consumed")
	// ErrOutboxNotFound 发件箱条目未找到错误
	ErrOutboxNotFound = errors.New("outbox entry not found")
)

// ProvisionInput 账户开通事务的全部写入内容。
// 六条语句要么全部生效要么全部回滚，部分开通的状态不可被观测到。
type ProvisionInput struct {
	User       *domain.User
	Mailbox    *domain.Mailbox
	Link       *domain.MailboxForUser
	Alias      *domain.MailboxAlias
	InviteCode string              // 要消费的邀请码
	Welcome    *domain.OutboxEmail // 欢迎邮件，随事务入队
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	GetUserByID(id string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
}

// AliasRepository 定义邮箱别名数据存取操作。
type AliasRepository interface {
	GetAliasByAddress(address string) (*domain.MailboxAlias, error)
	ListAliasesByMailboxID(mailboxID string) ([]*domain.MailboxAlias, error)
}

// MailboxRepository 定义邮箱关联数据存取操作。
type MailboxRepository interface {
	GetMailbox(id string) (*domain.Mailbox, error)
	ListMailboxesForUser(userID string) ([]*domain.MailboxForUser, error)
}

// InviteRepository 定义邀请码数据存取操作。
type InviteRepository interface {
	// GetValidInviteCode 按 code 查询未使用且未过期的邀请码。
	// 单次时间点读取；过期与否不会在事务提交时复核，唯一性消费由事务保证。
	GetValidInviteCode(code string, now time.Time) (*domain.InviteCode, error)

	// CreateInviteCode 录入一个新的邀请码，code 重复时返回错误。
	CreateInviteCode(invite *domain.InviteCode) error
}

// AccountRepository 定义账户开通的原子写入操作。
type AccountRepository interface {
	ProvisionAccount(input *ProvisionInput) error
}

// OutboxRepository 定义系统邮件发件箱的存取操作。
type OutboxRepository interface {
	ListPendingOutbox(limit int) ([]*domain.OutboxEmail, error)
	MarkOutboxSent(id string, at time.Time) error
	// MarkOutboxFailed 记录一次投递失败；final 为 true 时条目不再重试
	MarkOutboxFailed(id string, lastError string, final bool) error
}

// Store 聚合注册流程所需的全部存储操作。
type Store interface {
	UserRepository
	AliasRepository
	MailboxRepository
	InviteRepository
	AccountRepository
	OutboxRepository

	Health() error
	Close() error
}
