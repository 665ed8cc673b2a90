package sql

import (
	"fmt"
	"time"

	"github.com/blessen010/EmailThing/internal/storage"
)

// ProvisionAccount 在单个事务内完成账户开通的六条写入：
// 用户、邮箱、OWNER 关联、默认别名、消费邀请码、欢迎邮件入队。
// 任意一条失败则整体回滚，部分开通的状态不可被观测到。
func (s *Store) ProvisionAccount(input *storage.ProvisionInput) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	_, err = tx.Exec(s.rebind(`
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`),
		input.User.ID,
		input.User.Username,
		input.User.Email,
		input.User.PasswordHash,
		input.User.CreatedAt,
		input.User.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUsernameTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.Exec(s.rebind(`
		INSERT INTO mailboxes (id, created_at)
		VALUES (?, ?)
	`),
		input.Mailbox.ID,
		input.Mailbox.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mailbox: %w", err)
	}

	_, err = tx.Exec(s.rebind(`
		INSERT INTO mailbox_for_users (mailbox_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`),
		input.Link.MailboxID,
		input.Link.UserID,
		input.Link.Role,
		input.Link.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mailbox link: %w", err)
	}

	_, err = tx.Exec(s.rebind(`
		INSERT INTO mailbox_aliases (id, mailbox_id, alias, is_default, name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`),
		input.Alias.ID,
		input.Alias.MailboxID,
		input.Alias.Alias,
		input.Alias.Default,
		input.Alias.Name,
		input.Alias.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAliasTaken
		}
		return fmt.Errorf("failed to insert alias: %w", err)
	}

	// used_at IS NULL 条件保证同一邀请码最多被一次注册消费；
	// 并发竞争失败的一方在这里影响零行。
	res, err := tx.Exec(s.rebind(`
		UPDATE invite_codes
		SET used_at = ?, used_by = ?
		WHERE code = ? AND used_at IS NULL
	`),
		now,
		input.User.ID,
		input.InviteCode,
	)
	if err != nil {
		return fmt.Errorf("failed to consume invite code: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check invite consumption: %w", err)
	}
	if affected != 1 {
		return storage.ErrInviteConsumed
	}

	_, err = tx.Exec(s.rebind(`
		INSERT INTO outbox_emails (id, user_id, mailbox_id, recipient, subject, raw, status, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		input.Welcome.ID,
		input.Welcome.UserID,
		input.Welcome.MailboxID,
		input.Welcome.Recipient,
		input.Welcome.Subject,
		input.Welcome.Raw,
		input.Welcome.Status,
		input.Welcome.Attempts,
		input.Welcome.LastError,
		input.Welcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue welcome email: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit provisioning: %w", err)
	}

	return nil
}
