package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/storage"
)

// ========== User Repository ==========

// GetUserByID 根据ID获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	query := s.rebind(`
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = ?
	`)
	return s.scanUser(s.db.QueryRow(query, id))
}

// GetUserByUsername 根据用户名获取用户（不区分大小写）
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	query := s.rebind(`
		SELECT id, username, email, password_hash, created_at, updated_at
		FROM users
		WHERE lower(username) = lower(?)
	`)
	return s.scanUser(s.db.QueryRow(query, username))
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ========== Alias Repository ==========

// GetAliasByAddress 根据别名地址获取别名（不区分大小写）
func (s *Store) GetAliasByAddress(address string) (*domain.MailboxAlias, error) {
	query := s.rebind(`
		SELECT id, mailbox_id, alias, is_default, name, created_at
		FROM mailbox_aliases
		WHERE lower(alias) = lower(?)
	`)

	var alias domain.MailboxAlias
	err := s.db.QueryRow(query, address).Scan(
		&alias.ID,
		&alias.MailboxID,
		&alias.Alias,
		&alias.Default,
		&alias.Name,
		&alias.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrAliasNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alias, nil
}

// ListAliasesByMailboxID 列出邮箱的全部别名
func (s *Store) ListAliasesByMailboxID(mailboxID string) ([]*domain.MailboxAlias, error) {
	query := s.rebind(`
		SELECT id, mailbox_id, alias, is_default, name, created_at
		FROM mailbox_aliases
		WHERE mailbox_id = ?
		ORDER BY created_at
	`)

	rows, err := s.db.Query(query, mailboxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aliases []*domain.MailboxAlias
	for rows.Next() {
		var alias domain.MailboxAlias
		err := rows.Scan(
			&alias.ID,
			&alias.MailboxID,
			&alias.Alias,
			&alias.Default,
			&alias.Name,
			&alias.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		aliases = append(aliases, &alias)
	}

	return aliases, rows.Err()
}

// ========== Mailbox Repository ==========

// GetMailbox 根据ID获取邮箱
func (s *Store) GetMailbox(id string) (*domain.Mailbox, error) {
	query := s.rebind(`SELECT id, created_at FROM mailboxes WHERE id = ?`)

	var mailbox domain.Mailbox
	err := s.db.QueryRow(query, id).Scan(&mailbox.ID, &mailbox.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrMailboxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &mailbox, nil
}

// ListMailboxesForUser 列出用户可访问的全部邮箱关联
func (s *Store) ListMailboxesForUser(userID string) ([]*domain.MailboxForUser, error) {
	query := s.rebind(`
		SELECT mailbox_id, user_id, role, created_at
		FROM mailbox_for_users
		WHERE user_id = ?
		ORDER BY created_at
	`)

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*domain.MailboxForUser
	for rows.Next() {
		var link domain.MailboxForUser
		if err := rows.Scan(&link.MailboxID, &link.UserID, &link.Role, &link.CreatedAt); err != nil {
			return nil, err
		}
		links = append(links, &link)
	}

	return links, rows.Err()
}

// ========== Invite Repository ==========

// GetValidInviteCode 查询未使用且未过期的邀请码
func (s *Store) GetValidInviteCode(code string, now time.Time) (*domain.InviteCode, error) {
	query := s.rebind(`
		SELECT code, expires_at, used_at, used_by, created_at
		FROM invite_codes
		WHERE code = ? AND expires_at >= ? AND used_at IS NULL
	`)

	var invite domain.InviteCode
	var usedAt sql.NullTime
	var usedBy sql.NullString

	err := s.db.QueryRow(query, code, now).Scan(
		&invite.Code,
		&invite.ExpiresAt,
		&usedAt,
		&usedBy,
		&invite.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}

	if usedAt.Valid {
		invite.UsedAt = &usedAt.Time
	}
	if usedBy.Valid {
		invite.UsedBy = &usedBy.String
	}

	return &invite, nil
}

// CreateInviteCode 录入新邀请码
func (s *Store) CreateInviteCode(invite *domain.InviteCode) error {
	query := s.rebind(`
		INSERT INTO invite_codes (code, expires_at, created_at)
		VALUES (?, ?, ?)
	`)

	_, err := s.db.Exec(query, invite.Code, invite.ExpiresAt, invite.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invite code %q already exists", invite.Code)
		}
		return fmt.Errorf("failed to create invite code: %w", err)
	}
	return nil
}
