package sql

import (
	"database/sql"
	"time"

	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/storage"
)

// ========== Outbox Repository ==========

// ListPendingOutbox 列出待投递的系统邮件（按创建时间先进先出）
func (s *Store) ListPendingOutbox(limit int) ([]*domain.OutboxEmail, error) {
	query := s.rebind(`
		SELECT id, user_id, mailbox_id, recipient, subject, raw, status, attempts, last_error, created_at, sent_at
		FROM outbox_emails
		WHERE status = ?
		ORDER BY created_at
		LIMIT ?
	`)

	rows, err := s.db.Query(query, domain.OutboxPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.OutboxEmail
	for rows.Next() {
		var entry domain.OutboxEmail
		var sentAt sql.NullTime

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.MailboxID,
			&entry.Recipient,
			&entry.Subject,
			&entry.Raw,
			&entry.Status,
			&entry.Attempts,
			&entry.LastError,
			&entry.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, err
		}

		if sentAt.Valid {
			entry.SentAt = &sentAt.Time
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// MarkOutboxSent 标记条目投递成功
func (s *Store) MarkOutboxSent(id string, at time.Time) error {
	query := s.rebind(`
		UPDATE outbox_emails
		SET status = ?, sent_at = ?
		WHERE id = ?
	`)

	res, err := s.db.Exec(query, domain.OutboxSent, at, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return storage.ErrOutboxNotFound
	}
	return nil
}

// MarkOutboxFailed 记录一次投递失败，final 为 true 时停止重试
func (s *Store) MarkOutboxFailed(id string, lastError string, final bool) error {
	status := domain.OutboxPending
	if final {
		status = domain.OutboxFailed
	}

	query := s.rebind(`
		UPDATE outbox_emails
		SET status = ?, attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`)

	res, err := s.db.Exec(query, status, lastError, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return storage.ErrOutboxNotFound
	}
	return nil
}
