package domain

import "time"

// OutboxStatus 发件箱条目的投递状态
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxEmail 表示待投递的系统邮件。
// 条目在账户开通事务内写入，由独立的分发器异步投递，
// 保证"账户已创建"与"欢迎邮件已发送"之间的最终一致。
type OutboxEmail struct {
	ID        string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID    string       `json:"userId" gorm:"type:varchar(36);index"`
	MailboxID string       `json:"mailboxId" gorm:"type:varchar(36)"`
	Recipient string       `json:"recipient" gorm:"type:varchar(255);not null"`
	Subject   string       `json:"subject" gorm:"type:varchar(255)"`
	Raw       []byte       `json:"-" gorm:"type:text"` // 完整的 MIME 报文
	Status    OutboxStatus `json:"status" gorm:"type:varchar(20);index;default:'pending'"`
	Attempts  int          `json:"attempts"`
	LastError string       `json:"lastError,omitempty" gorm:"type:text"`
	CreatedAt time.Time    `json:"createdAt"`
	SentAt    *time.Time   `json:"sentAt,omitempty"`
}
