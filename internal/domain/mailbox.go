package domain

import "time"

// Mailbox 表示邮件存储与所有权的基本单位。
// 注册时与用户一对一创建，之后可通过邀请增加协作用户。
type Mailbox struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"createdAt"`
}

// MailboxAlias 表示路由到邮箱的收件地址。
// 每个新建邮箱恰好有一个默认别名；别名在全系统内唯一。
type MailboxAlias struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID string    `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	Alias     string    `json:"alias" gorm:"uniqueIndex;type:varchar(255);not null"`
	Default   bool      `json:"default" gorm:"column:is_default"`
	Name      string    `json:"name" gorm:"type:varchar(100)"` // 显示名称
	CreatedAt time.Time `json:"createdAt"`
}
