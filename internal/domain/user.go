package domain

import "time"

// MailboxRole 用户对邮箱的权限角色
type MailboxRole string

const (
	// RoleOwner 邮箱所有者，注册时创建的关联固定为该角色
	RoleOwner MailboxRole = "OWNER"
	// RoleAdmin 被邀请协作管理邮箱的用户
	RoleAdmin MailboxRole = "ADMIN"
)

// User 表示注册用户的业务实体
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username     string    `json:"username" gorm:"uniqueIndex;type:varchar(100);not null"`
	Email        string    `json:"email" gorm:"type:varchar(255);not null"` // 派生自 username@<主域名>
	PasswordHash string    `json:"-" gorm:"type:varchar(255)"`              // 不返回给前端
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MailboxForUser 表示用户与邮箱之间的关联关系
type MailboxForUser struct {
	MailboxID string      `json:"mailboxId" gorm:"primaryKey;type:varchar(36)"`
	UserID    string      `json:"userId" gorm:"primaryKey;type:varchar(36);index"`
	Role      MailboxRole `json:"role" gorm:"type:varchar(20);not null"`
	CreatedAt time.Time   `json:"createdAt"`
}
