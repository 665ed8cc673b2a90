package domain

import "time"

// InviteCode 表示限时、一次性的注册邀请码。
// 仅当 UsedAt 为空且未过期时有效；消费后永久失效，不可回退。
type InviteCode struct {
	Code      string     `json:"code" gorm:"primaryKey;type:varchar(64)"`
	ExpiresAt time.Time  `json:"expiresAt" gorm:"not null;index"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	UsedBy    *string    `json:"usedBy,omitempty" gorm:"type:varchar(36)"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IsExpired 判断邀请码在给定时间点是否已过期
func (i InviteCode) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsUsed 判断邀请码是否已被消费
func (i InviteCode) IsUsed() bool {
	return i.UsedAt != nil
}

// IsValid 判断邀请码当前是否可用于注册
func (i InviteCode) IsValid(now time.Time) bool {
	return !i.IsUsed() && !i.IsExpired(now)
}
