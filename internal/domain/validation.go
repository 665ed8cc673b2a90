package domain

import (
	"errors"
	"regexp"
	"strings"
)

// 凭证校验相关的错误定义。
// 错误文案直接返回给前端，保持与产品文案一致。
var (
	ErrUsernameTooShort = errors.New("Username must be at least 4 characters")
	ErrUsernameTooLong  = errors.New("Username must be at most 20 characters")
	ErrInvalidUsername  = errors.New("Username can only contain letters, numbers, dots and dashes")
	ErrPasswordTooShort = errors.New("Password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("Password must be at most 72 characters")
)

// 凭证校验常量
const (
	MinUsernameLength = 4
	MaxUsernameLength = 20

	// bcrypt 的输入上限为 72 字节
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// 用户名必须以字母开头，只允许字母、数字、点和短横线
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9.\-]*$`)

// impersonatingTerms 容易被用于冒充官方账号的用户名片段。
// 命中任意片段（不区分大小写的子串匹配）即拒绝注册。
var impersonatingTerms = []string{
	"admin",
	"abuse",
	"contact",
	"emailthing",
	"help",
	"hostmaster",
	"info",
	"noreply",
	"no-reply",
	"official",
	"postmaster",
	"riskymh",
	"root",
	"security",
	"staff",
	"support",
	"system",
	"webmaster",
}

// ValidateUsername 校验用户名格式
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if len(username) > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword 校验密码强度
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateCredentials 依次校验用户名与密码，返回第一个校验错误
func ValidateCredentials(username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	return ValidatePassword(password)
}

// IsImpersonating 判断用户名是否包含冒充倾向的片段。
// 独立于格式校验，即使用户名格式合法也会被拒绝。
func IsImpersonating(username string) bool {
	lower := strings.ToLower(username)
	for _, term := range impersonatingTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
