package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/blessen010/EmailThing/internal/cache"
	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/mail"
	"github.com/blessen010/EmailThing/internal/monitoring"
	"github.com/blessen010/EmailThing/internal/storage"
)

// 注册流程的策略性拒绝。
// 错误文案直接返回给前端，保持与产品文案一致。
var (
	// ErrInviteRequired 缺少 referer、referer 里没有 invite 参数
	ErrInviteRequired = errors.New("You need an invite code to signup right now")
	// ErrInvalidInvite 邀请码不存在、已过期或已被使用
	ErrInvalidInvite = errors.New("Invalid invite code")
	// ErrImpersonating 用户名包含冒充倾向的片段
	ErrImpersonating = errors.New("Invalid username")
	// ErrUsernameTaken 用户名已被占用
	ErrUsernameTaken = errors.New("Username already taken")
	// ErrEmailTaken 派生的别名地址已被占用
	ErrEmailTaken = errors.New("Email already taken")
	// ErrInvalidCredentials 登录凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("user not found")
)

// userFacingErrors 可以原样返回给前端的注册错误。
// 凭证格式错误（domain 包）同样属于这一类。
var userFacingErrors = []error{
	ErrInviteRequired,
	ErrInvalidInvite,
	ErrImpersonating,
	ErrUsernameTaken,
	ErrEmailTaken,
	domain.ErrUsernameTooShort,
	domain.ErrUsernameTooLong,
	domain.ErrInvalidUsername,
	domain.ErrPasswordTooShort,
	domain.ErrPasswordTooLong,
}

// IsUserFacing 判断错误是否可以原样展示给用户
func IsUserFacing(err error) bool {
	for _, target := range userFacingErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// userCacheTTL 会话用户缓存的过期时间。
// 注册后的用户数据在本服务范围内不可变，短 TTL 只是兜底。
const userCacheTTL = 30 * time.Second

// Service 认证服务，承载注册编排与登录。
type Service struct {
	store      storage.Store
	log        *zap.Logger
	metrics    *monitoring.Metrics
	mailDomain string // 别名派生域名，如 emailthing.xyz
	users      *cache.LocalCache[*domain.User]
}

// NewService 创建认证服务
func NewService(store storage.Store, mailDomain string, log *zap.Logger, metrics *monitoring.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:      store,
		log:        log,
		metrics:    metrics,
		mailDomain: mailDomain,
		users:      cache.NewLocalCache[*domain.User](userCacheTTL),
	}
}

// SignupInput 注册输入
type SignupInput struct {
	Username string
	Password string
	Referer  string // 提交页面的 Referer 头，邀请码从其查询参数提取
}

// SignupResult 注册结果，HTTP 层据此设置 cookie 并跳转
type SignupResult struct {
	User      *domain.User
	MailboxID string
}

// Signup 执行完整的注册流程：
// 凭证校验 → 冒充黑名单 → 邀请码门禁 → 唯一性预检 → 原子开通。
// 开通事务同时把欢迎邮件写入发件箱，由分发器异步投递。
func (s *Service) Signup(input SignupInput) (*SignupResult, error) {
	if s.metrics != nil {
		s.metrics.RegistrationsAttempted.Inc()
	}

	// 凭证格式校验，返回第一个校验错误
	if err := domain.ValidateCredentials(input.Username, input.Password); err != nil {
		return nil, s.reject("validation", err)
	}

	// 独立于格式校验的冒充黑名单
	if domain.IsImpersonating(input.Username) {
		return nil, s.reject("impersonation", ErrImpersonating)
	}

	// 邀请码门禁：referer 缺失、参数缺失与查询无果统一对外表现为被拒
	inviteCode, err := InviteCodeFromReferer(input.Referer)
	if err != nil {
		return nil, s.reject("invite_missing", err)
	}

	if _, err := s.store.GetValidInviteCode(inviteCode, time.Now()); err != nil {
		if errors.Is(err, storage.ErrInviteNotFound) {
			return nil, s.reject("invite_invalid", ErrInvalidInvite)
		}
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}

	// 唯一性预检只用于给出友好错误；真正的保证是存储层的唯一约束
	aliasAddr := fmt.Sprintf("%s@%s", input.Username, s.mailDomain)

	if _, err := s.store.GetUserByUsername(input.Username); err == nil {
		return nil, s.reject("username_taken", ErrUsernameTaken)
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	if _, err := s.store.GetAliasByAddress(aliasAddr); err == nil {
		return nil, s.reject("email_taken", ErrEmailTaken)
	} else if !errors.Is(err, storage.ErrAliasNotFound) {
		return nil, fmt.Errorf("failed to check alias: %w", err)
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 在任何写入之前生成全部标识
	userID := uuid.New().String()
	mailboxID := uuid.New().String()
	now := time.Now()

	user := &domain.User{
		ID:           userID,
		Username:     input.Username,
		Email:        aliasAddr,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	welcome, err := mail.WelcomeEmail(input.Username, aliasAddr, mailboxID)
	if err != nil {
		return nil, fmt.Errorf("failed to build welcome email: %w", err)
	}

	err = s.store.ProvisionAccount(&storage.ProvisionInput{
		User:    user,
		Mailbox: &domain.Mailbox{ID: mailboxID, CreatedAt: now},
		Link: &domain.MailboxForUser{
			MailboxID: mailboxID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		},
		Alias: &domain.MailboxAlias{
			ID:        uuid.New().String(),
			MailboxID: mailboxID,
			Alias:     aliasAddr,
			Default:   true,
			Name:      input.Username,
			CreatedAt: now,
		},
		InviteCode: inviteCode,
		Welcome: &domain.OutboxEmail{
			ID:        uuid.New().String(),
			UserID:    userID,
			MailboxID: mailboxID,
			Recipient: aliasAddr,
			Subject:   welcome.Subject,
			Raw:       welcome.Raw(),
			Status:    domain.OutboxPending,
			CreatedAt: now,
		},
	})
	if err != nil {
		// 预检之后输掉并发竞争的情况在这里收敛
		switch {
		case errors.Is(err, storage.ErrUsernameTaken):
			return nil, s.reject("username_taken", ErrUsernameTaken)
		case errors.Is(err, storage.ErrAliasTaken):
			return nil, s.reject("email_taken", ErrEmailTaken)
		case errors.Is(err, storage.ErrInviteConsumed):
			return nil, s.reject("invite_invalid", ErrInvalidInvite)
		}
		return nil, fmt.Errorf("failed to provision account: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RegistrationsSucceeded.Inc()
	}
	s.log.Info("user registered",
		zap.String("user_id", userID),
		zap.String("username", input.Username),
		zap.String("mailbox_id", mailboxID),
	)

	return &SignupResult{User: user, MailboxID: mailboxID}, nil
}

func (s *Service) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.RegistrationsRejected.WithLabelValues(reason).Inc()
	}
	return err
}

// LoginInput 登录输入
type LoginInput struct {
	Username string
	Password string
}

// Login 用户登录
func (s *Service) Login(input LoginInput) (*domain.User, error) {
	user, err := s.store.GetUserByUsername(strings.TrimSpace(input.Username))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetUserByID 根据 ID 获取用户，会话反查的热点走本地缓存
func (s *Service) GetUserByID(userID string) (*domain.User, error) {
	if user, ok := s.users.Get(userID); ok {
		return user, nil
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	s.users.Set(userID, user)
	return user, nil
}

// DefaultMailbox 返回用户拥有的第一个邮箱关联
func (s *Service) DefaultMailbox(userID string) (*domain.MailboxForUser, error) {
	links, err := s.store.ListMailboxesForUser(userID)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		if link.Role == domain.RoleOwner {
			return link, nil
		}
	}
	if len(links) > 0 {
		return links[0], nil
	}
	return nil, storage.ErrMailboxNotFound
}

// InviteCodeFromReferer 从提交页面的 Referer 头提取邀请码。
// referer 缺失、无法解析或没有 invite 参数都返回 ErrInviteRequired，
// 对调用方不区分具体缺失原因。
func InviteCodeFromReferer(referer string) (string, error) {
	if referer == "" {
		return "", ErrInviteRequired
	}

	u, err := url.Parse(referer)
	if err != nil {
		return "", ErrInviteRequired
	}

	code := u.Query().Get("invite")
	if code == "" {
		return "", ErrInviteRequired
	}

	return code, nil
}

// HashPassword 哈希密码
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查密码是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
