package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/storage"
	"github.com/blessen010/EmailThing/internal/storage/memory"
)

const testInviteCode = "abc12345"

// newTestService 构建带预置邀请码的认证服务
func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.SeedInviteCode(&domain.InviteCode{
		Code:      testInviteCode,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})

	return NewService(store, "emailthing.xyz", nil, nil), store
}

func validSignup(username string) SignupInput {
	return SignupInput{
		Username: username,
		Password: "password123",
		Referer:  "https://emailthing.app/register?invite=" + testInviteCode,
	}
}

func TestSignup_Success(t *testing.T) {
	svc, store := newTestService(t)

	result, err := svc.Signup(validSignup("alice"))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "alice", result.User.Username)
	assert.Equal(t, "alice@emailthing.xyz", result.User.Email)
	assert.NotEmpty(t, result.MailboxID)
	assert.NotEqual(t, result.User.ID, result.MailboxID)

	// 密码以 bcrypt 哈希存储
	assert.NotEqual(t, "password123", result.User.PasswordHash)
	assert.True(t, CheckPassword("password123", result.User.PasswordHash))

	// 用户可按用户名反查
	user, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)

	// 默认别名已建立
	alias, err := store.GetAliasByAddress("alice@emailthing.xyz")
	require.NoError(t, err)
	assert.Equal(t, result.MailboxID, alias.MailboxID)
	assert.True(t, alias.Default)

	// 用户与邮箱以 OWNER 身份关联
	links, err := store.ListMailboxesForUser(result.User.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, domain.RoleOwner, links[0].Role)
	assert.Equal(t, result.MailboxID, links[0].MailboxID)

	// 邀请码被标记消费
	invite, err := store.GetInviteCode(testInviteCode)
	require.NoError(t, err)
	require.NotNil(t, invite.UsedAt)
	require.NotNil(t, invite.UsedBy)
	assert.Equal(t, result.User.ID, *invite.UsedBy)

	// 欢迎邮件进入发件箱待投递
	pending, err := store.ListPendingOutbox(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice@emailthing.xyz", pending[0].Recipient)
	assert.Equal(t, domain.OutboxPending, pending[0].Status)
	assert.NotEmpty(t, pending[0].Raw)
}

func TestSignup_InvalidCredentials(t *testing.T) {
	svc, store := newTestService(t)

	tests := []struct {
		name    string
		input   SignupInput
		wantErr error
	}{
		{"用户名太短", SignupInput{Username: "ab", Password: "password123", Referer: validSignup("x").Referer}, domain.ErrUsernameTooShort},
		{"用户名非法字符", SignupInput{Username: "bad_name", Password: "password123", Referer: validSignup("x").Referer}, domain.ErrInvalidUsername},
		{"密码太短", SignupInput{Username: "alice", Password: "short", Referer: validSignup("x").Referer}, domain.ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsUserFacing(err))
		})
	}

	// 被拒绝的注册没有留下任何写入
	_, err := store.GetUserByUsername("alice")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)

	invite, err := store.GetInviteCode(testInviteCode)
	require.NoError(t, err)
	assert.Nil(t, invite.UsedAt)
}

func TestSignup_ImpersonatingUsername(t *testing.T) {
	svc, _ := newTestService(t)

	for _, username := range []string{"admin", "the.support", "no-reply", "SysTem"} {
		input := validSignup(username)
		_, err := svc.Signup(input)
		assert.ErrorIs(t, err, ErrImpersonating, "username %q", username)
		assert.EqualError(t, err, "Invalid username")
	}
}

func TestSignup_InviteGate(t *testing.T) {
	svc, store := newTestService(t)

	store.SeedInviteCode(&domain.InviteCode{
		Code:      "expired1",
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})

	tests := []struct {
		name    string
		referer string
		wantErr error
	}{
		{"缺少 referer", "", ErrInviteRequired},
		{"referer 没有 invite 参数", "https://emailthing.app/register", ErrInviteRequired},
		{"invite 参数为空", "https://emailthing.app/register?invite=", ErrInviteRequired},
		{"邀请码不存在", "https://emailthing.app/register?invite=nope", ErrInvalidInvite},
		{"邀请码已过期", "https://emailthing.app/register?invite=expired1", ErrInvalidInvite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validSignup("alice")
			input.Referer = tt.referer
			_, err := svc.Signup(input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignup_UsedInviteRejected(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Signup(validSignup("alice"))
	require.NoError(t, err)

	// 同一邀请码不能二次注册
	_, err = svc.Signup(validSignup("brian"))
	assert.ErrorIs(t, err, ErrInvalidInvite)
	assert.EqualError(t, err, "Invalid invite code")
}

func TestSignup_UsernameTaken(t *testing.T) {
	svc, store := newTestService(t)

	_, err := svc.Signup(validSignup("alice"))
	require.NoError(t, err)

	store.SeedInviteCode(&domain.InviteCode{
		Code:      "second22",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})

	input := validSignup("alice")
	input.Referer = "https://emailthing.app/register?invite=second22"
	_, err = svc.Signup(input)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.EqualError(t, err, "Username already taken")

	// 输掉竞争的注册不消费邀请码
	invite, err := store.GetInviteCode("second22")
	require.NoError(t, err)
	assert.Nil(t, invite.UsedAt)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Signup(validSignup("alice"))
	require.NoError(t, err)

	t.Run("正确凭证", func(t *testing.T) {
		user, err := svc.Login(LoginInput{Username: "alice", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, user.ID)
	})

	t.Run("用户名大小写不敏感", func(t *testing.T) {
		user, err := svc.Login(LoginInput{Username: "ALICE", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, user.ID)
	})

	t.Run("密码错误", func(t *testing.T) {
		_, err := svc.Login(LoginInput{Username: "alice", Password: "wrongpassword"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := svc.Login(LoginInput{Username: "nobody", Password: "password123"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestGetUserByID(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Signup(validSignup("alice"))
	require.NoError(t, err)

	// 第二次读取走缓存，结果一致
	for i := 0; i < 2; i++ {
		user, err := svc.GetUserByID(result.User.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
	}

	_, err = svc.GetUserByID("missing-id")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDefaultMailbox(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Signup(validSignup("alice"))
	require.NoError(t, err)

	link, err := svc.DefaultMailbox(result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, result.MailboxID, link.MailboxID)
	assert.Equal(t, domain.RoleOwner, link.Role)

	_, err = svc.DefaultMailbox("missing-id")
	assert.ErrorIs(t, err, storage.ErrMailboxNotFound)
}

func TestInviteCodeFromReferer(t *testing.T) {
	code, err := InviteCodeFromReferer("https://emailthing.app/register?invite=abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", code)

	for _, referer := range []string{
		"",
		"https://emailthing.app/register",
		"https://emailthing.app/register?other=1",
		"://bad-url",
	} {
		_, err := InviteCodeFromReferer(referer)
		assert.ErrorIs(t, err, ErrInviteRequired, "referer %q", referer)
	}
}

func TestIsUserFacing(t *testing.T) {
	assert.True(t, IsUserFacing(ErrInviteRequired))
	assert.True(t, IsUserFacing(ErrUsernameTaken))
	assert.True(t, IsUserFacing(domain.ErrPasswordTooShort))
	assert.False(t, IsUserFacing(assert.AnError))
}
