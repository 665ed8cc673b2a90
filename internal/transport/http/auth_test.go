package httptransport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blessen010/EmailThing/internal/auth"
	jwtpkg "github.com/blessen010/EmailThing/internal/auth/jwt"
	"github.com/blessen010/EmailThing/internal/config"
	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/storage/memory"
)

const testInvite = "abc12345"

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	store.SeedInviteCode(&domain.InviteCode{
		Code:      testInvite,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})

	cfg := &config.Config{
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
	authService := auth.NewService(store, "emailthing.xyz", nil, nil)
	jwtManager := jwtpkg.NewManager("test-secret-key-at-least-32-chars!!", "emailthing", time.Hour)

	router := NewRouter(RouterDependencies{
		Config:      cfg,
		AuthService: authService,
		JWTManager:  jwtManager,
	})
	return router, store
}

func postSignup(router *gin.Engine, username, password, referer string) *httptest.ResponseRecorder {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/signup", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signupReferer() string {
	return "https://emailthing.app/register?invite=" + testInvite
}

func TestSignupHandler_Success(t *testing.T) {
	router, store := newTestRouter(t)

	w := postSignup(router, "alice", "password123", signupReferer())

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/onboarding/welcome", w.Header().Get("Location"))

	res := w.Result()
	cookies := map[string]*http.Cookie{}
	for _, c := range res.Cookies() {
		cookies[c.Name] = c
	}

	token, ok := cookies["token"]
	require.True(t, ok, "token cookie missing")
	assert.NotEmpty(t, token.Value)
	assert.True(t, token.HttpOnly)
	assert.Equal(t, "/", token.Path)

	mailbox, ok := cookies["mailboxId"]
	require.True(t, ok, "mailboxId cookie missing")
	assert.NotEmpty(t, mailbox.Value)
	assert.False(t, mailbox.HttpOnly)
	assert.Equal(t, "/", mailbox.Path)
	assert.True(t, mailbox.Expires.Equal(time.Date(2038, 1, 19, 4, 14, 7, 0, time.UTC)),
		"mailboxId cookie expires at %s", mailbox.Expires)

	// 账户确实建立
	user, err := store.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@emailthing.xyz", user.Email)
}

func TestSignupHandler_UserFacingErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name     string
		username string
		password string
		referer  string
		wantMsg  string
	}{
		{"缺少邀请码", "alice", "password123", "", "You need an invite code to signup right now"},
		{"邀请码无效", "alice", "password123", "https://emailthing.app/register?invite=nope", "Invalid invite code"},
		{"冒充用户名", "admin", "password123", signupReferer(), "Invalid username"},
		{"用户名太短", "ab", "password123", signupReferer(), "Username must be at least 4 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postSignup(router, tt.username, tt.password, tt.referer)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body["error"])
		})
	}
}

func TestSignupHandler_DuplicateUsername(t *testing.T) {
	router, store := newTestRouter(t)

	w := postSignup(router, "alice", "password123", signupReferer())
	require.Equal(t, http.StatusSeeOther, w.Code)

	store.SeedInviteCode(&domain.InviteCode{
		Code:      "second22",
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	})

	w = postSignup(router, "alice", "password123", "https://emailthing.app/register?invite=second22")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Username already taken", body["error"])
}

func TestLoginHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postSignup(router, "alice", "password123", signupReferer())
	require.Equal(t, http.StatusSeeOther, w.Code)

	t.Run("登录成功", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			strings.NewReader(`{"username":"alice","password":"password123"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusOK, resp.Code)

		names := map[string]bool{}
		for _, c := range w.Result().Cookies() {
			names[c.Name] = true
		}
		assert.True(t, names["token"])
		assert.True(t, names["mailboxId"])
	})

	t.Run("密码错误", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			strings.NewReader(`{"username":"alice","password":"wrongpassword"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("缺少字段", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			strings.NewReader(`{"username":"alice"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMeHandler(t *testing.T) {
	router, _ := newTestRouter(t)

	w := postSignup(router, "alice", "password123", signupReferer())
	require.Equal(t, http.StatusSeeOther, w.Code)

	var tokenCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "token" {
			tokenCookie = c
		}
	}
	require.NotNil(t, tokenCookie)

	t.Run("带会话", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
		req.AddCookie(tokenCookie)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data userResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "alice", resp.Data.Username)
		assert.Equal(t, "alice@emailthing.xyz", resp.Data.Email)
		assert.NotEmpty(t, resp.Data.MailboxID)
	})

	t.Run("无会话", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("伪造令牌", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "garbage"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
