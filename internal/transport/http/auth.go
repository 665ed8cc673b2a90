package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blessen010/EmailThing/internal/auth"
	jwtpkg "github.com/blessen010/EmailThing/internal/auth/jwt"
)

// 注册成功后的跳转地址与会话 cookie 名称
const (
	onboardingPath    = "/onboarding/welcome"
	tokenCookieName   = "token"
	mailboxCookieName = "mailboxId"
)

// mailboxCookieExpiry mailboxId cookie 的固定过期时间（32 位 Unix 时间上限）
var mailboxCookieExpiry = time.Date(2038, time.January, 19, 4, 14, 7, 0, time.UTC)

// AuthHandler 处理注册、登录等认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service   // 认证业务服务
	jwtManager  *jwtpkg.Manager // JWT 令牌管理器
	log         *zap.Logger     // 结构化日志记录器
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		jwtManager:  jwtManager,
		log:         log,
	}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	MailboxID string `json:"mailboxId,omitempty"`
}

// Signup 处理注册表单提交。
// 表单字段为 username / password，邀请码从提交页面的 Referer 查询参数提取。
// 被拒绝时以 {"error": 文案} 返回，文案可直接在注册页展示；
// 成功时写入会话 cookie 并 303 跳转到欢迎页。
func (h *AuthHandler) Signup(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	result, err := h.authService.Signup(auth.SignupInput{
		Username: username,
		Password: password,
		Referer:  c.GetHeader("Referer"),
	})
	if err != nil {
		if auth.IsUserFacing(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("failed to sign up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong, please try again later"})
		return
	}

	token, err := h.jwtManager.GenerateToken(result.User.ID, result.User.Username)
	if err != nil {
		h.log.Error("failed to generate session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong, please try again later"})
		return
	}

	h.setSessionCookies(c, token, result.MailboxID)
	c.Redirect(http.StatusSeeOther, onboardingPath)
}

// Login 处理用户登录请求
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		if err == auth.ErrInvalidCredentials {
			Unauthorized(c, MsgInvalidCredentials)
			return
		}
		h.log.Error("failed to login", zap.Error(err))
		InternalError(c, "login failed, please try again later")
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		h.log.Error("failed to generate session token", zap.Error(err))
		InternalError(c, "failed to create session")
		return
	}

	mailboxID := ""
	if link, err := h.authService.DefaultMailbox(user.ID); err == nil {
		mailboxID = link.MailboxID
	}

	h.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("username", user.Username),
	)

	h.setSessionCookies(c, token, mailboxID)
	Success(c, userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		MailboxID: mailboxID,
	})
}

// Me 获取当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(userID.(string))
	if err != nil {
		if err == auth.ErrUserNotFound {
			NotFound(c, MsgUserNotFound)
			return
		}
		h.log.Error("failed to get user", zap.Error(err))
		InternalError(c, "failed to get user")
		return
	}

	mailboxID := ""
	if link, err := h.authService.DefaultMailbox(user.ID); err == nil {
		mailboxID = link.MailboxID
	}

	Success(c, userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		MailboxID: mailboxID,
	})
}

// setSessionCookies 写入会话 cookie。
// token 为 httpOnly 的 JWT 会话；mailboxId 供前端读取，过期时间固定。
func (h *AuthHandler) setSessionCookies(c *gin.Context, token, mailboxID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.jwtManager.Expiry()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if mailboxID != "" {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:    mailboxCookieName,
			Value:   mailboxID,
			Path:    "/",
			Expires: mailboxCookieExpiry,
		})
	}
}

// AuthMiddleware 会话认证中间件。
// 从 token cookie 读取 JWT，验证通过后把用户信息注入上下文。
func AuthMiddleware(jwtManager *jwtpkg.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(tokenCookieName)
		if err != nil || token == "" {
			Unauthorized(c, MsgAuthRequired)
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			switch err {
			case jwtpkg.ErrExpiredToken:
				Unauthorized(c, MsgTokenExpired)
			default:
				Unauthorized(c, MsgTokenInvalid)
			}
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("username", claims.Username)

		c.Next()
	}
}
