package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/gateway"

	"go.uber.org/zap"
)

// User 登录/注册接口返回的用户
type User struct {
	ID    any    `json:"id"` // 数字或 UUID 字符串
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// Credentials 登录请求
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration 注册请求
type Registration struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	User             *User  `json:"user,omitempty"`
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        any    `json:"expires_in,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresInRefresh any    `json:"expires_in_refresh,omitempty"`
}

// ErrMissingCredentials 邮箱或密码为空
var ErrMissingCredentials = errors.New("email and password are required")

// Session 登录会话：通过共享网关客户端调用认证接口，并维护 token 存储
type Session struct {
	client *gateway.Client
	store  TokenStore
	logger *zap.Logger
}

func NewSession(client *gateway.Client, store TokenStore, logger *zap.Logger) *Session {
	return &Session{client: client, store: store, logger: logger}
}

// Login POST /api/login；响应中带 access_token 时保存
func (s *Session) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: %w", gateway.ErrPrecondition, ErrMissingCredentials)
	}

	var resp AuthResponse
	if err := s.client.PostJSON(ctx, "/api/login", Credentials{Email: email, Password: password}, &resp); err != nil {
		s.logger.Warn("Login failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	if resp.AccessToken != "" {
		if err := s.store.Save(ctx, resp.AccessToken); err != nil {
			return nil, fmt.Errorf("save access token: %w", err)
		}
		fields := []zap.Field{zap.String("email", email)}
		if exp, ok := gateway.TokenExpiry(resp.AccessToken); ok {
			fields = append(fields, zap.Time("expires_at", exp))
		}
		s.logger.Info("Logged in", fields...)
	} else {
		s.logger.Warn("Login response carried no access token", zap.String("email", email))
	}
	return &resp, nil
}

// Register POST /api/register；不会自动登录
func (s *Session) Register(ctx context.Context, r Registration) (*AuthResponse, error) {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return nil, fmt.Errorf("%w: %w", gateway.ErrPrecondition, ErrMissingCredentials)
	}

	var resp AuthResponse
	if err := s.client.PostJSON(ctx, "/api/register", r, &resp); err != nil {
		s.logger.Warn("Registration failed", zap.String("email", r.Email), zap.Error(err))
		return nil, err
	}
	s.logger.Info("Registered", zap.String("email", r.Email))
	return &resp, nil
}

// Logout 仅删除本地 token，不调用服务端
func (s *Session) Logout(ctx context.Context) error {
	if err := s.store.Remove(ctx); err != nil {
		return fmt.Errorf("remove access token: %w", err)
	}
	s.logger.Info("Logged out")
	return nil
}

// Expiry 当前 token 的过期时间；未登录或 token 不是 JWT 时返回 false
func (s *Session) Expiry(ctx context.Context) (time.Time, bool) {
	token, err := s.store.Token(ctx)
	if err != nil || token == "" {
		return time.Time{}, false
	}
	return gateway.TokenExpiry(token)
}
