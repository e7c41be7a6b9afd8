// Package gateway 负责与后端 REST 服务通信：
// 请求鉴权、响应结构规范化以及错误分类。网关本身不保存任何状态。
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// TokenSource 提供 Bearer token；返回空字符串表示未登录
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client 共享的 REST 客户端
type Client struct {
	httpClient *resty.Client
	tokens     TokenSource
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient 创建客户端；配置与 token 来源都显式注入
func NewClient(cfg config.APIConfig, tokens TokenSource, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}

	c := &Client{
		httpClient: httpClient,
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}
	httpClient.OnBeforeRequest(c.attachToken)
	httpClient.OnAfterResponse(c.inspectResponse)
	return c
}

// attachToken 请求拦截：有 token 时附加 Authorization 头
func (c *Client) attachToken(_ *resty.Client, req *resty.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(req.Context())
	if err != nil {
		c.logger.Warn("Failed to read auth token, sending request without it", zap.Error(err))
		return nil
	}
	if token == "" {
		return nil
	}
	if exp, ok := TokenExpiry(token); ok && exp.Before(c.now()) {
		c.logger.Warn("Auth token is expired", zap.Time("expired_at", exp))
	}
	req.SetAuthToken(token)
	return nil
}

// inspectResponse 响应拦截：401 只记录日志，不重试也不清除 token
func (c *Client) inspectResponse(_ *resty.Client, resp *resty.Response) error {
	if resp.StatusCode() == 401 {
		c.logger.Warn("Unauthorized: token invalid or expired",
			zap.String("method", resp.Request.Method),
			zap.String("url", resp.Request.URL),
		)
	}
	return nil
}

// do 执行请求；网络错误包装为 ErrTransport，非 2xx 返回 *StatusError
func (c *Client) do(ctx context.Context, method, path string, prepare func(*resty.Request)) (*resty.Response, error) {
	req := c.httpClient.R().SetContext(ctx)
	if prepare != nil {
		prepare(req)
	}

	c.logger.Debug("Calling API", zap.String("method", method), zap.String("path", path))

	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Error("API call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}

	if !resp.IsSuccess() {
		body := resp.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		c.logger.Error("API returned error status",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", body),
		)
		return resp, &StatusError{Method: method, Path: path, Code: resp.StatusCode(), Body: body}
	}

	c.logger.Debug("API call succeeded",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", resp.StatusCode()),
	)
	return resp, nil
}

// PostJSON 发送 JSON 请求并把 2xx 响应解码到 result（auth 等非实体接口使用）
func (c *Client) PostJSON(ctx context.Context, path string, body, result any) error {
	_, err := c.do(ctx, resty.MethodPost, path, func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
		if result != nil {
			r.SetResult(result)
		}
	})
	return err
}

// TokenExpiry 读取 JWT 的 exp（不验证签名）；非 JWT 或没有 exp 时返回 false
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
