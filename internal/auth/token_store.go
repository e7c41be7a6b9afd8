// Package auth 管理访问 token 的持久化以及登录会话。
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Babylonias/adminnexus-portal/internal/cache"
	"github.com/Babylonias/adminnexus-portal/internal/config"
)

// TokenStore 可读写的 token 存储；Token 返回空字符串表示未登录
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

// FileTokenStore 将 token 保存在本地文件（0600）
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileTokenStore) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// RedisTokenStore 将 token 保存在共享 KV 中（多实例部署）
type RedisTokenStore struct {
	kv  cache.KV
	key string
}

func NewRedisTokenStore(kv cache.KV, key string) *RedisTokenStore {
	return &RedisTokenStore{kv: kv, key: key}
}

func (s *RedisTokenStore) Token(ctx context.Context) (string, error) {
	token, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token string) error {
	// 过期由 JWT 自身的 exp 决定
	return s.kv.Set(ctx, s.key, token, 0)
}

func (s *RedisTokenStore) Remove(ctx context.Context) error {
	return s.kv.Del(ctx, s.key)
}

// StaticToken 进程内 token（来自 API_TOKEN 环境变量）
type StaticToken struct {
	mu    sync.RWMutex
	token string
}

func NewStaticToken(token string) *StaticToken {
	return &StaticToken{token: strings.TrimSpace(token)}
}

func (s *StaticToken) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *StaticToken) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *StaticToken) Remove(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// NewTokenStore 按配置创建 token 存储；redis 模式需要传入 kv
func NewTokenStore(cfg config.AuthConfig, kv cache.KV) (TokenStore, error) {
	switch strings.ToLower(cfg.Store) {
	case "", "file":
		return NewFileTokenStore(cfg.File), nil
	case "redis":
		if kv == nil {
			return nil, errors.New("token store \"redis\" requires redis to be enabled")
		}
		return NewRedisTokenStore(kv, cfg.RedisKey), nil
	case "env", "static", "memory":
		return NewStaticToken(cfg.Token), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.Store)
	}
}
