package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Babylonias/adminnexus-portal/common/config"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端类型别名
type Client = redis.Client

const (
	dialTimeout = 3 * time.Second
	pingTimeout = 3 * time.Second
)

// Connect 创建客户端并 Ping；失败时关闭连接
func Connect(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Close 关闭Redis连接
func Close(client *Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
