package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// KeyPrefix 快照 key 前缀
const KeyPrefix = "adminnexus:snapshot:"

// SnapshotCache 集合的最近一次成功拉取结果（JSON 编码）
type SnapshotCache[T any] struct {
	kv       KV
	resource string
	ttl      time.Duration
}

// NewSnapshotCache 创建快照缓存；ttl <= 0 表示不过期
func NewSnapshotCache[T any](kv KV, resource string, ttl time.Duration) *SnapshotCache[T] {
	if ttl < 0 {
		ttl = 0
	}
	return &SnapshotCache[T]{kv: kv, resource: resource, ttl: ttl}
}

// Key 返回该资源的缓存 key
func (c *SnapshotCache[T]) Key() string {
	return KeyPrefix + c.resource
}

// Save 写入快照
func (c *SnapshotCache[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", c.resource, err)
	}
	if err := c.kv.Set(ctx, c.Key(), string(data), c.ttl); err != nil {
		return fmt.Errorf("save %s snapshot: %w", c.resource, err)
	}
	return nil
}

// Load 读取快照；不存在时返回 ErrMiss
func (c *SnapshotCache[T]) Load(ctx context.Context) ([]T, error) {
	raw, err := c.kv.Get(ctx, c.Key())
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("load %s snapshot: %w", c.resource, err)
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", c.resource, err)
	}
	return items, nil
}

// Purge 删除所有资源的快照，返回删除的 key 数量
func Purge(ctx context.Context, kv KV) (int, error) {
	keys, err := kv.ScanKeys(ctx, KeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan snapshots: %w", err)
	}
	if err := kv.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", err)
	}
	return len(keys), nil
}
