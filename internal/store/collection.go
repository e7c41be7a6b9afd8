// Package store 维护单一实体族的内存列表，并在每次变更后与服务端保持一致。
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/domain"
	"github.com/Babylonias/adminnexus-portal/internal/gateway"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrBusy 已有一个变更操作在进行中
var ErrBusy = errors.New("another mutation is in progress")

// State 拉取状态机
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Gateway 集合依赖的远端操作（由 gateway 包的资源实现）
type Gateway[T domain.Entity, P any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (*T, bool)
	Create(ctx context.Context, payload P) (T, error)
	Update(ctx context.Context, id string, payload P) (T, error)
	Delete(ctx context.Context, id string) error
}

// Notifier 变更结果的用户提示
type Notifier interface {
	Notify(severity domain.Severity, title, message string)
}

// Snapshots 最近一次成功拉取结果的持久化（可选）
type Snapshots[T any] interface {
	Save(ctx context.Context, items []T) error
	Load(ctx context.Context) ([]T, error)
}

// Snapshot 某一时刻的集合视图
type Snapshot[T any] struct {
	State       State
	Items       []T
	Err         string
	LastFetched time.Time
}

// Options 集合可选依赖
type Options[T any] struct {
	Label     string // 提示中使用的实体名，如 "Classroom"
	Notifier  Notifier
	Snapshots Snapshots[T]
}

// Collection 单一实体族的同步集合
type Collection[T domain.Entity, P any] struct {
	gw        Gateway[T, P]
	label     string
	notifier  Notifier
	snapshots Snapshots[T]
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.RWMutex
	state       State
	items       []T
	errMsg      string
	lastFetched time.Time
	fetchSeq    uint64
	appliedSeq  uint64
	mutating    bool

	group singleflight.Group
}

const fetchKey = "fetch"

// NewCollection 创建集合；初始状态为 idle，列表为空
func NewCollection[T domain.Entity, P any](gw Gateway[T, P], opts Options[T], logger *zap.Logger) *Collection[T, P] {
	label := opts.Label
	if label == "" {
		label = "Item"
	}
	return &Collection[T, P]{
		gw:        gw,
		label:     label,
		notifier:  opts.Notifier,
		snapshots: opts.Snapshots,
		logger:    logger.With(zap.String("collection", label)),
		now:       time.Now,
		state:     StateIdle,
		items:     []T{},
	}
}

// Snapshot 返回当前状态与列表副本
func (c *Collection[T, P]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return Snapshot[T]{
		State:       c.state,
		Items:       items,
		Err:         c.errMsg,
		LastFetched: c.lastFetched,
	}
}

// Items 当前列表副本
func (c *Collection[T, P]) Items() []T {
	return c.Snapshot().Items
}

// State 当前状态
func (c *Collection[T, P]) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Find 在本地列表中按 id 查找
func (c *Collection[T, P]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.EntityID() == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// FetchAll 拉取完整列表；并发调用合并为一次请求。
// 合并后的请求不随任何单个调用方取消，调用方取消时只是提前返回。
func (c *Collection[T, P]) FetchAll(ctx context.Context) error {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fetchKey, func() (interface{}, error) {
		return nil, c.fetch(shared)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refetch 变更成功后的拉取：不与变更前发起的拉取合并，保证能看到本次变更
func (c *Collection[T, P]) refetch(ctx context.Context) error {
	c.group.Forget(fetchKey)
	return c.FetchAll(ctx)
}

func (c *Collection[T, P]) fetch(ctx context.Context) error {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	c.state = StateLoading
	c.errMsg = ""
	c.mu.Unlock()

	items, err := c.gw.List(ctx)

	c.mu.Lock()
	if seq <= c.appliedSeq {
		c.mu.Unlock()
		c.logger.Debug("Discarding stale fetch result", zap.Uint64("seq", seq))
		return err
	}
	c.appliedSeq = seq
	if err != nil {
		c.state = StateError
		c.errMsg = gateway.UserMessage(err)
		c.mu.Unlock()
		c.logger.Error("Failed to fetch collection", zap.Error(err))
		return err
	}
	if items == nil {
		items = []T{}
	}
	c.items = items
	c.state = StateReady
	c.lastFetched = c.now()
	c.mu.Unlock()

	c.logger.Debug("Collection fetched", zap.Int("count", len(items)))
	c.saveSnapshot(ctx, items)
	return nil
}

func (c *Collection[T, P]) saveSnapshot(ctx context.Context, items []T) {
	if c.snapshots == nil {
		return
	}
	if err := c.snapshots.Save(ctx, items); err != nil {
		c.logger.Warn("Failed to save collection snapshot", zap.Error(err))
	}
}

// Restore 首次拉取前用缓存快照预填列表；状态保持 idle
func (c *Collection[T, P]) Restore(ctx context.Context) (bool, error) {
	if c.snapshots == nil {
		return false, nil
	}
	items, err := c.snapshots.Load(ctx)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return false, nil
	}
	if items == nil {
		items = []T{}
	}
	c.items = items
	c.logger.Info("Collection restored from snapshot", zap.Int("count", len(items)))
	return true, nil
}

// Create 创建后重新拉取；失败时列表不变
func (c *Collection[T, P]) Create(ctx context.Context, payload P) (*T, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	created, err := c.gw.Create(ctx, payload)
	if err != nil {
		c.fail("create", err)
		return nil, err
	}
	c.succeed("create", fmt.Sprintf("%s created successfully", c.label))
	c.refetchAfter(ctx, "create")
	return &created, nil
}

// Update 更新后重新拉取；失败时列表不变
func (c *Collection[T, P]) Update(ctx context.Context, id string, payload P) (*T, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.end()

	updated, err := c.gw.Update(ctx, id, payload)
	if err != nil {
		c.fail("update", err)
		return nil, err
	}
	c.succeed("update", fmt.Sprintf("%s updated successfully", c.label))
	c.refetchAfter(ctx, "update")
	return &updated, nil
}

// Delete 本地不存在的 id 在发请求前即被拒绝；成功后先本地移除再重新拉取
func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	if id == "" {
		err := fmt.Errorf("%w: no %s selected for deletion", gateway.ErrPrecondition, c.label)
		c.fail("delete", err)
		return err
	}
	if _, ok := c.Find(id); !ok {
		err := fmt.Errorf("%w: %s %q not found in the current list", gateway.ErrPrecondition, c.label, id)
		c.fail("delete", err)
		return err
	}
	if err := c.begin(); err != nil {
		return err
	}
	defer c.end()

	if err := c.gw.Delete(ctx, id); err != nil {
		c.fail("delete", err)
		return err
	}

	c.mu.Lock()
	remaining := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if item.EntityID() != id {
			remaining = append(remaining, item)
		}
	}
	c.items = remaining
	// 删除前发起的拉取结果已过期
	c.appliedSeq = c.fetchSeq
	c.mu.Unlock()

	c.succeed("delete", fmt.Sprintf("%s deleted successfully", c.label))
	c.refetchAfter(ctx, "delete")
	return nil
}

// GetOne 直接查询网关，不影响列表
func (c *Collection[T, P]) GetOne(ctx context.Context, id string) (*T, bool) {
	return c.gw.Get(ctx, id)
}

func (c *Collection[T, P]) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mutating {
		c.logger.Warn("Rejecting concurrent mutation")
		return ErrBusy
	}
	c.mutating = true
	return nil
}

func (c *Collection[T, P]) end() {
	c.mu.Lock()
	c.mutating = false
	c.mu.Unlock()
}

func (c *Collection[T, P]) refetchAfter(ctx context.Context, op string) {
	if err := c.refetch(ctx); err != nil {
		c.logger.Warn("Refetch after mutation failed", zap.String("operation", op), zap.Error(err))
	}
}

func (c *Collection[T, P]) fail(op string, err error) {
	msg := gateway.UserMessage(err)
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()

	c.logger.Error("Mutation failed", zap.String("operation", op), zap.Error(err))
	if c.notifier != nil {
		c.notifier.Notify(domain.SeverityError, fmt.Sprintf("%s %s failed", c.label, op), msg)
	}
}

func (c *Collection[T, P]) succeed(op, msg string) {
	c.logger.Info("Mutation succeeded", zap.String("operation", op))
	if c.notifier != nil {
		c.notifier.Notify(domain.SeveritySuccess, fmt.Sprintf("%s %sd", c.label, op), msg)
	}
}
