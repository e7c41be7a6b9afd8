// Package notify 本地通知 feed：无服务端、无持久化，可选地向 Redis Stream / MQTT 推送新通知。
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"go.uber.org/zap"
)

const (
	defaultSubscriberBuffer = 16
	publishTimeout          = 5 * time.Second
)

// Feed 通知列表，按插入顺序倒序（最新在前）
type Feed struct {
	mu          sync.RWMutex
	items       []domain.Notification
	subscribers map[int]chan domain.Notification
	nextSubID   int

	publishers []Publisher
	logger     *zap.Logger
	now        func() time.Time
}

// NewFeed 创建空 feed
func NewFeed(logger *zap.Logger, publishers ...Publisher) *Feed {
	return &Feed{
		items:       []domain.Notification{},
		subscribers: make(map[int]chan domain.Notification),
		publishers:  publishers,
		logger:      logger,
		now:         time.Now,
	}
}

// Seed 用初始数据替换当前列表（顺序即展示顺序）
func (f *Feed) Seed(items []domain.Notification) {
	seeded := make([]domain.Notification, len(items))
	copy(seeded, items)

	f.mu.Lock()
	f.items = seeded
	f.mu.Unlock()
}

// List 当前列表副本，最新在前
func (f *Feed) List() []domain.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// UnreadCount 未读数量（每次计算，不单独保存）
func (f *Feed) UnreadCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// MarkRead 标记为已读；id 不存在时返回 false
func (f *Feed) MarkRead(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead 全部标记为已读
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		f.items[i].Read = true
	}
}

// Remove 按 id 删除；id 不存在时返回 false
func (f *Feed) Remove(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i:i], f.items[i+1:]...)
			return true
		}
	}
	return false
}

// Add 分配 id（当前最大 id + 1，空列表为 1）与创建时间，插入到最前
func (f *Feed) Add(d domain.NotificationDraft) domain.Notification {
	if d.Severity == "" {
		d.Severity = domain.SeverityInfo
	}

	f.mu.Lock()
	maxID := 0
	for _, it := range f.items {
		if it.ID > maxID {
			maxID = it.ID
		}
	}
	n := domain.Notification{
		ID:        maxID + 1,
		Title:     d.Title,
		Message:   d.Message,
		Severity:  d.Severity,
		Read:      d.Read,
		CreatedAt: f.now(),
		ExpiresAt: d.ExpiresAt,
	}
	items := make([]domain.Notification, 0, len(f.items)+1)
	items = append(items, n)
	f.items = append(items, f.items...)

	for id, ch := range f.subscribers {
		select {
		case ch <- n:
		default:
			f.logger.Warn("Notification subscriber is slow, dropping event",
				zap.Int("subscriber", id),
				zap.Int("notification_id", n.ID),
			)
		}
	}
	f.mu.Unlock()

	f.publish(n)
	return n
}

// Notify 以通知的形式展示集合变更结果
func (f *Feed) Notify(severity domain.Severity, title, message string) {
	f.Add(domain.NotificationDraft{Title: title, Message: message, Severity: severity})
}

// Subscribe 订阅新增通知；返回的 cancel 用于取消订阅并关闭 channel
func (f *Feed) Subscribe(buffer int) (<-chan domain.Notification, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan domain.Notification, buffer)

	f.mu.Lock()
	id := f.nextSubID
	f.nextSubID++
	f.subscribers[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subscribers, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Feed) publish(n domain.Notification) {
	if len(f.publishers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for _, p := range f.publishers {
		if err := p.Publish(ctx, n); err != nil {
			f.logger.Warn("Failed to publish notification",
				zap.String("publisher", p.Name()),
				zap.Int("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}
}
