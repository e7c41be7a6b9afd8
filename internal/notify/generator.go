package notify

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/Babylonias/adminnexus-portal/internal/config"
	"github.com/Babylonias/adminnexus-portal/internal/domain"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule 每 5 分钟
const DefaultSchedule = "*/5 * * * *"

const generatedTitle = "Automatic notification"

// messagePool 自动通知的消息池
var messagePool = []string{
	"New university added to the system",
	"Automatic backup completed",
	"Classroom capacity updated",
	"User sign-in detected",
}

// Generator 定时以一定概率向 feed 追加一条自动通知
type Generator struct {
	feed        *Feed
	cron        *cron.Cron
	schedule    string
	probability float64
	logger      *zap.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	started bool
}

// GeneratorOption 生成器选项
type GeneratorOption func(*Generator)

// WithRand 注入随机源（测试用）
func WithRand(rng *rand.Rand) GeneratorOption {
	return func(g *Generator) { g.rng = rng }
}

// NewGenerator 创建生成器；schedule 为空时使用 DefaultSchedule
func NewGenerator(feed *Feed, cfg config.NotifyConfig, logger *zap.Logger, opts ...GeneratorOption) (*Generator, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if cfg.Probability < 0 || cfg.Probability > 1 {
		return nil, fmt.Errorf("notification probability must be within [0, 1], got %v", cfg.Probability)
	}

	g := &Generator{
		feed:        feed,
		schedule:    schedule,
		probability: cfg.Probability,
		logger:      logger,
		rng:         rand.New(rand.NewSource(rand.Int63())),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{logger.Sugar()}),
	))
	if _, err := g.cron.AddFunc(schedule, func() { g.Tick() }); err != nil {
		return nil, fmt.Errorf("invalid notification schedule %q: %w", schedule, err)
	}
	return g, nil
}

// Tick 执行一次：命中概率时追加通知并返回 true
func (g *Generator) Tick() (domain.Notification, bool) {
	g.mu.Lock()
	hit := g.rng.Float64() < g.probability
	var draft domain.NotificationDraft
	if hit {
		draft = domain.NotificationDraft{
			Title:    generatedTitle,
			Message:  messagePool[g.rng.Intn(len(messagePool))],
			Severity: domain.Severities[g.rng.Intn(len(domain.Severities))],
		}
	}
	g.mu.Unlock()

	if !hit {
		return domain.Notification{}, false
	}
	n := g.feed.Add(draft)
	g.logger.Debug("Generated notification", zap.Int("id", n.ID), zap.String("severity", string(n.Severity)))
	return n, true
}

// Start 启动定时任务
func (g *Generator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.started = true
	g.cron.Start()
	g.logger.Info("Notification generator started",
		zap.String("schedule", g.schedule),
		zap.Float64("probability", g.probability),
	)
}

// Stop 停止定时任务并等待正在执行的任务结束
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()

	<-g.cron.Stop().Done()
	g.logger.Info("Notification generator stopped")
}

// cronLogger 将 cron 日志接入 zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
