// Package app 组装同步服务：网关、集合、通知 feed 以及可选的 Redis/MQTT。
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	commonmqtt "github.com/Babylonias/adminnexus-portal/common/mqtt"
	rediscommon "github.com/Babylonias/adminnexus-portal/common/redis"
	"github.com/Babylonias/adminnexus-portal/internal/auth"
	"github.com/Babylonias/adminnexus-portal/internal/cache"
	"github.com/Babylonias/adminnexus-portal/internal/config"
	"github.com/Babylonias/adminnexus-portal/internal/domain"
	"github.com/Babylonias/adminnexus-portal/internal/export"
	"github.com/Babylonias/adminnexus-portal/internal/gateway"
	"github.com/Babylonias/adminnexus-portal/internal/notify"
	"github.com/Babylonias/adminnexus-portal/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type (
	// UniversityStore 大学集合
	UniversityStore = store.Collection[domain.University, domain.UniversityPayload]
	// ClassroomStore 教室集合
	ClassroomStore = store.Collection[domain.Classroom, domain.ClassroomPayload]
	// UserStore 后台用户集合
	UserStore = store.Collection[domain.User, domain.UserPayload]
)

// Service 同步服务
type Service struct {
	config *config.Config
	logger *zap.Logger

	redisClient *rediscommon.Client
	mqttClient  *commonmqtt.Client
	kv          cache.KV

	tokens       auth.TokenStore
	session      *auth.Session
	classroomGW  *gateway.Classrooms
	userGW       *gateway.Users
	universities *UniversityStore
	classrooms   *ClassroomStore
	users        *UserStore
	feed         *notify.Feed
	generator    *notify.Generator
	poller       *cron.Cron

	mu           sync.Mutex
	byUniversity map[string]*ClassroomStore
	runCtx       context.Context
}

// NewService 创建同步服务；Redis/MQTT 未启用时对应功能关闭
func NewService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	s := &Service{
		config:       cfg,
		logger:       logger,
		byUniversity: make(map[string]*ClassroomStore),
		runCtx:       context.Background(),
	}

	// 初始化 Redis（快照缓存、token、通知 stream）
	if cfg.Redis.Enabled {
		client, err := rediscommon.Connect(context.Background(), &cfg.Redis.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.redisClient = client
		s.kv = cache.NewRedisKV(s.redisClient)
	}

	// 初始化 MQTT（通知推送）
	if cfg.MQTT.Enabled {
		mqttClient, err := commonmqtt.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		s.mqttClient = mqttClient
	}

	tokens, err := auth.NewTokenStore(cfg.Auth, s.kv)
	if err != nil {
		s.closeClients()
		return nil, err
	}
	s.tokens = tokens
	if _, static := tokens.(*auth.StaticToken); !static && cfg.Auth.Token != "" {
		logger.Warn("API_TOKEN is set but ignored by the configured token store",
			zap.String("token_store", cfg.Auth.Store),
		)
	}

	client := gateway.NewClient(cfg.API, tokens, logger)
	s.session = auth.NewSession(client, tokens, logger)
	s.classroomGW = gateway.NewClassrooms(client)
	s.userGW = gateway.NewUsers(client)

	var publishers []notify.Publisher
	if s.redisClient != nil && cfg.Notify.Stream != "" {
		publishers = append(publishers, notify.NewRedisStreamPublisher(s.redisClient, cfg.Notify.Stream, cfg.Notify.StreamMaxLen))
	}
	if s.mqttClient != nil {
		publishers = append(publishers, notify.NewMQTTPublisher(s.mqttClient, cfg.MQTT.Topic, cfg.MQTT.QoS))
	}
	s.feed = notify.NewFeed(logger, publishers...)
	if cfg.Notify.SeedDemo {
		s.feed.Seed(notify.DemoNotifications(time.Now()))
	}

	s.generator, err = notify.NewGenerator(s.feed, cfg.Notify, logger)
	if err != nil {
		s.closeClients()
		return nil, err
	}

	s.universities = store.NewCollection[domain.University, domain.UniversityPayload](
		gateway.NewUniversities(client),
		store.Options[domain.University]{
			Label:     "University",
			Notifier:  s.feed,
			Snapshots: snapshots[domain.University](s.kv, "universities", cfg.Sync.SnapshotTTL),
		},
		logger,
	)
	s.classrooms = store.NewCollection[domain.Classroom, domain.ClassroomPayload](
		s.classroomGW,
		store.Options[domain.Classroom]{
			Label:     "Classroom",
			Notifier:  s.feed,
			Snapshots: snapshots[domain.Classroom](s.kv, "classrooms", cfg.Sync.SnapshotTTL),
		},
		logger,
	)
	s.users = store.NewCollection[domain.User, domain.UserPayload](
		s.userGW,
		store.Options[domain.User]{
			Label:     "User",
			Notifier:  s.feed,
			Snapshots: snapshots[domain.User](s.kv, "users", cfg.Sync.SnapshotTTL),
		},
		logger,
	)

	s.poller = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if cfg.Sync.Interval > 0 {
		if _, err := s.poller.AddFunc("@every "+cfg.Sync.Interval.String(), s.poll); err != nil {
			s.closeClients()
			return nil, fmt.Errorf("invalid sync interval: %w", err)
		}
	}

	return s, nil
}

// snapshots kv 为 nil 时返回 nil（集合不做快照）
func snapshots[T any](kv cache.KV, resource string, ttl time.Duration) store.Snapshots[T] {
	if kv == nil {
		return nil
	}
	return cache.NewSnapshotCache[T](kv, resource, ttl)
}

// Universities 大学集合
func (s *Service) Universities() *UniversityStore { return s.universities }

// Classrooms 全部教室集合
func (s *Service) Classrooms() *ClassroomStore { return s.classrooms }

// Users 后台用户集合
func (s *Service) Users() *UserStore { return s.users }

// Accounts 用户网关，用于当前用户资料与修改密码
func (s *Service) Accounts() *gateway.Users { return s.userGW }

// Feed 通知 feed
func (s *Service) Feed() *notify.Feed { return s.feed }

// Session 登录会话
func (s *Service) Session() *auth.Session { return s.session }

// ClassroomsForUniversity 某所大学的教室集合（按大学缓存，首次访问时创建）
func (s *Service) ClassroomsForUniversity(universityID string) *ClassroomStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byUniversity[universityID]; ok {
		return c
	}
	c := store.NewCollection[domain.Classroom, domain.ClassroomPayload](
		s.classroomGW.ForUniversity(universityID),
		store.Options[domain.Classroom]{
			Label:     "Classroom",
			Notifier:  s.feed,
			Snapshots: snapshots[domain.Classroom](s.kv, "classrooms:"+universityID, s.config.Sync.SnapshotTTL),
		},
		s.logger.With(zap.String("university_id", universityID)),
	)
	s.byUniversity[universityID] = c
	return c
}

// Start 启动服务：恢复快照、首次同步、启动通知生成器与轮询，阻塞到 ctx 结束
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting sync service",
		zap.String("api_base_url", s.config.API.BaseURL),
		zap.Duration("sync_interval", s.config.Sync.Interval),
		zap.Bool("redis_enabled", s.redisClient != nil),
		zap.Bool("mqtt_enabled", s.mqttClient != nil),
		zap.Bool("map_api_key_set", s.config.Map.APIKey != ""),
	)

	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.restore(ctx)
	if err := s.SyncOnce(ctx); err != nil {
		s.logger.Error("Initial sync failed", zap.Error(err))
	}

	s.generator.Start()
	s.poller.Start()

	<-ctx.Done()
	return nil
}

// Stop 停止轮询与通知生成器，关闭外部连接
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping sync service")

	select {
	case <-s.poller.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for running sync to finish")
	}
	s.generator.Stop()
	s.closeClients()
	return nil
}

func (s *Service) closeClients() {
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Warn("Failed to close redis client", zap.Error(err))
	}
}

// restore 首次拉取前从快照恢复
func (s *Service) restore(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if _, err := s.universities.Restore(ctx); err != nil && !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Failed to restore universities snapshot", zap.Error(err))
	}
	if _, err := s.classrooms.Restore(ctx); err != nil && !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Failed to restore classrooms snapshot", zap.Error(err))
	}
	if _, err := s.users.Restore(ctx); err != nil && !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Failed to restore users snapshot", zap.Error(err))
	}
}

func (s *Service) poll() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()

	if err := s.SyncOnce(ctx); err != nil {
		s.logger.Warn("Periodic sync failed", zap.Error(err))
	}
}

// SyncOnce 并发刷新所有集合，成功后按配置导出工作簿
func (s *Service) SyncOnce(ctx context.Context) error {
	s.mu.Lock()
	views := make([]*ClassroomStore, 0, len(s.byUniversity))
	for _, c := range s.byUniversity {
		views = append(views, c)
	}
	s.mu.Unlock()

	// 各集合互不影响：一个失败不会取消其他集合的拉取
	var g errgroup.Group
	g.Go(func() error { return s.universities.FetchAll(ctx) })
	g.Go(func() error { return s.classrooms.FetchAll(ctx) })
	g.Go(func() error { return s.users.FetchAll(ctx) })
	for _, v := range views {
		v := v
		g.Go(func() error { return v.FetchAll(ctx) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("Sync completed",
		zap.Int("universities", len(s.universities.Items())),
		zap.Int("classrooms", len(s.classrooms.Items())),
		zap.Int("users", len(s.users.Items())),
		zap.Int("unread_notifications", s.feed.UnreadCount()),
	)

	if s.config.Sync.ExportPath != "" {
		if err := s.Export(s.config.Sync.ExportPath); err != nil {
			return err
		}
	}
	return nil
}

// Export 将当前集合写入 xlsx 文件（先写临时文件再重命名）
func (s *Service) Export(path string) error {
	data, err := export.Workbook(s.universities.Items(), s.classrooms.Items())
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".adminnexus-export-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp export file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename export file: %w", err)
	}

	s.logger.Info("Workbook exported", zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// PurgeSnapshots 删除所有集合快照
func (s *Service) PurgeSnapshots(ctx context.Context) (int, error) {
	if s.kv == nil {
		return 0, errors.New("redis is not enabled")
	}
	return cache.Purge(ctx, s.kv)
}
