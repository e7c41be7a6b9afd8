package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	commoncfg "github.com/Babylonias/adminnexus-portal/common/config"

	"github.com/joho/godotenv"
)

// Config adminnexus-sync 配置
type Config struct {
	API    APIConfig
	Auth   AuthConfig
	Map    MapConfig
	Redis  RedisConfig
	MQTT   MQTTConfig
	Notify NotifyConfig
	Sync   SyncConfig
	Log    LogConfig
}

// RedisConfig Redis 为可选依赖（快照缓存、token、通知 stream）
type RedisConfig struct {
	Enabled bool
	commoncfg.RedisConfig
}

// MQTTConfig MQTT 为可选依赖（通知推送）
type MQTTConfig struct {
	Enabled bool
	commoncfg.MQTTConfig
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string
}

// APIConfig 后端 REST 服务配置
type APIConfig struct {
	BaseURL string
	// Timeout 0 表示不设置超时，只依赖 context
	Timeout time.Duration
}

// AuthConfig token 持久化配置
type AuthConfig struct {
	Store    string // "file" | "redis" | "env"；未设置时有 API_TOKEN 则为 "env"
	Token    string
	File     string
	RedisKey string
}

// MapConfig 地图服务配置（只透传 key，本服务不调用地图服务）
type MapConfig struct {
	APIKey string
}

// NotifyConfig 通知生成器配置
type NotifyConfig struct {
	Schedule     string
	Probability  float64
	SeedDemo     bool
	Stream       string
	StreamMaxLen int64
}

// SyncConfig 同步轮询配置
type SyncConfig struct {
	Interval    time.Duration
	SnapshotTTL time.Duration
	ExportPath  string
}

// Load 加载配置：先尝试读取 .env（不存在则忽略），再从环境变量读取
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{}

	cfg.API.BaseURL = getEnv("API_BASE_URL", "http://localhost:7011")
	cfg.API.Timeout = parseDuration(getEnv("API_TIMEOUT", "0"), 0)

	cfg.Auth.Token = getEnv("API_TOKEN", "")
	// 未指定存储方式但设置了 API_TOKEN 时直接使用该 token
	defaultStore := "file"
	if cfg.Auth.Token != "" {
		defaultStore = "env"
	}
	cfg.Auth.Store = getEnv("TOKEN_STORE", defaultStore)
	cfg.Auth.File = getEnv("TOKEN_FILE", ".adminnexus/token")
	cfg.Auth.RedisKey = getEnv("TOKEN_REDIS_KEY", "adminnexus:auth:token")

	cfg.Map.APIKey = getEnv("MAP_API_KEY", "")

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "adminnexus-sync")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "adminnexus/notifications")
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.Notify.Schedule = getEnv("NOTIFY_SCHEDULE", "*/5 * * * *")
	probability, err := parseProbability(getEnv("NOTIFY_PROBABILITY", "0.1"))
	if err != nil {
		return nil, err
	}
	cfg.Notify.Probability = probability
	cfg.Notify.SeedDemo = getEnv("NOTIFY_SEED_DEMO", "true") == "true"
	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "adminnexus:notifications")
	cfg.Notify.StreamMaxLen = int64(parseInt(getEnv("NOTIFY_STREAM_MAXLEN", "1000"), 1000))

	cfg.Sync.Interval = parseDuration(getEnv("SYNC_INTERVAL", "60s"), 60*time.Second)
	cfg.Sync.SnapshotTTL = parseDuration(getEnv("SNAPSHOT_TTL", "24h"), 24*time.Hour)
	cfg.Sync.ExportPath = getEnv("EXPORT_PATH", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

// parseProbability 概率必须在 [0, 1] 内
func parseProbability(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid NOTIFY_PROBABILITY %q: %w", s, err)
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0, fmt.Errorf("invalid NOTIFY_PROBABILITY %q: must be within [0, 1]", s)
	}
	return f, nil
}

// parseDuration 支持 "30s" 这类 duration，也支持纯数字（秒）
func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}
