package notify

import (
	"context"
	"encoding/json"
	"fmt"

	commonredis "github.com/Babylonias/adminnexus-portal/common/redis"
	"github.com/Babylonias/adminnexus-portal/internal/domain"
)

// Publisher 新通知的外部推送通道；失败只记录日志，不影响 feed
type Publisher interface {
	Name() string
	Publish(ctx context.Context, n domain.Notification) error
}

// RedisStreamPublisher 以 JSON 写入 Redis Stream（XADD）
type RedisStreamPublisher struct {
	client *commonredis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *commonredis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Name() string { return "redis_stream" }

func (p *RedisStreamPublisher) Publish(ctx context.Context, n domain.Notification) error {
	if _, err := commonredis.PublishJSONToStream(ctx, p.client, p.stream, p.maxLen, n); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// mqttPublishClient common/mqtt.Client 的发布能力
type mqttPublishClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher 以 JSON 发布到 MQTT topic
type MQTTPublisher struct {
	client mqttPublishClient
	topic  string
	qos    byte
}

func NewMQTTPublisher(client mqttPublishClient, topic string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, qos: qos}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

func (p *MQTTPublisher) Publish(_ context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return p.client.Publish(p.topic, p.qos, false, payload)
}
