package eventbus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"SocialNet/logger"
	"SocialNet/tools/errs"
	"SocialNet/tools/safe"
)

const (
	DriverNone  = "none"
	DriverNats  = "nats"
	DriverKafka = "kafka"
)

// 事件类型，同时作为 subject / topic 后缀
const (
	NotificationCreated = "notification.created"
	MessageCreated      = "message.created"
)

type Config struct {
	Driver string      `yaml:"driver"` // none/nats/kafka
	Nats   NatsConfig  `yaml:"nats"`
	Kafka  KafkaConfig `yaml:"kafka"`
}

// Event 对外发布的领域事件；Key 决定分区（通常是接收者 ID）
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Publisher 只承诺 at-most-once，失败由调用方记录日志
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NewEvent 序列化 payload
func NewEvent(id, typ, key string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errs.Wrap(err)
	}
	return Event{ID: id, Type: typ, Key: key, Payload: raw, OccurredAt: time.Now().UTC()}, nil
}

// Noop 未配置总线时使用
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// New 按 driver 构建 Publisher
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverNone:
		return Noop{}, nil
	case DriverNats:
		return NewNatsPublisher(cfg.Nats)
	case DriverKafka:
		return NewKafkaPublisher(cfg.Kafka)
	default:
		return nil, errs.ErrArgs.WrapMsg("unknown eventbus driver", "driver", cfg.Driver)
	}
}

// PublishAsync 不阻塞调用方；超时 3s，失败只记日志
func PublishAsync(p Publisher, ev Event) {
	safe.Go("eventbus-publish", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			logger.Warnf("[eventbus] publish type=%s id=%s err=%v", ev.Type, ev.ID, err)
		}
	})
}
