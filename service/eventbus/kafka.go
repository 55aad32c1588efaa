package eventbus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Shopify/sarama"

	"SocialNet/tools/errs"
)

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"` // 最终 topic = prefix + "." + 事件类型
	Retries     int      `yaml:"retries"`
	Compression string   `yaml:"compression"` // none/snappy/lz4/zstd
	Version     string   `yaml:"version"`
	// EnsureTopics 启动时按 Partitions / ReplicationFactor 建好事件 topic
	EnsureTopics      bool  `yaml:"ensure_topics"`
	Partitions        int32 `yaml:"partitions"`
	ReplicationFactor int16 `yaml:"replication_factor"`
}

func buildSaramaConfig(c KafkaConfig) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad kafka version", "version", c.Version)
		}
		cfg.Version = v
	}

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.Retries <= 0 {
		c.Retries = 3
	}
	cfg.Producer.Retry.Max = c.Retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // Key 控制分区，同一接收者有序
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}

// KafkaPublisher 同步生产者，发送成功才返回
type KafkaPublisher struct {
	producer sarama.SyncProducer
	prefix   string
}

func NewKafkaPublisher(c KafkaConfig) (*KafkaPublisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("kafka brokers missing")
	}
	cfg, err := buildSaramaConfig(c)
	if err != nil {
		return nil, err
	}
	if c.EnsureTopics {
		admin, err := sarama.NewClusterAdmin(c.Brokers, cfg)
		if err != nil {
			return nil, errs.WrapMsg(err, "new kafka admin", "brokers", strings.Join(c.Brokers, ","))
		}
		err = ensureTopics(admin, topicsFor(c.TopicPrefix), c.Partitions, c.ReplicationFactor)
		_ = admin.Close()
		if err != nil {
			return nil, err
		}
	}
	p, err := sarama.NewSyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, errs.WrapMsg(err, "new kafka producer", "brokers", strings.Join(c.Brokers, ","))
	}
	return NewKafkaPublisherWithProducer(p, c.TopicPrefix), nil
}

// NewKafkaPublisherWithProducer 注入已有的 producer（测试使用 mocks）
func NewKafkaPublisherWithProducer(p sarama.SyncProducer, prefix string) *KafkaPublisher {
	if prefix == "" {
		prefix = "socialnet"
	}
	return &KafkaPublisher{producer: p, prefix: prefix}
}

func (k *KafkaPublisher) topic(typ string) string { return k.prefix + "." + typ }

func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(ev)
	if err != nil {
		return errs.Wrap(err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic(ev.Type),
		Key:   sarama.StringEncoder(ev.Key),
		Value: sarama.ByteEncoder(val),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-id"), Value: []byte(ev.ID)},
		},
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return errs.WrapMsg(err, "kafka send", "topic", msg.Topic)
	}
	return nil
}

func (k *KafkaPublisher) Close() error { return k.producer.Close() }
