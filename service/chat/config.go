package chat

import "time"

// Config 实时层参数，零值由 norm() 补默认
type Config struct {
	InboundQueue   int           `yaml:"inbound_queue"`   // 全局入站队列长度
	SendQueue      int           `yaml:"send_queue"`      // 每连接发送队列长度
	NotifyWorkers  int           `yaml:"notify_workers"`  // 通知落库 worker 分片数
	NotifyQueue    int           `yaml:"notify_queue"`    // 每个分片的队列长度
	PersistTimeout time.Duration `yaml:"persist_timeout"` // 单次落库超时
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	PingPeriod     time.Duration `yaml:"ping_period"` // 必须小于 PongWait
	MaxMessageSize int64         `yaml:"max_message_size"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequireAuth    bool          `yaml:"require_auth"`
}

func (c *Config) norm() {
	if c.InboundQueue <= 0 {
		c.InboundQueue = 4096
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.NotifyWorkers <= 0 {
		c.NotifyWorkers = 8
	}
	if c.NotifyQueue <= 0 {
		c.NotifyQueue = 1024
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 << 10
	}
}

// Normalized 返回补齐默认值后的副本
func (c Config) Normalized() Config {
	c.norm()
	return c
}
