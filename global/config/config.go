package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"SocialNet/data/database/mgo/mongoutil"
	"SocialNet/logger"
	"SocialNet/service/chat"
	"SocialNet/service/eventbus"
	redis "SocialNet/service/storage/redis"
	"SocialNet/tools/errs"
)

const envPrefix = "SOCIALNET_"

type NodeConfig struct {
	ID        string `yaml:"id"`        // 写入 presence 镜像的节点名
	Snowflake int64  `yaml:"snowflake"` // 雪花节点号 0~1023
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"` // 为空则不启动健康检查服务
}

type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Alg        string        `yaml:"alg"`
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
}

type AppConfig struct {
	Node     NodeConfig       `yaml:"node"`
	HTTP     HTTPConfig       `yaml:"http"`
	GRPC     GRPCConfig       `yaml:"grpc"`
	Mongo    mongoutil.Config `yaml:"mongo"`
	Redis    redis.Config     `yaml:"redis"`
	JWT      JWTConfig        `yaml:"jwt"`
	Realtime chat.Config      `yaml:"realtime"`
	EventBus eventbus.Config  `yaml:"eventbus"`
	Log      logger.Options   `yaml:"log"`
}

func (c *AppConfig) norm() {
	if c.Node.ID == "" {
		if h, err := os.Hostname(); err == nil {
			c.Node.ID = h
		} else {
			c.Node.ID = "node-1"
		}
	}
	if c.Node.Snowflake <= 0 {
		c.Node.Snowflake = 1
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = 15 * time.Second
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Mongo.Uri == "" && len(c.Mongo.Address) == 0 {
		c.Mongo.Uri = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "socialnet"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Redis.PresenceTTL <= 0 {
		c.Redis.PresenceTTL = 90 * time.Second
	}
	if c.JWT.CookieName == "" {
		c.JWT.CookieName = "token"
	}
	if c.JWT.Alg == "" {
		c.JWT.Alg = "HS256"
	}
	if c.JWT.TTL <= 0 {
		c.JWT.TTL = 15 * 24 * time.Hour
	}
	if c.EventBus.Driver == "" {
		c.EventBus.Driver = eventbus.DriverNone
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Realtime = c.Realtime.Normalized()
}

func (c *AppConfig) validate() error {
	if c.JWT.Secret == "" {
		return errs.ErrArgs.WrapMsg("jwt.secret is required (or " + envPrefix + "JWT_SECRET)")
	}
	if c.Node.Snowflake > 1023 {
		return errs.ErrArgs.WrapMsg("node.snowflake out of range", "value", c.Node.Snowflake)
	}
	return nil
}

// Load 读取 YAML（path 为空则只用默认值），再叠加 SOCIALNET_* 环境变量
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errs.ErrArgs.WrapMsg("parse config", "path", path, "err", err.Error())
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.norm()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(c *AppConfig, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return errs.ErrArgs.WrapMsg("bad bool env", "key", envPrefix+key, "value", v)
			}
			*dst = b
		}
		return nil
	}

	str("NODE_ID", &c.Node.ID)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("GRPC_ADDR", &c.GRPC.Addr)
	str("MONGO_URI", &c.Mongo.Uri)
	str("MONGO_DATABASE", &c.Mongo.Database)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("JWT_SECRET", &c.JWT.Secret)
	str("EVENTBUS_DRIVER", &c.EventBus.Driver)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	list("NATS_SERVERS", &c.EventBus.Nats.Servers)
	list("KAFKA_BROKERS", &c.EventBus.Kafka.Brokers)
	list("ALLOWED_ORIGINS", &c.Realtime.AllowedOrigins)
	if err := boolean("REDIS_ENABLED", &c.Redis.Enabled); err != nil {
		return err
	}
	if err := boolean("REQUIRE_AUTH", &c.Realtime.RequireAuth); err != nil {
		return err
	}
	if v, ok := lookup(envPrefix + "SNOWFLAKE_NODE"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errs.ErrArgs.WrapMsg("bad int env", "key", envPrefix+"SNOWFLAKE_NODE", "value", v)
		}
		c.Node.Snowflake = n
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
