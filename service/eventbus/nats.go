package eventbus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"SocialNet/logger"
	"SocialNet/tools/errs"
)

type NatsConfig struct {
	Servers       []string      `yaml:"servers"`
	Name          string        `yaml:"name"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
	Timeout       time.Duration `yaml:"timeout"`
}

// NatsPublisher core NATS 发布；Nats-Msg-Id 头带事件 ID，便于下游去重
type NatsPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNatsPublisher(c NatsConfig) (*NatsPublisher, error) {
	if len(c.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 500 * time.Millisecond
	}
	if c.Timeout == 0 {
		c.Timeout = 3 * time.Second
	}
	if c.Name == "" {
		c.Name = "socialnet-realtime"
	}
	opts := []nats.Option{
		nats.Name(c.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(c.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(c.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("[nats] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
	}
	if c.User != "" {
		opts = append(opts, nats.UserInfo(c.User, c.Password))
	}
	nc, err := nats.Connect(strings.Join(c.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", strings.Join(c.Servers, ","))
	}
	return &NatsPublisher{nc: nc, prefix: subjectPrefix(c.SubjectPrefix)}, nil
}

func subjectPrefix(p string) string {
	if p == "" {
		return "socialnet"
	}
	return strings.TrimSuffix(p, ".")
}

func (n *NatsPublisher) subject(typ string) string { return n.prefix + "." + typ }

func (n *NatsPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return errs.Wrap(err)
	}
	msg := nats.NewMsg(n.subject(ev.Type))
	msg.Data = data
	msg.Header.Set("Nats-Msg-Id", ev.ID)
	msg.Header.Set("Event-Key", ev.Key)
	if err := n.nc.PublishMsg(msg); err != nil {
		return errs.WrapMsg(err, "nats publish", "subject", msg.Subject)
	}
	return nil
}

// Close 先 drain 再关闭
func (n *NatsPublisher) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}
