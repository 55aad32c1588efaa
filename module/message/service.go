package message

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"SocialNet/logger"
	convmodel "SocialNet/module/conversation/model"
	msgmodel "SocialNet/module/message/model"
	msgstore "SocialNet/module/message/store"
	"SocialNet/module/notification"
	notifmodel "SocialNet/module/notification/model"
	usermodel "SocialNet/module/user/model"
	userstore "SocialNet/module/user/store"
	"SocialNet/service/eventbus"
	"SocialNet/tools/errs"
	"SocialNet/tools/ids"
)

// EventDelivered 服务端投递消息时的实时事件名
const EventDelivered = "message-delivered"

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Conversations interface {
	Member(ctx context.Context, caller, id string) (*convmodel.Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

type Notifier interface {
	Trigger(ctx context.Context, in notification.TriggerInput) (notification.Outcome, *notifmodel.View, error)
}

// MediaRemover 删除消息附带的媒体文件
type MediaRemover interface {
	Remove(ctx context.Context, ref string) error
}

// NoopMediaRemover 未接入对象存储时使用
type NoopMediaRemover struct{}

func (NoopMediaRemover) Remove(context.Context, string) error { return nil }

type SendInput struct {
	ConversationID string `json:"conversationId"`
	ReceiverID     string `json:"receiverId"` // 为空时投递给会话其他成员
	Text           string `json:"text"`
	Media          string `json:"media"`
}

type Service struct {
	store    msgstore.Store
	convs    Conversations
	users    userstore.Store
	out      notification.Deliverer
	notifier Notifier
	media    MediaRemover
	bus      eventbus.Publisher
}

type Options struct {
	Users    userstore.Store
	Out      notification.Deliverer
	Notifier Notifier
	Media    MediaRemover
	Bus      eventbus.Publisher
}

func NewService(store msgstore.Store, convs Conversations, opts Options) *Service {
	if opts.Media == nil {
		opts.Media = NoopMediaRemover{}
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.Noop{}
	}
	return &Service{
		store:    store,
		convs:    convs,
		users:    opts.Users,
		out:      opts.Out,
		notifier: opts.Notifier,
		media:    opts.Media,
		bus:      opts.Bus,
	}
}

// Send 先落库，再投递给在线接收者，最后触发 message 类型通知
func (s *Service) Send(ctx context.Context, sender string, in SendInput) (*msgmodel.View, error) {
	in.Text = strings.TrimSpace(in.Text)
	in.Media = strings.TrimSpace(in.Media)
	if in.ConversationID == "" {
		return nil, errs.ErrArgs.WrapMsg("conversationId is required")
	}
	if in.Text == "" && in.Media == "" {
		return nil, errs.ErrArgs.WrapMsg("message needs text or media")
	}
	conv, err := s.convs.Member(ctx, sender, in.ConversationID)
	if err != nil {
		return nil, err
	}
	receivers := conv.Others(sender)
	if in.ReceiverID != "" {
		if !conv.HasMember(in.ReceiverID) || in.ReceiverID == sender {
			return nil, errs.ErrArgs.WrapMsg("receiver is not in conversation", "receiverId", in.ReceiverID)
		}
		receivers = []string{in.ReceiverID}
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	msg := &msgmodel.Message{
		ID:             ids.GenerateString(),
		ConversationID: conv.ID,
		SenderID:       sender,
		Text:           in.Text,
		Media:          in.Media,
		SeenBy:         []string{},
		DeletedFor:     []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.convs.Touch(ctx, conv.ID, now); err != nil {
		logger.Warnf("[message] touch conversation %s: %v", conv.ID, err)
	}

	view := s.resolve(ctx, []msgmodel.Message{*msg})[0]
	for _, r := range receivers {
		v := view
		v.ReceiverID = r
		if s.out != nil && !s.out.Deliver(r, EventDelivered, &v) {
			logger.Debug("message receiver offline", zap.String("receiver", r), zap.String("id", msg.ID))
		}
		if s.notifier != nil {
			if _, _, err := s.notifier.Trigger(ctx, notification.TriggerInput{
				SenderID:   sender,
				ReceiverID: r,
				Type:       notifmodel.TypeMessage,
			}); err != nil {
				logger.Warnf("[message] notify receiver=%s: %v", r, err)
			}
		}
	}
	if ev, err := eventbus.NewEvent(msg.ID, eventbus.MessageCreated, conv.ID, msg); err == nil {
		eventbus.PublishAsync(s.bus, ev)
	}
	return &view, nil
}

// List 只返回 viewer 未删除的消息
func (s *Service) List(ctx context.Context, viewer, conversationID string, page, size int) ([]msgmodel.View, error) {
	if _, err := s.convs.Member(ctx, viewer, conversationID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	msgs, err := s.store.ListVisible(ctx, conversationID, viewer, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, msgs), nil
}

func (s *Service) visible(ctx context.Context, user, id string) (*msgmodel.Message, error) {
	msg, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.convs.Member(ctx, user, msg.ConversationID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) MarkSeen(ctx context.Context, user, id string) error {
	if _, err := s.visible(ctx, user, id); err != nil {
		return err
	}
	return s.store.AddSeen(ctx, id, user)
}

func (s *Service) DeleteForMe(ctx context.Context, user, id string) error {
	if _, err := s.visible(ctx, user, id); err != nil {
		return err
	}
	return s.store.AddDeletedFor(ctx, id, user)
}

// DeleteForEveryone 仅发送者可以；媒体删除失败只告警
func (s *Service) DeleteForEveryone(ctx context.Context, user, id string) error {
	msg, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if msg.SenderID != user {
		return errs.ErrNoPermission.WrapMsg("only the sender can delete for everyone", "id", id)
	}
	s.removeMedia(ctx, msg.Media)
	return s.store.Delete(ctx, id)
}

// DeleteConversationMessages 清空会话消息，会话本身保留
func (s *Service) DeleteConversationMessages(ctx context.Context, user, conversationID string) (int64, error) {
	if _, err := s.convs.Member(ctx, user, conversationID); err != nil {
		return 0, err
	}
	return s.PurgeConversation(ctx, conversationID)
}

// PurgeConversation 供会话删除级联调用，不做权限校验
func (s *Service) PurgeConversation(ctx context.Context, conversationID string) (int64, error) {
	media, n, err := s.store.DeleteByConversation(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	for _, ref := range media {
		s.removeMedia(ctx, ref)
	}
	return n, nil
}

func (s *Service) removeMedia(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.media.Remove(ctx, ref); err != nil {
		logger.Warnf("[message] remove media %s: %v", ref, err)
	}
}

func (s *Service) resolve(ctx context.Context, msgs []msgmodel.Message) []msgmodel.View {
	senders := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senders = append(senders, m.SenderID)
	}
	users := map[string]usermodel.User{}
	if s.users != nil && len(senders) > 0 {
		if got, err := s.users.FindByIDs(ctx, senders); err == nil {
			users = got
		} else {
			logger.Warnf("[message] resolve senders: %v", err)
		}
	}
	out := make([]msgmodel.View, 0, len(msgs))
	for _, m := range msgs {
		v := msgmodel.View{Message: m, Sender: usermodel.UnknownBrief(m.SenderID)}
		if u, ok := users[m.SenderID]; ok {
			v.Sender = u.Brief()
		}
		out = append(out, v)
	}
	return out
}
