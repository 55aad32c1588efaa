package notification

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"SocialNet/logger"
	notifmodel "SocialNet/module/notification/model"
	notifstore "SocialNet/module/notification/store"
	postmodel "SocialNet/module/post/model"
	poststore "SocialNet/module/post/store"
	usermodel "SocialNet/module/user/model"
	userstore "SocialNet/module/user/store"
	"SocialNet/service/eventbus"
	"SocialNet/service/metrics"
	"SocialNet/tools/errs"
)

// EventDelivered 下发给接收者的实时事件名
const EventDelivered = "notification-delivered"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSelf      Outcome = "self"
)

// Deliverer 在线则投递，返回是否入队成功
type Deliverer interface {
	Deliver(userID, event string, data any) bool
}

// TriggerInput 触发一条通知
type TriggerInput struct {
	SenderID      string          `json:"senderId"`
	ReceiverID    string          `json:"receiverId"`
	Type          notifmodel.Type `json:"type"`
	RelatedPostID string          `json:"relatedPostId"`
}

func (in *TriggerInput) normalize() error {
	in.SenderID = strings.TrimSpace(in.SenderID)
	in.ReceiverID = strings.TrimSpace(in.ReceiverID)
	in.RelatedPostID = strings.TrimSpace(in.RelatedPostID)
	if in.SenderID == "" || in.ReceiverID == "" {
		return errs.ErrArgs.WrapMsg("senderId and receiverId are required")
	}
	if !in.Type.Valid() {
		return errs.ErrArgs.WrapMsg("unknown notification type", "type", in.Type)
	}
	return nil
}

type Service struct {
	store notifstore.Store
	users userstore.Store
	posts poststore.Store
	out   Deliverer
	bus   eventbus.Publisher
}

func NewService(store notifstore.Store, users userstore.Store, posts poststore.Store, out Deliverer, bus eventbus.Publisher) *Service {
	if bus == nil {
		bus = eventbus.Noop{}
	}
	return &Service{store: store, users: users, posts: posts, out: out, bus: bus}
}

// Trigger 自己给自己不产生通知；只有新建时才投递与发布事件
func (s *Service) Trigger(ctx context.Context, in TriggerInput) (Outcome, *notifmodel.View, error) {
	if err := in.normalize(); err != nil {
		return "", nil, err
	}
	if in.SenderID == in.ReceiverID {
		metrics.NotificationOutcomes.WithLabelValues(string(OutcomeSelf)).Inc()
		return OutcomeSelf, nil, nil
	}

	start := time.Now()
	rec, created, err := s.store.CreateIfAbsent(ctx, notifmodel.Key{
		SenderID:      in.SenderID,
		ReceiverID:    in.ReceiverID,
		Type:          in.Type,
		RelatedPostID: in.RelatedPostID,
	})
	metrics.PersistLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NotificationOutcomes.WithLabelValues("failed").Inc()
		return "", nil, err
	}
	if !created {
		metrics.NotificationOutcomes.WithLabelValues(string(OutcomeDuplicate)).Inc()
		logger.Debug("notification duplicate",
			zap.String("sender", in.SenderID), zap.String("receiver", in.ReceiverID), zap.String("type", string(in.Type)))
		return OutcomeDuplicate, nil, nil
	}
	metrics.NotificationOutcomes.WithLabelValues(string(OutcomeCreated)).Inc()

	views := s.resolve(ctx, []notifmodel.Notification{*rec})
	view := &views[0]
	if s.out != nil && !s.out.Deliver(in.ReceiverID, EventDelivered, view) {
		logger.Debug("notification receiver offline", zap.String("receiver", in.ReceiverID), zap.String("id", rec.ID))
	}
	if ev, err := eventbus.NewEvent(rec.ID, eventbus.NotificationCreated, rec.ReceiverID, rec); err == nil {
		eventbus.PublishAsync(s.bus, ev)
	}
	return OutcomeCreated, view, nil
}

// List page 从 1 开始；size 超出上限时截断
func (s *Service) List(ctx context.Context, receiverID string, page, size int) (*notifmodel.Page, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	recs, err := s.store.List(ctx, receiverID, (page-1)*size, size)
	if err != nil {
		return nil, err
	}
	total, unread, err := s.store.Count(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	return &notifmodel.Page{
		Notifications: s.resolve(ctx, recs),
		UnreadCount:   unread,
		Total:         total,
		Page:          page,
		Size:          size,
	}, nil
}

func (s *Service) MarkRead(ctx context.Context, receiverID, id string) (*notifmodel.Notification, error) {
	return s.store.MarkRead(ctx, receiverID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	return s.store.MarkAllRead(ctx, receiverID)
}

func (s *Service) Delete(ctx context.Context, receiverID, id string) error {
	_, err := s.store.Delete(ctx, receiverID, id)
	return err
}

// resolve 批量补齐发送者与帖子；查询失败只降级为占位，不影响主流程
func (s *Service) resolve(ctx context.Context, recs []notifmodel.Notification) []notifmodel.View {
	senderIDs := make([]string, 0, len(recs))
	postIDs := make([]string, 0, len(recs))
	for _, r := range recs {
		senderIDs = append(senderIDs, r.SenderID)
		if r.RelatedPostID != "" {
			postIDs = append(postIDs, r.RelatedPostID)
		}
	}

	users := map[string]usermodel.User{}
	if s.users != nil {
		if got, err := s.users.FindByIDs(ctx, senderIDs); err == nil {
			users = got
		} else {
			logger.Warnf("[notification] resolve senders: %v", err)
		}
	}
	posts := map[string]postmodel.Post{}
	if s.posts != nil && len(postIDs) > 0 {
		if got, err := s.posts.FindByIDs(ctx, postIDs); err == nil {
			posts = got
		} else {
			logger.Warnf("[notification] resolve posts: %v", err)
		}
	}

	out := make([]notifmodel.View, 0, len(recs))
	for _, r := range recs {
		v := notifmodel.View{
			ID:            r.ID,
			Sender:        usermodel.UnknownBrief(r.SenderID),
			ReceiverID:    r.ReceiverID,
			Type:          r.Type,
			RelatedPostID: r.RelatedPostID,
			Read:          r.Read,
			CreatedAt:     r.CreatedAt,
		}
		if u, ok := users[r.SenderID]; ok {
			v.Sender = u.Brief()
		}
		if p, ok := posts[r.RelatedPostID]; ok {
			p := p
			v.Post = &p
		}
		out = append(out, v)
	}
	return out
}
