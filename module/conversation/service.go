package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"SocialNet/logger"
	convmodel "SocialNet/module/conversation/model"
	convstore "SocialNet/module/conversation/store"
	usermodel "SocialNet/module/user/model"
	userstore "SocialNet/module/user/store"
	"SocialNet/tools/errs"
	"SocialNet/tools/ids"
)

// Purger 删除会话时级联清理消息
type Purger interface {
	PurgeConversation(ctx context.Context, conversationID string) (int64, error)
}

type CreateInput struct {
	Members   []string `json:"members"`
	IsGroup   bool     `json:"isGroup"`
	GroupName string   `json:"groupName"`
}

type Service struct {
	store  convstore.Store
	users  userstore.Store
	purger Purger
}

func NewService(store convstore.Store, users userstore.Store) *Service {
	return &Service{store: store, users: users}
}

// SetPurger 消息模块依赖会话模块，构造完成后再注入
func (s *Service) SetPurger(p Purger) { s.purger = p }

// Touch 有新消息时刷新会话排序
func (s *Service) Touch(ctx context.Context, id string, at time.Time) error {
	return s.store.Touch(ctx, id, at)
}

func (s *Service) Create(ctx context.Context, caller string, in CreateInput) (*convmodel.Conversation, error) {
	members := normalizeMembers(append([]string{caller}, in.Members...))
	if len(members) < 2 {
		return nil, errs.ErrArgs.WrapMsg("At least two members required.")
	}
	if !in.IsGroup && len(members) > 2 {
		return nil, errs.ErrArgs.WrapMsg("direct conversation takes exactly two members")
	}
	if !in.IsGroup {
		return s.FindOrCreate(ctx, caller, members[1])
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	c := &convmodel.Conversation{
		ID:        ids.GenerateString(),
		IsGroup:   true,
		Members:   members,
		GroupName: strings.TrimSpace(in.GroupName),
		Admin:     caller,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindOrCreate 单聊；并发创建时唯一索引兜底，输家回查
func (s *Service) FindOrCreate(ctx context.Context, caller, recipient string) (*convmodel.Conversation, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, errs.ErrArgs.WrapMsg("recipientId is required")
	}
	if recipient == caller {
		return nil, errs.ErrArgs.WrapMsg("cannot start a conversation with yourself")
	}
	c, err := s.store.FindDirect(ctx, caller, recipient)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, errs.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	c = &convmodel.Conversation{
		ID:        ids.GenerateString(),
		Members:   []string{caller, recipient},
		DirectKey: convmodel.DirectKey(caller, recipient),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, c); err != nil {
		if errors.Is(err, errs.ErrDuplicateKey) {
			return s.store.FindDirect(ctx, caller, recipient)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, caller string) ([]convmodel.View, error) {
	convs, err := s.store.ListByMember(ctx, caller)
	if err != nil {
		return nil, err
	}
	var memberIDs []string
	for _, c := range convs {
		memberIDs = append(memberIDs, c.Members...)
	}
	users := map[string]usermodel.User{}
	if s.users != nil && len(memberIDs) > 0 {
		if got, err := s.users.FindByIDs(ctx, memberIDs); err == nil {
			users = got
		} else {
			logger.Warnf("[conversation] resolve members: %v", err)
		}
	}
	out := make([]convmodel.View, 0, len(convs))
	for _, c := range convs {
		v := convmodel.View{Conversation: c, MemberInfo: make([]usermodel.Brief, 0, len(c.Members))}
		for _, m := range c.Members {
			if u, ok := users[m]; ok {
				v.MemberInfo = append(v.MemberInfo, u.Brief())
			} else {
				v.MemberInfo = append(v.MemberInfo, usermodel.UnknownBrief(m))
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Member 校验 caller 属于会话
func (s *Service) Member(ctx context.Context, caller, id string) (*convmodel.Conversation, error) {
	c, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(caller) {
		return nil, errs.ErrNoPermission.WrapMsg("not a member of conversation", "id", id)
	}
	return c, nil
}

// Delete 群聊只有管理员可删；会话下的消息一并删除
func (s *Service) Delete(ctx context.Context, caller, id string) error {
	c, err := s.Member(ctx, caller, id)
	if err != nil {
		return err
	}
	if c.IsGroup && c.Admin != caller {
		return errs.ErrNoPermission.WrapMsg("Only admin can delete group")
	}
	if s.purger != nil {
		if _, err := s.purger.PurgeConversation(ctx, id); err != nil {
			return err
		}
	}
	return s.store.Delete(ctx, id)
}

func normalizeMembers(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, m := range in {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
