package store

import (
	"context"

	msgmodel "SocialNet/module/message/model"
)

type Store interface {
	Insert(ctx context.Context, m *msgmodel.Message) error
	FindByID(ctx context.Context, id string) (*msgmodel.Message, error)
	// ListVisible 按时间正序，排除 viewer 已删除的消息
	ListVisible(ctx context.Context, conversationID, viewer string, offset, limit int) ([]msgmodel.Message, error)
	// AddSeen / AddDeletedFor 幂等（$addToSet）
	AddSeen(ctx context.Context, id, userID string) error
	AddDeletedFor(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id string) error
	// DeleteByConversation 返回被删除消息上的媒体引用
	DeleteByConversation(ctx context.Context, conversationID string) (media []string, n int64, err error)
}
