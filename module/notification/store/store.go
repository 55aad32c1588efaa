package store

import (
	"context"

	notifmodel "SocialNet/module/notification/model"
)

// Store 通知持久化。所有按 id 的操作都限定在接收者范围内。
type Store interface {
	// CreateIfAbsent 依赖唯一索引判重；同一四元组已有记录（无论是否已读）时返回该记录且 created=false
	CreateIfAbsent(ctx context.Context, key notifmodel.Key) (rec *notifmodel.Notification, created bool, err error)
	// MarkRead 已读再标记不报错；记录不存在返回 ErrRecordNotFound
	MarkRead(ctx context.Context, receiverID, id string) (*notifmodel.Notification, error)
	MarkAllRead(ctx context.Context, receiverID string) (int64, error)
	// Delete 幂等，记录不存在返回 false
	Delete(ctx context.Context, receiverID, id string) (bool, error)
	// List 按 created_at 倒序、_id 倒序
	List(ctx context.Context, receiverID string, offset, limit int) ([]notifmodel.Notification, error)
	Count(ctx context.Context, receiverID string) (total, unread int64, err error)
}
