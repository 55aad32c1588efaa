package model

import (
	"time"

	postmodel "SocialNet/module/post/model"
	usermodel "SocialNet/module/user/model"
)

type Type string

const (
	TypeLike          Type = "like"
	TypeComment       Type = "comment"
	TypeFollow        Type = "follow"
	TypeMessage       Type = "message"
	TypeFriendRequest Type = "friend_request"
)

func (t Type) Valid() bool {
	switch t {
	case TypeLike, TypeComment, TypeFollow, TypeMessage, TypeFriendRequest:
		return true
	}
	return false
}

// Notification 通知记录。
// 唯一约束：同一 (sender_id, receiver_id, type, related_post_id) 至多一条，与是否已读无关；
// related_post_id 无关联帖子时存空串，保证进入唯一索引。
// db.notifications.createIndex(
//
//	{ sender_id: 1, receiver_id: 1, type: 1, related_post_id: 1 },
//	{ unique: true, name: "uniq_key" })
type Notification struct {
	ID            string    `bson:"_id"             json:"_id"`
	SenderID      string    `bson:"sender_id"       json:"senderId"`
	ReceiverID    string    `bson:"receiver_id"     json:"receiverId"`
	Type          Type      `bson:"type"            json:"type"`
	RelatedPostID string    `bson:"related_post_id" json:"relatedPostId,omitempty"`
	Read          bool      `bson:"read"            json:"read"`
	CreatedAt     time.Time `bson:"created_at"      json:"createdAt"`
}

func (n *Notification) GetTableName() string {
	return "notifications"
}

// Key 去重键
type Key struct {
	SenderID      string
	ReceiverID    string
	Type          Type
	RelatedPostID string
}

func (n *Notification) Key() Key {
	return Key{SenderID: n.SenderID, ReceiverID: n.ReceiverID, Type: n.Type, RelatedPostID: n.RelatedPostID}
}

// View 下发给客户端的通知：发送者与帖子已展开
type View struct {
	ID            string          `json:"_id"`
	Sender        usermodel.Brief `json:"senderId"`
	ReceiverID    string          `json:"receiverId"`
	Type          Type            `json:"type"`
	RelatedPostID string          `json:"relatedPostId,omitempty"`
	Post          *postmodel.Post `json:"postId,omitempty"`
	Read          bool            `json:"read"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Page 通知列表
type Page struct {
	Notifications []View `json:"notifications"`
	UnreadCount   int64  `json:"unreadCount"`
	Total         int64  `json:"total"`
	Page          int    `json:"page"`
	Size          int    `json:"size"`
}
