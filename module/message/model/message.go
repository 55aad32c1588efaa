package model

import (
	"time"

	usermodel "SocialNet/module/user/model"
)

// Message 会话消息。删除分两种：deleted_for 里的用户看不到（软删），或对所有人删除（物理删除，含媒体）
type Message struct {
	ID             string    `bson:"_id"             json:"_id"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	SenderID       string    `bson:"sender_id"       json:"senderId"`
	Text           string    `bson:"text,omitempty"  json:"text,omitempty"`
	Media          string    `bson:"media,omitempty" json:"media,omitempty"`
	SeenBy         []string  `bson:"seen_by"         json:"seenBy"`
	DeletedFor     []string  `bson:"deleted_for"     json:"deletedFor"`
	CreatedAt      time.Time `bson:"created_at"      json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at"      json:"updatedAt"`
}

func (m *Message) GetTableName() string {
	return "messages"
}

// View 下发给客户端的消息，sender 已展开
type View struct {
	Message
	Sender     usermodel.Brief `json:"sender"`
	ReceiverID string          `json:"receiverId,omitempty"`
}
