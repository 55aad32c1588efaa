package chat

import (
	"bytes"
	"encoding/json"
	"strings"

	"SocialNet/tools/decode"
	"SocialNet/tools/errs"
)

// 入站事件
const (
	EventIdentify            = "identify"
	EventSendMessage         = "send-message"
	EventTypingStart         = "typing-start"
	EventTypingStop          = "typing-stop"
	EventTriggerNotification = "trigger-notification"
)

// 出站事件
const (
	EventPresenceSnapshot = "presence-snapshot"
	EventMessageDelivered = "message-delivered"
)

// 老客户端的事件名
var eventAliases = map[string]string{
	"addUser":          EventIdentify,
	"sendMessage":      EventSendMessage,
	"typing":           EventTypingStart,
	"stopTyping":       EventTypingStop,
	"sendNotification": EventTriggerNotification,
}

func canonicalEvent(name string) string {
	if c, ok := eventAliases[name]; ok {
		return c
	}
	return name
}

// Envelope 线上帧 {"event": "...", "data": ...}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.ErrArgs.WrapMsg("invalid frame", "err", err.Error())
	}
	if env.Event == "" {
		return nil, errs.ErrArgs.WrapMsg("frame without event")
	}
	env.Event = canonicalEvent(env.Event)
	return &env, nil
}

// EncodeFrame data 为 json.RawMessage 时字节原样拼入帧，不压缩空白也不转义 <>&
func EncodeFrame(event string, data any) ([]byte, error) {
	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := marshalNoEscape(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	if len(raw) > 0 && !json.Valid(raw) {
		return nil, errs.ErrArgs.WrapMsg("frame data is not valid json", "event", event)
	}
	name, err := marshalNoEscape(event)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(name) + len(raw) + 20)
	buf.WriteString(`{"event":`)
	buf.Write(name)
	if len(raw) > 0 {
		buf.WriteString(`,"data":`)
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errs.Wrap(err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// parseIdentify 支持 "u1" 和 {"userId":"u1"} 两种写法
func parseIdentify(data json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", errs.ErrArgs.WrapMsg("invalid identify payload")
	}
	var id string
	switch t := v.(type) {
	case string:
		id = t
	case map[string]any:
		id, _ = decode.ReadString(t, "userId")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errs.ErrArgs.WrapMsg("identify without userId")
	}
	return id, nil
}

type messageHead struct {
	ReceiverID string `json:"receiverId"`
}

type typingPayload struct {
	ReceiverID     string `json:"receiverId"`
	ConversationID string `json:"conversationId"`
}

type triggerPayload struct {
	SenderID      string `json:"senderId"`
	ReceiverID    string `json:"receiverId"`
	Type          string `json:"type"`
	RelatedPostID string `json:"relatedPostId"`
	PostID        string `json:"postId"` // 老字段
}

func decodePayload[T any](data json.RawMessage) (*T, error) {
	if len(data) == 0 {
		return nil, errs.ErrArgs.WrapMsg("empty payload")
	}
	return decode.DecodeJSON[T](data)
}
