package domain

import "time"

// WebSocket frame types from client.
const (
	FrameTypeConnect     = "connect"
	FrameTypeSubscribe   = "subscribe"
	FrameTypeUnsubscribe = "unsubscribe"
	FrameTypeSend        = "send"
	FrameTypeTyping      = "typing"
	FrameTypeStatus      = "status"
	FrameTypePing        = "ping"
)

// WebSocket frame types to client.
const (
	FrameTypeConnected    = "connected"
	FrameTypeSubscribed   = "subscribed"
	FrameTypeMessage      = "message"
	FrameTypeNotification = "notification"
	FrameTypeError        = "error"
	FrameTypePong         = "pong"
)

// Error codes delivered on a user's private error address.
const (
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// BaseFrame is the base structure for all WebSocket frames.
type BaseFrame struct {
	Type string `json:"type"`
}

// Client -> Server frames

// ConnectFrame is the one privileged frame type: it carries the bearer token
// validated during the protocol-level handshake. Absence or invalidity leaves
// the connection anonymous rather than refusing it.
type ConnectFrame struct {
	Type          string `json:"type"`
	Authorization string `json:"authorization,omitempty"` // "Bearer <token>"
}

// SubscribeFrame subscribes the connection to a room's topics.
type SubscribeFrame struct {
	Type     string `json:"type"`
	RoomUUID string `json:"room_uuid"`
}

// ChatSendFrame carries an inbound chat message for a room.
type ChatSendFrame struct {
	Type     string `json:"type"`
	RoomUUID string `json:"room_uuid"`
	Content  string `json:"content"`
	Kind     string `json:"message_kind,omitempty"`

	FileURL      string `json:"file_url,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// TypingFrame carries a typing indicator; rebroadcast verbatim, never persisted.
type TypingFrame struct {
	Type      string    `json:"type"`
	RoomUUID  string    `json:"room_uuid"`
	Typing    bool      `json:"typing"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// StatusFrame carries explicit join/leave/start/end signaling from the client.
// It is stamped and rebroadcast; it does not by itself cause a lifecycle
// transition.
type StatusFrame struct {
	Type      string    `json:"type"`
	RoomUUID  string    `json:"room_uuid"`
	Status    string    `json:"status"`
	Username  string    `json:"username,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Server -> Client frames

// ConnectedFrame reports the handshake outcome.
type ConnectedFrame struct {
	Type          string `json:"type"`
	Authenticated bool   `json:"authenticated"`
	LoginID       string `json:"login_id,omitempty"`
	Role          string `json:"role,omitempty"`
	Message       string `json:"message,omitempty"`
}

// SubscribedFrame confirms a room subscription.
type SubscribedFrame struct {
	Type     string `json:"type"`
	RoomUUID string `json:"room_uuid"`
}

// MessageFrame wraps a persisted chat message echoed to room subscribers.
type MessageFrame struct {
	Type     string       `json:"type"`
	RoomUUID string       `json:"room_uuid"`
	Message  *ChatMessage `json:"message"`
}

// NotificationFrame wraps a routed notification event with the topic it was
// delivered on.
type NotificationFrame struct {
	Type  string        `json:"type"`
	Topic string        `json:"topic,omitempty"`
	Event *Notification `json:"event"`
}

// NewNotificationFrame creates a notification frame.
func NewNotificationFrame(topic string, event *Notification) *NotificationFrame {
	return &NotificationFrame{Type: FrameTypeNotification, Topic: topic, Event: event}
}

// ErrorFrame is delivered privately to the originating user's error address.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorFrame creates an error frame.
func NewErrorFrame(code, message string) *ErrorFrame {
	return &ErrorFrame{Type: FrameTypeError, Code: code, Message: message}
}
