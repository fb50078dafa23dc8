package pubsub

import "fmt"

// Channel naming conventions for the consultation system.
// Room-scoped channels are keyed by the room's public UUID so that
// subscribers never need the durable numeric id.
const (
	ChannelRoomChat   = "consultation:room:%s:chat"
	ChannelRoomTyping = "consultation:room:%s:typing"
	ChannelRoomStatus = "consultation:room:%s:status"

	ChannelUserNotifications = "consultation:user:%s:notifications"
	ChannelUserErrors        = "consultation:user:%s:errors"

	// Fleet-wide topic for consultation requests with no vet assigned yet.
	ChannelVetsConsultations = "consultation:vets:requests"
)

// RoomChatChannel returns the chat channel for a room.
func RoomChatChannel(roomUUID string) string {
	return fmt.Sprintf(ChannelRoomChat, roomUUID)
}

// RoomTypingChannel returns the typing-indicator channel for a room.
func RoomTypingChannel(roomUUID string) string {
	return fmt.Sprintf(ChannelRoomTyping, roomUUID)
}

// RoomStatusChannel returns the status channel for a room.
func RoomStatusChannel(roomUUID string) string {
	return fmt.Sprintf(ChannelRoomStatus, roomUUID)
}

// UserNotificationChannel returns the private notification channel for a user,
// keyed by the user's stable login id.
func UserNotificationChannel(loginID string) string {
	return fmt.Sprintf(ChannelUserNotifications, loginID)
}

// UserErrorChannel returns the private error channel for a user.
func UserErrorChannel(loginID string) string {
	return fmt.Sprintf(ChannelUserErrors, loginID)
}
