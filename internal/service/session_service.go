package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/internal/hub"
	"github.com/petlogue/consultation-service/internal/presence"
	"github.com/petlogue/consultation-service/internal/repository"
	"github.com/petlogue/consultation-service/pkg/log"
	"github.com/petlogue/consultation-service/pkg/pubsub"
	"github.com/petlogue/consultation-service/pkg/token"
)

// Notifier is the slice of the notification router the session service uses.
type Notifier interface {
	BroadcastUserJoined(ctx context.Context, roomUUID, username string)
	BroadcastUserLeft(ctx context.Context, roomUUID, username string)
	BroadcastChat(ctx context.Context, roomUUID string, msg *domain.ChatMessage)
	BroadcastTyping(ctx context.Context, frame *domain.TypingFrame)
	BroadcastStatusFrame(ctx context.Context, frame *domain.StatusFrame)
	SendError(ctx context.Context, loginID, code, message string)
}

type sessionService struct {
	hub       *hub.Hub
	presence  *presence.Tracker
	validator token.Validator
	rooms     repository.RoomRepository
	messages  repository.MessageRepository
	directory repository.UserDirectory
	notifier  Notifier
}

// NewSessionService creates the WebSocket session service.
func NewSessionService(
	h *hub.Hub,
	tracker *presence.Tracker,
	validator token.Validator,
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	directory repository.UserDirectory,
	notifier Notifier,
) SessionService {
	return &sessionService{
		hub:       h,
		presence:  tracker,
		validator: validator,
		rooms:     rooms,
		messages:  messages,
		directory: directory,
		notifier:  notifier,
	}
}

// HandleConnect validates the bearer token from the CONNECT frame, falling
// back to the token captured from the upgrade query string. Either way the
// connection stays open; only its privileges differ.
func (s *sessionService) HandleConnect(ctx context.Context, client *hub.Client, authorization string) error {
	raw := ""
	if tok, ok := token.FromBearer(authorization); ok {
		raw = tok
	}
	if raw == "" {
		raw = client.QueryToken
	}

	if raw == "" {
		s.presence.Track(client.ID, "")
		return client.SendMessage(&domain.ConnectedFrame{
			Type:          domain.FrameTypeConnected,
			Authenticated: false,
			Message:       "anonymous connection",
		})
	}

	principal, err := s.validator.Validate(raw)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("connect token rejected")
		s.presence.Track(client.ID, "")
		return client.SendMessage(&domain.ConnectedFrame{
			Type:          domain.FrameTypeConnected,
			Authenticated: false,
			Message:       "invalid token",
		})
	}

	client.Authenticate(principal)
	s.hub.Identify(client, principal.LoginID)
	s.presence.Track(client.ID, principal.LoginID)

	log.Ctx(ctx).Info().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldLoginID, principal.LoginID).
		Msg("connection authenticated")

	return client.SendMessage(&domain.ConnectedFrame{
		Type:          domain.FrameTypeConnected,
		Authenticated: true,
		LoginID:       principal.LoginID,
		Role:          principal.Role,
	})
}

// HandleSubscribe attaches the connection to the room's chat, typing and
// status topics. Only the room's participants (and admins) may subscribe.
func (s *sessionService) HandleSubscribe(ctx context.Context, client *hub.Client, roomUUID string) error {
	principal := client.Principal()
	if principal == nil {
		return s.sendError(ctx, client, domain.ErrCodeUnauthorized, "authentication required")
	}

	room, err := s.rooms.GetByUUID(ctx, roomUUID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return s.sendError(ctx, client, domain.ErrCodeNotFound, "consultation room not found")
		}
		return s.sendError(ctx, client, domain.ErrCodeInternal, "failed to load consultation room")
	}

	if !s.mayAccess(principal, room) {
		return s.sendError(ctx, client, domain.ErrCodeForbidden, "not a participant of this consultation")
	}

	s.hub.Subscribe(client, pubsub.RoomChatChannel(roomUUID))
	s.hub.Subscribe(client, pubsub.RoomTypingChannel(roomUUID))
	s.hub.Subscribe(client, pubsub.RoomStatusChannel(roomUUID))
	s.presence.MarkPresent(client.ID, roomUUID)

	if err := client.SendMessage(&domain.SubscribedFrame{Type: domain.FrameTypeSubscribed, RoomUUID: roomUUID}); err != nil {
		return err
	}

	s.notifier.BroadcastUserJoined(ctx, roomUUID, s.displayName(ctx, principal))
	return nil
}

// HandleUnsubscribe detaches the connection from the room's topics. The leave
// is only announced, and presence only cleared, when the connection was
// actually subscribed to that room; otherwise the later disconnect would lose
// the leave for the room it really joined.
func (s *sessionService) HandleUnsubscribe(ctx context.Context, client *hub.Client, roomUUID string) error {
	principal := client.Principal()
	if principal == nil {
		return s.sendError(ctx, client, domain.ErrCodeUnauthorized, "authentication required")
	}

	if current, ok := s.presence.RoomFor(client.ID); !ok || current != roomUUID {
		return s.sendError(ctx, client, domain.ErrCodeBadRequest, "not subscribed to this room")
	}

	s.hub.Unsubscribe(client, pubsub.RoomChatChannel(roomUUID))
	s.hub.Unsubscribe(client, pubsub.RoomTypingChannel(roomUUID))
	s.hub.Unsubscribe(client, pubsub.RoomStatusChannel(roomUUID))
	s.presence.MarkAbsent(client.ID)

	s.notifier.BroadcastUserLeft(ctx, roomUUID, s.displayName(ctx, principal))
	return nil
}

// HandleSend persists the chat message, then echoes it to the room's chat
// topic with the sender's display name attached.
func (s *sessionService) HandleSend(ctx context.Context, client *hub.Client, raw []byte) error {
	principal := client.Principal()
	if principal == nil {
		return s.sendError(ctx, client, domain.ErrCodeUnauthorized, "authentication required")
	}

	var frame domain.ChatSendFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.RoomUUID == "" {
		return s.sendError(ctx, client, domain.ErrCodeBadRequest, "invalid send frame")
	}

	if current, ok := s.presence.RoomFor(client.ID); !ok || current != frame.RoomUUID {
		return s.sendError(ctx, client, domain.ErrCodeForbidden, "not subscribed to this room")
	}

	kind := domain.KindText
	switch domain.MessageKind(frame.Kind) {
	case "", domain.KindText:
	case domain.KindImage, domain.KindFile:
		kind = domain.MessageKind(frame.Kind)
	default:
		return s.sendError(ctx, client, domain.ErrCodeBadRequest, "unknown message kind")
	}

	room, err := s.rooms.GetByUUID(ctx, frame.RoomUUID)
	if err != nil {
		return s.sendError(ctx, client, domain.ErrCodeInternal, "failed to load consultation room")
	}
	if room.Status.IsTerminal() {
		return s.sendError(ctx, client, domain.ErrCodeForbidden, "consultation is closed")
	}

	msg := &domain.ChatMessage{
		RoomID:       room.ID,
		SenderID:     principal.UserID,
		Role:         domain.RoleForUserRole(principal.Role),
		Kind:         kind,
		Content:      frame.Content,
		FileURL:      frame.FileURL,
		FileName:     frame.FileName,
		FileSize:     frame.FileSize,
		ThumbnailURL: frame.ThumbnailURL,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return s.sendError(ctx, client, domain.ErrCodeInternal, "failed to persist message")
	}

	msg.SenderName = s.displayName(ctx, principal)
	s.notifier.BroadcastChat(ctx, frame.RoomUUID, msg)
	return nil
}

// HandleTyping stamps and rebroadcasts the typing indicator.
func (s *sessionService) HandleTyping(ctx context.Context, client *hub.Client, raw []byte) error {
	principal := client.Principal()
	if principal == nil {
		return s.sendError(ctx, client, domain.ErrCodeUnauthorized, "authentication required")
	}

	var frame domain.TypingFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.RoomUUID == "" {
		return s.sendError(ctx, client, domain.ErrCodeBadRequest, "invalid typing frame")
	}

	frame.Type = domain.FrameTypeTyping
	frame.Username = s.displayName(ctx, principal)
	frame.Timestamp = time.Now()
	s.notifier.BroadcastTyping(ctx, &frame)
	return nil
}

// HandleStatus stamps and rebroadcasts the client status signal. It never
// causes a lifecycle transition by itself.
func (s *sessionService) HandleStatus(ctx context.Context, client *hub.Client, raw []byte) error {
	principal := client.Principal()
	if principal == nil {
		return s.sendError(ctx, client, domain.ErrCodeUnauthorized, "authentication required")
	}

	var frame domain.StatusFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.RoomUUID == "" {
		return s.sendError(ctx, client, domain.ErrCodeBadRequest, "invalid status frame")
	}

	frame.Type = domain.FrameTypeStatus
	frame.Username = s.displayName(ctx, principal)
	frame.Timestamp = time.Now()
	s.notifier.BroadcastStatusFrame(ctx, &frame)
	return nil
}

// HandleDisconnect announces the leave if the connection was in a room.
// Called from the read pump teardown, after the hub unregistered the client.
func (s *sessionService) HandleDisconnect(ctx context.Context, client *hub.Client) {
	loginID, roomUUID, inRoom := s.presence.Remove(client.ID)
	if !inRoom {
		return
	}
	username := loginID
	if principal := client.Principal(); principal != nil {
		username = s.displayName(ctx, principal)
	}
	s.notifier.BroadcastUserLeft(ctx, roomUUID, username)
}

func (s *sessionService) mayAccess(principal *token.Principal, room *domain.Room) bool {
	if principal.Role == "admin" {
		return true
	}
	return principal.UserID == room.UserID || principal.UserID == room.VetID
}

// displayName resolves the principal's nickname, falling back to the login id.
func (s *sessionService) displayName(ctx context.Context, principal *token.Principal) string {
	if profile, err := s.directory.UserByID(ctx, principal.UserID); err == nil && profile.Nickname != "" {
		return profile.Nickname
	}
	return principal.LoginID
}

// sendError delivers an error to the connection. Authenticated users also get
// it on their private error address so other devices see it.
func (s *sessionService) sendError(ctx context.Context, client *hub.Client, code, message string) error {
	if loginID := client.LoginID(); loginID != "" {
		s.notifier.SendError(ctx, loginID, code, message)
		return nil
	}
	return client.SendMessage(domain.NewErrorFrame(code, message))
}
