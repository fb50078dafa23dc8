package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/petlogue/consultation-service/internal/domain"
	"github.com/petlogue/consultation-service/pkg/log"
	"github.com/petlogue/consultation-service/pkg/pubsub"
)

// Broadcaster is the hub surface the router delivers through.
type Broadcaster interface {
	Broadcast(topic string, message interface{}) error
	SendToUser(loginID string, message interface{}) error
}

// Config holds the router's delivery retry policy.
type Config struct {
	// MaxAttempts caps addressed delivery at this many tries per event.
	MaxAttempts int `mapstructure:"notify_max_attempts"`
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration `mapstructure:"notify_retry_delay"`
	// Origin identifies this instance on mirrored events so the bridge can
	// skip events it published itself. Defaults to a random id.
	Origin string `mapstructure:"-"`
}

// Router fans consultation events out to WebSocket subscribers and, when a
// publisher is configured, mirrors them onto Redis channels for other
// instances. Delivery is best-effort: failures are retried a bounded number
// of times, then logged and dropped. No caller ever sees a delivery error.
type Router struct {
	hub       Broadcaster
	publisher pubsub.Publisher // may be nil
	cfg       Config

	sleep func(time.Duration)
}

// NewRouter creates a router. publisher may be nil when Redis mirroring is
// disabled.
func NewRouter(hub Broadcaster, publisher pubsub.Publisher, cfg Config) *Router {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Origin == "" {
		cfg.Origin = uuid.New().String()
	}
	return &Router{
		hub:       hub,
		publisher: publisher,
		cfg:       cfg,
		sleep:     time.Sleep,
	}
}

// Origin returns the id this instance stamps on mirrored events.
func (r *Router) Origin() string {
	return r.cfg.Origin
}

// NotifyNewConsultation alerts the assigned vet that a consultation request
// is waiting. When no vet is assigned the alert goes to the fleet-wide topic
// instead, so any available vet can pick it up.
func (r *Router) NotifyNewConsultation(ctx context.Context, n *domain.Notification, vetLoginID string) {
	if vetLoginID == "" {
		topic := pubsub.ChannelVetsConsultations
		frame := domain.NewNotificationFrame(topic, n)
		r.broadcast(ctx, topic, frame)
		r.mirror(ctx, topic, n.Type, n.RoomUUID, frame)
		return
	}

	topic := pubsub.UserNotificationChannel(vetLoginID)
	frame := domain.NewNotificationFrame(topic, n)
	r.sendToUser(ctx, vetLoginID, frame)
	r.mirror(ctx, topic, n.Type, n.RoomUUID, frame)
}

// BroadcastStatusChange announces a lifecycle transition on the room's status
// topic.
func (r *Router) BroadcastStatusChange(ctx context.Context, room *domain.Room, status domain.RoomStatus, message string) {
	n := domain.NewStatusChangeNotification(room, status, message)
	topic := pubsub.RoomStatusChannel(room.UUID)
	frame := domain.NewNotificationFrame(topic, n)
	r.broadcast(ctx, topic, frame)
	r.mirror(ctx, topic, n.Type, n.RoomUUID, frame)
}

// BroadcastConsultationEnded announces completion on the room's status topic,
// carrying the computed duration.
func (r *Router) BroadcastConsultationEnded(ctx context.Context, room *domain.Room) {
	n := &domain.Notification{
		Type:            domain.EventConsultationEnded,
		RoomID:          room.ID,
		RoomUUID:        room.UUID,
		Status:          string(room.Status),
		DurationMinutes: room.DurationMinutes,
		Timestamp:       time.Now(),
	}
	topic := pubsub.RoomStatusChannel(room.UUID)
	frame := domain.NewNotificationFrame(topic, n)
	r.broadcast(ctx, topic, frame)
	r.mirror(ctx, topic, n.Type, n.RoomUUID, frame)
}

// BroadcastUserJoined announces a user joining a room's session.
func (r *Router) BroadcastUserJoined(ctx context.Context, roomUUID, username string) {
	r.broadcastPresence(ctx, domain.EventUserJoined, roomUUID, username)
}

// BroadcastUserLeft announces a user leaving a room's session.
func (r *Router) BroadcastUserLeft(ctx context.Context, roomUUID, username string) {
	r.broadcastPresence(ctx, domain.EventUserLeft, roomUUID, username)
}

func (r *Router) broadcastPresence(ctx context.Context, event, roomUUID, username string) {
	n := &domain.Notification{
		Type:      event,
		RoomUUID:  roomUUID,
		Username:  username,
		Timestamp: time.Now(),
	}
	topic := pubsub.RoomStatusChannel(roomUUID)
	frame := domain.NewNotificationFrame(topic, n)
	r.broadcast(ctx, topic, frame)
	r.mirror(ctx, topic, n.Type, n.RoomUUID, frame)
}

// BroadcastChat echoes a persisted chat message to the room's chat topic.
func (r *Router) BroadcastChat(ctx context.Context, roomUUID string, msg *domain.ChatMessage) {
	frame := &domain.MessageFrame{
		Type:     domain.FrameTypeMessage,
		RoomUUID: roomUUID,
		Message:  msg,
	}
	topic := pubsub.RoomChatChannel(roomUUID)
	r.broadcast(ctx, topic, frame)
	r.mirror(ctx, topic, domain.FrameTypeMessage, roomUUID, frame)
}

// BroadcastTyping rebroadcasts a typing indicator on the room's typing topic.
func (r *Router) BroadcastTyping(ctx context.Context, frame *domain.TypingFrame) {
	topic := pubsub.RoomTypingChannel(frame.RoomUUID)
	r.broadcast(ctx, topic, frame)
	r.mirror(ctx, topic, domain.FrameTypeTyping, frame.RoomUUID, frame)
}

// BroadcastStatusFrame rebroadcasts a client status signal on the room's
// status topic.
func (r *Router) BroadcastStatusFrame(ctx context.Context, frame *domain.StatusFrame) {
	topic := pubsub.RoomStatusChannel(frame.RoomUUID)
	r.broadcast(ctx, topic, frame)
	r.mirror(ctx, topic, domain.FrameTypeStatus, frame.RoomUUID, frame)
}

// SendError delivers an error frame to the user's private error address.
func (r *Router) SendError(ctx context.Context, loginID, code, message string) {
	if loginID == "" {
		return
	}
	frame := domain.NewErrorFrame(code, message)
	r.sendToUser(ctx, loginID, frame)
	r.mirror(ctx, pubsub.UserErrorChannel(loginID), domain.FrameTypeError, "", frame)
}

// broadcast delivers on a topic. An empty topic audience is not a failure,
// so broadcasts are not retried.
func (r *Router) broadcast(ctx context.Context, topic string, message interface{}) {
	if err := r.hub.Broadcast(topic, message); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("topic", topic).Msg("broadcast failed")
	}
}

// sendToUser attempts addressed delivery, retrying on failure with a fixed
// delay. After the final attempt the event is dropped and logged.
func (r *Router) sendToUser(ctx context.Context, loginID string, message interface{}) {
	l := log.Ctx(ctx)

	var err error
	attempts := r.cfg.MaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = r.hub.SendToUser(loginID, message); err == nil {
			return
		}
		if attempt < attempts {
			l.Debug().Err(err).
				Str(log.FieldLoginID, loginID).
				Int("attempt", attempt).
				Msg("addressed delivery failed, retrying")
			r.sleep(r.cfg.RetryDelay)
		}
	}

	l.Warn().Err(err).
		Str(log.FieldLoginID, loginID).
		Int("attempts", attempts).
		Msg("addressed delivery failed, dropping notification")
}

// mirror publishes the event onto the matching Redis channel when mirroring
// is enabled. Mirror failures never affect local delivery.
func (r *Router) mirror(ctx context.Context, channel, eventType, roomUUID string, payload interface{}) {
	if r.publisher == nil {
		return
	}
	l := log.Ctx(ctx)
	event, err := pubsub.NewEvent(eventType, roomUUID, payload)
	if err != nil {
		l.Warn().Err(err).Str("channel", channel).Msg("failed to encode event for redis mirror")
		return
	}
	event.Origin = r.cfg.Origin
	if err := r.publisher.Publish(ctx, channel, event); err != nil {
		l.Warn().Err(err).Str("channel", channel).Msg("failed to mirror event to redis")
	}
}
