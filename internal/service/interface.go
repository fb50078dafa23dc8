package service

import (
	"context"

	"github.com/petlogue/consultation-service/internal/hub"
)

// SessionService implements the behavior behind every WebSocket frame type.
// The handler only decodes frames and dispatches here.
type SessionService interface {
	// HandleConnect runs the in-protocol handshake. A missing or invalid
	// token leaves the connection anonymous rather than closing it.
	HandleConnect(ctx context.Context, client *hub.Client, authorization string) error

	// HandleSubscribe attaches the connection to a room's topics and
	// announces the join.
	HandleSubscribe(ctx context.Context, client *hub.Client, roomUUID string) error

	// HandleUnsubscribe detaches the connection from a room's topics and
	// announces the leave.
	HandleUnsubscribe(ctx context.Context, client *hub.Client, roomUUID string) error

	// HandleSend persists an inbound chat message and echoes it to the room.
	HandleSend(ctx context.Context, client *hub.Client, raw []byte) error

	// HandleTyping rebroadcasts a typing indicator. Never persisted.
	HandleTyping(ctx context.Context, client *hub.Client, raw []byte) error

	// HandleStatus stamps and rebroadcasts a client status signal.
	HandleStatus(ctx context.Context, client *hub.Client, raw []byte) error

	// HandleDisconnect cleans up presence and announces the leave if the
	// connection was in a room.
	HandleDisconnect(ctx context.Context, client *hub.Client)
}
