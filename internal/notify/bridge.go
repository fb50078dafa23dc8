package notify

import (
	"context"
	"strings"

	"github.com/petlogue/consultation-service/pkg/log"
	"github.com/petlogue/consultation-service/pkg/pubsub"
)

// Bridge replays events mirrored by other instances into the local hub, so a
// subscriber connected here still sees events a peer instance produced.
// Events stamped with this instance's own origin are skipped; local delivery
// already happened.
type Bridge struct {
	hub    Broadcaster
	sub    pubsub.Subscriber
	origin string
}

// NewBridge creates a bridge. origin must match the local router's origin.
func NewBridge(hub Broadcaster, sub pubsub.Subscriber, origin string) *Bridge {
	return &Bridge{hub: hub, sub: sub, origin: origin}
}

// Run consumes mirrored events until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	events, err := b.sub.SubscribePattern(ctx, "consultation:*")
	if err != nil {
		return err
	}

	log.L().Info().Msg("redis event bridge started")
	for {
		select {
		case <-ctx.Done():
			log.L().Info().Msg("redis event bridge stopped")
			return nil
		case event, ok := <-events:
			if !ok {
				log.L().Warn().Msg("redis event stream closed")
				return nil
			}
			if event.Origin == b.origin {
				continue
			}
			b.dispatch(ctx, event)
		}
	}
}

// dispatch routes a mirrored event by its channel shape. Payloads are wire
// frames already; they pass through unmodified.
func (b *Bridge) dispatch(ctx context.Context, event *pubsub.Event) {
	l := log.Ctx(ctx)
	parts := strings.Split(event.Channel, ":")

	// consultation:user:<login_id>:notifications|errors
	if len(parts) == 4 && parts[1] == "user" {
		if err := b.hub.SendToUser(parts[2], event.Payload); err != nil {
			l.Debug().Err(err).Str("channel", event.Channel).Msg("no local connection for mirrored event")
		}
		return
	}

	// Room topics and the fleet-wide vet channel broadcast on the channel
	// name itself; local hub topics use the same naming.
	if err := b.hub.Broadcast(event.Channel, event.Payload); err != nil {
		l.Warn().Err(err).Str("channel", event.Channel).Msg("failed to rebroadcast mirrored event")
	}
}
