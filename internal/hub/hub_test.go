package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petlogue/consultation-service/internal/config"
	"github.com/petlogue/consultation-service/pkg/token"
)

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
	}
}

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(testWSConfig())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func newTestClient(h *Hub, id string) *Client {
	return NewClient(id, h, nil, testWSConfig())
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestHub_BroadcastReachesSubscribersOnly(t *testing.T) {
	req := require.New(t)
	h := newRunningHub(t)

	subscriber := newTestClient(h, "conn-1")
	bystander := newTestClient(h, "conn-2")
	h.Register(subscriber)
	h.Register(bystander)

	h.Subscribe(subscriber, "consultation:room:abc:chat")
	req.Equal(1, h.SubscriberCount("consultation:room:abc:chat"))

	err := h.Broadcast("consultation:room:abc:chat", map[string]string{"type": "message"})
	req.NoError(err)

	data := receive(t, subscriber)
	req.Contains(string(data), "message")

	select {
	case <-bystander.Send:
		t.Fatal("bystander received a frame it never subscribed to")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastToEmptyTopicIsNotAnError(t *testing.T) {
	req := require.New(t)
	h := newRunningHub(t)

	req.NoError(h.Broadcast("consultation:room:empty:chat", map[string]string{"type": "message"}))
}

func TestHub_SendToUserRequiresIdentify(t *testing.T) {
	req := require.New(t)
	h := newRunningHub(t)

	client := newTestClient(h, "conn-1")
	h.Register(client)

	// Before Identify there is no recipient
	err := h.SendToUser("vet01", map[string]string{"type": "notification"})
	req.ErrorIs(err, ErrNoRecipient)

	client.Authenticate(&token.Principal{UserID: 20, LoginID: "vet01", Role: "vet"})
	h.Identify(client, "vet01")

	req.NoError(h.SendToUser("vet01", map[string]string{"type": "notification"}))
	data := receive(t, client)
	req.Contains(string(data), "notification")
}

func TestHub_SendToUserReachesEveryConnection(t *testing.T) {
	req := require.New(t)
	h := newRunningHub(t)

	phone := newTestClient(h, "conn-a")
	laptop := newTestClient(h, "conn-b")
	h.Register(phone)
	h.Register(laptop)
	h.Identify(phone, "owner01")
	h.Identify(laptop, "owner01")

	req.NoError(h.SendToUser("owner01", map[string]string{"type": "notification"}))
	receive(t, phone)
	receive(t, laptop)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	req := require.New(t)
	h := newRunningHub(t)

	client := newTestClient(h, "conn-1")
	h.Register(client)
	h.Subscribe(client, "consultation:room:abc:typing")
	h.Unsubscribe(client, "consultation:room:abc:typing")

	req.Equal(0, h.SubscriberCount("consultation:room:abc:typing"))
}

func TestHub_UnregisterDropsSubscriptionsAndIdentity(t *testing.T) {
	req := require.New(t)
	h := newRunningHub(t)

	client := newTestClient(h, "conn-1")
	h.Register(client)
	h.Identify(client, "owner01")
	h.Subscribe(client, "consultation:room:abc:chat")

	h.Unregister(client)

	req.Eventually(func() bool {
		return h.SubscriberCount("consultation:room:abc:chat") == 0
	}, time.Second, 10*time.Millisecond)

	req.Eventually(func() bool {
		return h.SendToUser("owner01", map[string]string{"type": "x"}) == ErrNoRecipient
	}, time.Second, 10*time.Millisecond)
}

func TestHub_UnregisterKeepsOtherConnectionsOfUser(t *testing.T) {
	req := require.New(t)
	h := newRunningHub(t)

	// Both connections identified as the same user; neither ever carried a
	// principal, so cleanup must key off the connection id alone.
	phone := newTestClient(h, "conn-a")
	laptop := newTestClient(h, "conn-b")
	h.Register(phone)
	h.Register(laptop)
	h.Identify(phone, "owner01")
	h.Identify(laptop, "owner01")

	h.Unregister(phone)

	// Once the phone's entry is gone, addressed delivery reaches only the
	// laptop and never touches the closed channel.
	req.Eventually(func() bool {
		if err := h.SendToUser("owner01", map[string]string{"type": "notification"}); err != nil {
			return false
		}
		select {
		case <-laptop.Send:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestHub_RunStopsOnContextCancel(t *testing.T) {
	h := NewHub(testWSConfig())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}
}
