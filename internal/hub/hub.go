package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/petlogue/consultation-service/internal/config"
	"github.com/petlogue/consultation-service/pkg/log"
)

// ErrNoRecipient is returned by addressed delivery when no connection is
// registered for the target user. The notification router treats it as a
// delivery failure and retries.
var ErrNoRecipient = errors.New("no connection registered for user")

// Hub owns all live WebSocket connections and the topic subscription tables.
// Topics are the logical addresses of the real-time scheme: room chat, room
// typing, room status, fleet-wide vet alerts. Addressed delivery goes to
// every connection identified as the target login id.
type Hub struct {
	clients map[string]*Client            // connection id -> client
	topics  map[string]map[string]*Client // topic -> connection id -> client
	users   map[string]map[string]*Client // login id -> connection id -> client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *topicMessage

	mu     sync.RWMutex
	config config.WebSocketConfig
}

type topicMessage struct {
	Topic   string
	Message []byte
	Exclude string // connection id to exclude
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		topics:     make(map[string]map[string]*Client),
		users:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicMessage, 256),
		config:     cfg,
	}
}

// Run processes registration and broadcast events until the context is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.L().Info().Msg("hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				h.dropClientLocked(client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if subs, ok := h.topics[msg.Topic]; ok {
				for connID, client := range subs {
					if connID == msg.Exclude {
						continue
					}
					select {
					case client.Send <- msg.Message:
					default:
						go h.removeClient(client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) dropClientLocked(client *Client) {
	for topic, subs := range h.topics {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	// Identify may have bound the connection under any login id, so the scan
	// goes by connection id rather than trusting the client's principal.
	for loginID, conns := range h.users {
		if _, ok := conns[client.ID]; !ok {
			continue
		}
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(h.users, loginID)
		}
	}
	delete(h.clients, client.ID)
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub and all its subscriptions.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Identify binds a client to its authenticated login id so addressed
// delivery can reach it. Called after a successful CONNECT handshake.
func (h *Hub) Identify(client *Client, loginID string) {
	if loginID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[loginID]; !ok {
		h.users[loginID] = make(map[string]*Client)
	}
	h.users[loginID][client.ID] = client
}

// Subscribe adds the client to a topic.
func (h *Hub) Subscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[string]*Client)
	}
	h.topics[topic][client.ID] = client
	log.L().Info().Str(log.FieldConnID, client.ID).Str("topic", topic).Msg("client subscribed")
}

// Unsubscribe removes the client from a topic.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client.ID)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	log.L().Info().Str(log.FieldConnID, client.ID).Str("topic", topic).Msg("client unsubscribed")
}

// Broadcast delivers a message to every current subscriber of a topic.
// A topic with no subscribers is not an error.
func (h *Hub) Broadcast(topic string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.broadcast <- &topicMessage{Topic: topic, Message: data}
	return nil
}

// SendToUser delivers a message to every connection identified as the login
// id. Returns ErrNoRecipient if the user has no live connection.
func (h *Hub) SendToUser(loginID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.users[loginID]
	if !ok || len(conns) == 0 {
		return ErrNoRecipient
	}
	for _, client := range conns {
		select {
		case client.Send <- data:
		default:
			go h.removeClient(client)
		}
	}
	return nil
}

// SubscriberCount returns the number of subscribers of a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) removeClient(client *Client) {
	h.unregister <- client
}
