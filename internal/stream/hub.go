// Package stream fans live session events out to websocket subscribers.
// Every accepted point, smoothed pace update, heart-rate sample and split
// record goes through the hub; a redis bridge forwards events between
// service instances so a subscriber can attach anywhere.
package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is the envelope every live payload travels in.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	At        time.Time       `json:"at"`
	Payload   json.RawMessage `json:"payload"`
}

// Event types emitted during a live session.
const (
	EventPoint     = "point"
	EventRejection = "rejection"
	EventPace      = "pace"
	EventHeartRate = "heartrate"
	EventSplit     = "split"
	EventAdvisory  = "advisory"
)

type Hub struct {
	id      string // distinguishes this instance's publishes from peers' on the bridge
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	SessionID string
	Send      chan []byte
}

// bridgeFrame is the wire format on the redis bridge. Payload round-trips
// arbitrary bytes; Origin lets an instance drop the echo of its own publish.
type bridgeFrame struct {
	Origin  string `json:"origin"`
	Payload []byte `json:"payload"`
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		id:      uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

// Register attaches a late subscriber mid-session; it receives only events
// broadcast after this call.
func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// BroadcastEvent wraps payload in an Event envelope and fans it out.
// Marshal failures are logged and dropped; a live display gap is preferable
// to stalling ingestion.
func (h *Hub) BroadcastEvent(sessionID, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("stream: marshal %s event: %v", eventType, err)
		return
	}
	data, err := json.Marshal(Event{
		Type:      eventType,
		SessionID: sessionID,
		At:        time.Now(),
		Payload:   raw,
	})
	if err != nil {
		log.Printf("stream: marshal envelope: %v", err)
		return
	}
	h.Broadcast(sessionID, data)
}

// Broadcast delivers raw bytes to every subscriber of the session, dropping
// on full client buffers, and mirrors the payload onto redis.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[sessionID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}

	if h.redis != nil {
		frame, err := json.Marshal(bridgeFrame{Origin: h.id, Payload: payload})
		if err != nil {
			log.Printf("stream: marshal bridge frame: %v", err)
			return
		}
		if err := h.redis.Publish(context.Background(), redisChannel(sessionID), frame).Err(); err != nil {
			log.Printf("stream: redis publish error: %v", err)
		}
	}
}

// subscribeRedis forwards peers' publishes to local subscribers. Channel
// names are a glob, so this must be a pattern subscription.
func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "session:*:live")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var frame bridgeFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			log.Printf("stream: bad bridge frame: %v", err)
			continue
		}
		if frame.Origin == h.id {
			continue
		}

		sessionID := sessionIDFromChannel(msg.Channel)
		h.mu.RLock()
		clients := h.clients[sessionID]
		h.mu.RUnlock()
		for client := range clients {
			select {
			case client.Send <- frame.Payload:
			default:
			}
		}
	}
}

func redisChannel(sessionID string) string {
	return "session:" + sessionID + ":live"
}

func sessionIDFromChannel(ch string) string {
	// session:{id}:live
	const prefix = "session:"
	const suffix = ":live"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
