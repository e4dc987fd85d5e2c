package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	payload := []byte("hello")
	hub.Broadcast("session-1", payload)

	select {
	case msg := <-client.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubBroadcastEventEnvelope(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.BroadcastEvent("session-1", EventPace, map[string]float64{"sec_per_km": 412.5})

	select {
	case msg := <-client.Send:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("bad envelope: %v", err)
		}
		if ev.Type != EventPace || ev.SessionID != "session-1" {
			t.Fatalf("unexpected event %+v", ev)
		}
		var body map[string]float64
		if err := json.Unmarshal(ev.Payload, &body); err != nil || body["sec_per_km"] != 412.5 {
			t.Fatalf("unexpected payload %s", ev.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for event")
	}
}

func TestHubLateSubscriberNoReplay(t *testing.T) {
	hub := NewHub(nil)
	hub.Broadcast("session-1", []byte("early"))

	late := hub.Register("session-1")
	defer hub.Unregister(late)

	hub.Broadcast("session-1", []byte("later"))
	select {
	case msg := <-late.Send:
		if string(msg) != "later" {
			t.Fatalf("late subscriber should only see new events, got %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch == "" {
		t.Fatalf("expected channel")
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	if sessionIDFromChannel("bad") != "" {
		t.Fatalf("expected empty session id")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil)
	client := hub.Register("session-2")
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
}

func TestHubRedisBridgeCrossInstance(t *testing.T) {
	s := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer clientB.Close()

	hubA := NewHub(clientA)
	hubB := NewHub(clientB)

	ws := hubA.Register("session-redis")
	defer hubA.Unregister(ws)

	// Let both pattern subscriptions settle before publishing.
	time.Sleep(50 * time.Millisecond)

	// A broadcast on another instance must reach this instance's subscriber.
	hubB.Broadcast("session-redis", []byte("cross-instance"))

	select {
	case msg := <-ws.Send:
		if string(msg) != "cross-instance" {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for cross-instance broadcast")
	}
}

func TestHubRedisBridgeIgnoresOwnEcho(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	ws := hub.Register("session-echo")
	defer hub.Unregister(ws)

	time.Sleep(50 * time.Millisecond)
	hub.Broadcast("session-echo", []byte("ping"))

	select {
	case msg := <-ws.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for local broadcast")
	}

	// The publish mirrored onto redis comes back to this instance; the
	// origin tag must keep it from being delivered a second time.
	select {
	case msg := <-ws.Send:
		t.Fatalf("duplicate delivery via redis echo: %q", msg)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestHubRedisBridgeDropsMalformedFrame(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client)
	ws := hub.Register("session-bad-frame")
	defer hub.Unregister(ws)

	time.Sleep(50 * time.Millisecond)
	if err := client.Publish(context.Background(), redisChannel("session-bad-frame"), "not json").Err(); err != nil {
		t.Fatalf("publish error: %v", err)
	}

	select {
	case msg := <-ws.Send:
		t.Fatalf("malformed frame delivered: %q", msg)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	server.Close()
	defer client.Close()

	hub := NewHub(client)
	clientNode := hub.Register("session-bad")
	defer hub.Unregister(clientNode)

	hub.Broadcast("session-bad", []byte("ping"))
}
