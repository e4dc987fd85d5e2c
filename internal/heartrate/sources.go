package heartrate

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// Source tags a sample's provenance. Provenance is diagnostic only; both
// push sources write through the same acceptance path with no precedence.
type Source int

const (
	SourceWearable Source = iota
	SourceHealthStore
	SourceManual
)

func (s Source) String() string {
	switch s {
	case SourceWearable:
		return "wearable"
	case SourceHealthStore:
		return "health_store"
	case SourceManual:
		return "manual"
	}
	return "unknown"
}

// Sample is one accepted heart-rate reading. Immutable.
type Sample struct {
	Time   time.Time `json:"timestamp"`
	Bpm    int       `json:"bpm"`
	Source Source    `json:"source"`
}

// WearableSource is the push channel from a paired wearable. Subscribe may
// be called again after cancelling a previous subscription; that is how the
// watchdog rebuilds a silent connection.
type WearableSource interface {
	Subscribe(ctx context.Context) (<-chan int, error)
}

// HealthSource is the platform health-data store: an authorization step
// that can be denied, an initial pull, and a push subscription.
type HealthSource interface {
	RequestAuthorization(ctx context.Context) error
	Latest(ctx context.Context) (int, bool, error)
	Subscribe(ctx context.Context) (<-chan int, error)
}

type wearableMsg struct {
	Ts  int64 `json:"ts"`
	Bpm int   `json:"hr"`
}

// NatsWearableSource receives BPM push messages on a per-session subject.
type NatsWearableSource struct {
	conn    *nats.Conn
	subject string
}

func NewNatsWearableSource(conn *nats.Conn, subject string) *NatsWearableSource {
	return &NatsWearableSource{conn: conn, subject: subject}
}

func (s *NatsWearableSource) Subscribe(ctx context.Context) (<-chan int, error) {
	ch := make(chan int, 16)
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		var m wearableMsg
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.Printf("heartrate: bad wearable payload on %s: %v", s.subject, err)
			return
		}
		if m.Bpm <= 0 {
			return
		}
		select {
		case ch <- m.Bpm:
		default:
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		close(ch)
	}()
	return ch, nil
}
