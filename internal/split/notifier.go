package split

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsNotifier pushes split payloads onto a per-session subject for the
// paired wearable to display.
type NatsNotifier struct {
	conn *nats.Conn
}

func NewNatsNotifier(conn *nats.Conn) *NatsNotifier {
	return &NatsNotifier{conn: conn}
}

func (n *NatsNotifier) NotifySplit(ctx context.Context, payload Notification) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.conn.Publish(fmt.Sprintf("wearable.%s.split", payload.SessionID), data)
}
