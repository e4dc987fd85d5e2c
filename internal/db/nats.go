package db

import (
	"time"

	"github.com/nats-io/nats.go"

	"github.com/orourkera/go-ruck-yourself-sub010/internal/config"
)

// ConnectNats dials the broker carrying wearable heart-rate pushes and
// split notifications. Returns nil when no broker is configured; the
// session engine then runs without wearable connectivity.
func ConnectNats(cfg config.Config) (*nats.Conn, error) {
	if cfg.NatsURL == "" {
		return nil, nil
	}
	return nats.Connect(
		cfg.NatsURL,
		nats.Name("ruckpulse-api"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
}
