// Package eventbus publishes scan events to NATS so other services can
// follow scans without polling the API.
package eventbus

import (
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/derivinsight/sentinel/internal/events"
)

// Publisher publishes scan events to NATS subjects
// sentinel.scan.<event_name>.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS. The connection retries in the
// background; a hard failure here means NATS is misconfigured, and the
// caller runs without event publishing.
func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	log.Printf("Sentinel (Pub) connected to NATS at %s", natsURL)

	return &Publisher{conn: conn}, nil
}

// Emit implements events.Sink. Publish failures are logged and
// swallowed; the scan never observes them.
func (p *Publisher) Emit(event events.Event) {
	subject := "sentinel.scan." + event.Name

	if err := p.conn.Publish(subject, event.Payload); err != nil {
		log.Printf("Warning: failed to publish %s to event bus: %v", subject, err)
		return
	}
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		log.Println("Sentinel (Pub) disconnected from NATS")
	}
}

// IsConnected returns true if connected to NATS.
func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}
