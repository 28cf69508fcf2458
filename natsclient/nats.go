package natsclient

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects this service publishes on. Consumers (notification service,
// activity feed) subscribe to these.
const (
	SubjectSolveRecorded     = "practice.solve.recorded"
	SubjectBadgeAwarded      = "practice.badge.awarded"
	SubjectRevisionScheduled = "practice.revision.scheduled"
	SubjectAssignTrigger     = "practice.assign.trigger"
)

type NatsClient struct {
	Conn *nats.Conn
}

func NewNatsClient(natsURL string) (*NatsClient, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NatsClient{Conn: nc}, nil
}

func (n *NatsClient) Close() {
	if n.Conn != nil {
		n.Conn.Drain()
		n.Conn.Close()
	}
}

// PublishEvent marshals v as JSON and publishes it fire-and-forget.
func (n *NatsClient) PublishEvent(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", subject, err)
	}
	return n.Conn.Publish(subject, data)
}

func (n *NatsClient) Request(subject string, data []byte, timeout time.Duration) (*nats.Msg, error) {
	return n.Conn.Request(subject, data, timeout)
}

func (n *NatsClient) Subscribe(subject string, handler func(*nats.Msg)) (*nats.Subscription, error) {
	return n.Conn.Subscribe(subject, handler)
}
