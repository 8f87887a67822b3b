//go:build events

package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
)

// natsPublisher wraps a Watermill NATS publisher, grounded on the teacher's
// eventprocessor.Publisher, trimmed of JetStream/circuit-breaker wrapping —
// durability here comes from the outbox ahead of it, not from the broker.
type natsPublisher struct {
	inner message.Publisher
}

func newNATSPublisher(url string) (*natsPublisher, error) {
	logger := watermill.NewStdLogger(false, false)
	cfg := wmNats.PublisherConfig{
		URL: url,
		NatsOptions: []natsgo.Option{
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{Disabled: true},
	}
	pub, err := wmNats.NewPublisher(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}
	return &natsPublisher{inner: pub}, nil
}

func (p *natsPublisher) publish(subject string, payload []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	return p.inner.Publish(subject, msg)
}

func (p *natsPublisher) close() error {
	return p.inner.Close()
}
