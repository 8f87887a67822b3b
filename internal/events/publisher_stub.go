//go:build !events

package events

// natsPublisher is a no-op stand-in used when the binary is built without
// the 'events' tag.
type natsPublisher struct{}

func newNATSPublisher(_ string) (*natsPublisher, error) {
	return &natsPublisher{}, nil
}

func (p *natsPublisher) publish(subject string, payload []byte) error { return nil }

func (p *natsPublisher) close() error { return nil }
