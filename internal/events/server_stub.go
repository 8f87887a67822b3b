//go:build !events

package events

// embeddedServer is a no-op stand-in used when the binary is built without
// the 'events' tag.
type embeddedServer struct{}

func startEmbeddedServer(_ string) (*embeddedServer, error) {
	return &embeddedServer{}, nil
}

func (s *embeddedServer) clientURL() string { return "" }

func (s *embeddedServer) shutdown() {}
