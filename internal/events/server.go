//go:build events

package events

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// embeddedServer wraps an in-process NATS server for single-binary
// deployments that don't want to run a separate broker, grounded on the
// teacher's eventprocessor.EmbeddedServer.
type embeddedServer struct {
	server *server.Server
}

func startEmbeddedServer(storeDir string) (*embeddedServer, error) {
	opts := &server.Options{
		ServerName: "pbxsync-events",
		Host:       "127.0.0.1",
		Port:       -1, // random free port, client URL read back below
		JetStream:  false,
		StoreDir:   storeDir,
		NoLog:      true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create embedded nats server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready within timeout")
	}
	return &embeddedServer{server: ns}, nil
}

func (s *embeddedServer) clientURL() string {
	return s.server.ClientURL()
}

func (s *embeddedServer) shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
