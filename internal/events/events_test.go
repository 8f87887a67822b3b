package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_ValidateSkipsChecksWhenDisabled(t *testing.T) {
	cfg := Config{Enabled: false}
	require.NoError(t, cfg.Validate())
}

func TestConfig_ValidateRequiresOutboxPathAndURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutboxPath = ""
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.URL = ""
	cfg.EmbeddedServer = false
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.EmbeddedServer = true
	require.NoError(t, cfg.Validate())
}

func TestConfig_ValidateRejectsTooShortIntervals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "nats://localhost:4222"
	cfg.RetryInterval = 0
	require.Error(t, cfg.Validate())
}

func TestNewOutbox_DisabledConfigIsANoOp(t *testing.T) {
	o, err := NewOutbox(Config{Enabled: false})
	require.NoError(t, err)

	o.Start(context.Background())
	o.PublishStatusChanged(context.Background(), StatusChanged{Tenant: "t1", Stage: "recordings"})
	o.PublishLogAppended(context.Background(), LogAppended{Tenant: "t1", Stage: "recordings"})
	require.NoError(t, o.Close())
}

func TestEntry_UnmarshalPayloadRoundTrips(t *testing.T) {
	wal, err := openOutboxWAL(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = wal.close() })

	evt := StatusChanged{Tenant: "t1", Stage: "faxes", Status: "ok", UpdatedAt: time.Now().UTC()}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	entry, err := wal.write(SubjectStatusChanged, payload)
	require.NoError(t, err)

	var got StatusChanged
	require.NoError(t, entry.unmarshalPayload(&got))
	require.Equal(t, evt.Tenant, got.Tenant)
	require.Equal(t, evt.Stage, got.Stage)
}
