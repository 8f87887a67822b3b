package sftp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timeshareflow/pbxsync/internal/tenant"
)

func TestOpen_UnreachableHostFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cfg := tenant.SftpConfig{Host: "127.0.0.1", Port: 1, User: "phonesystem", Password: "wrong"}
	_, err := Open(ctx, cfg)
	require.Error(t, err)
}

func TestSizeThresholds_AreOrdered(t *testing.T) {
	require.Less(t, int64(BufferedMaxBytes), int64(StreamedMaxBytes))
}

func TestWithRateLimit_ZeroDisablesThrottling(t *testing.T) {
	s := &Session{limiter: nil}
	s.WithRateLimit(0)
	require.NotNil(t, s.limiter)
}
