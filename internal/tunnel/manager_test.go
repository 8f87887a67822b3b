package tunnel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timeshareflow/pbxsync/internal/pbxsyncerr"
	"github.com/timeshareflow/pbxsync/internal/tenant"
)

func TestAcquirePool_UnreachableHostFailsWithTunnelUnavailable(t *testing.T) {
	mgr := NewManager()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := tenant.DbConfig{
		Host:    "127.0.0.1",
		Port:    1, // nothing listens here
		SSHUser: "phonesystem",
		SSHPass: "wrong",
		DBUser:  "phonesystem",
		DBPass:  "wrong",
		DBName:  "phonesystem",
	}

	_, err := mgr.AcquirePool(ctx, "tenant-a", cfg)
	require.Error(t, err)
	require.True(t, pbxsyncerr.Is(err, pbxsyncerr.KindTransient))
}

func TestCloseTenant_NoopWhenNotCached(t *testing.T) {
	mgr := NewManager()
	require.NotPanics(t, func() { mgr.CloseTenant("missing-tenant") })
}

func TestCloseAll_EmptyManager(t *testing.T) {
	mgr := NewManager()
	require.NotPanics(t, mgr.CloseAll)
}
