package scheduler

import (
	"context"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"

	"github.com/timeshareflow/pbxsync/internal/stage"
	"github.com/timeshareflow/pbxsync/internal/tenant"
)

func TestStageEnabled_ConversationsStageGatedByEitherToggle(t *testing.T) {
	require.True(t, stageEnabled(tenant.BackupToggles{Conversations: true}, stage.NameConversationsMessages))
	require.True(t, stageEnabled(tenant.BackupToggles{Media: true}, stage.NameConversationsMessages))
	require.False(t, stageEnabled(tenant.BackupToggles{}, stage.NameConversationsMessages))
}

func TestStageEnabled_IndependentStagesGatedByOwnToggle(t *testing.T) {
	require.True(t, stageEnabled(tenant.BackupToggles{Recordings: true}, stage.NameRecordings))
	require.False(t, stageEnabled(tenant.BackupToggles{Recordings: true}, stage.NameVoicemails))
}

func TestRunStageOnce_RejectsUnknownStageBeforeTouchingInfrastructure(t *testing.T) {
	_, err := RunStageOnce(context.Background(), Deps{}, stage.Options{}, "tenant-1", stage.Name("bogus"))
	require.Error(t, err)
}

func TestFindTenant_ReturnsMatchOrNil(t *testing.T) {
	tenants := []tenant.Tenant{{ID: "a"}, {ID: "b"}}
	require.Equal(t, "b", findTenant(tenants, "b").ID)
	require.Nil(t, findTenant(tenants, "c"))
}

func TestStateToString_CoversAllStates(t *testing.T) {
	require.Equal(t, "closed", stateToString(gobreaker.StateClosed))
	require.Equal(t, "half-open", stateToString(gobreaker.StateHalfOpen))
	require.Equal(t, "open", stateToString(gobreaker.StateOpen))
}

func TestBreakerRegistry_CachesByTenantAndStage(t *testing.T) {
	reg := newBreakerRegistry()
	a := reg.get("tenant-1", "recordings")
	b := reg.get("tenant-1", "recordings")
	c := reg.get("tenant-2", "recordings")
	require.Same(t, a, b)
	require.NotSame(t, a, c)
}
