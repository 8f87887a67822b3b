package pbx

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timeshareflow/pbxsync/internal/prober"
)

func TestParseMeetingOrFaxFilename_MatchesConvention(t *testing.T) {
	rec := parseMeetingOrFaxFilename("20260115_143000_IN_5551234567.wav", "2026/01/20260115_143000_IN_5551234567.wav", "/meetings/2026/01/20260115_143000_IN_5551234567.wav")
	require.Equal(t, DirectionInbound, rec.Direction)
	require.Equal(t, "5551234567", rec.RemoteNumber)
	require.Equal(t, 2026, rec.Date.Year())
	require.Equal(t, "/meetings/2026/01/20260115_143000_IN_5551234567.wav", rec.AbsolutePath)
}

func TestParseMeetingOrFaxFilename_UnmatchedNameStillArchived(t *testing.T) {
	rec := parseMeetingOrFaxFilename("random-export.wav", "random-export.wav", "/meetings/random-export.wav")
	require.Equal(t, "random-export.wav", rec.Filename)
	require.True(t, rec.Date.IsZero())
}

func TestMapGenericDirection(t *testing.T) {
	require.Equal(t, DirectionInbound, mapGenericDirection("in"))
	require.Equal(t, DirectionOutbound, mapGenericDirection("outbound"))
	require.Equal(t, DirectionInternal, mapGenericDirection("other"))
}

func TestMapGenericStatus(t *testing.T) {
	require.Equal(t, CallStatusAnswered, mapGenericStatus("completed"))
	require.Equal(t, CallStatusMissed, mapGenericStatus("noanswer"))
	require.Equal(t, CallStatusFailed, mapGenericStatus("busy"))
}

func TestMessageSourceUnion_PrefersUnionWhenBothExist(t *testing.T) {
	sql := messageSourceUnion(prober.Schema{HasHistoryMessages: true, HasActiveMessages: true})
	require.Contains(t, sql, "UNION")
}

func TestMessageSourceUnion_EmptyWhenNeitherExists(t *testing.T) {
	require.Empty(t, messageSourceUnion(prober.Schema{}))
}

func TestChatSourceUnion_SingleSourceNoUnion(t *testing.T) {
	sql := chatSourceUnion(prober.Schema{HasActiveChat: true})
	require.NotContains(t, sql, "UNION")
	require.Contains(t, sql, "active_chat")
}

func TestParseVoicemailTimestamp_HandlesFractionalSeconds(t *testing.T) {
	ts, err := parseVoicemailTimestamp("20260115143000.50")
	require.NoError(t, err)
	require.Equal(t, 2026, ts.Year())
}
