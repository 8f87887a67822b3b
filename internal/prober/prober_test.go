package prober

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchema_AnyChatSource(t *testing.T) {
	require.True(t, Schema{HasActiveChat: true}.AnyChatSource())
	require.True(t, Schema{HasHistoryChat: true}.AnyChatSource())
	require.False(t, Schema{}.AnyChatSource())
}

func TestSchema_AnyMessageSource(t *testing.T) {
	require.True(t, Schema{HasActiveMessages: true}.AnyMessageSource())
	require.False(t, Schema{}.AnyMessageSource())
}

func TestAllCandidateNames_IncludesEveryKnownVariant(t *testing.T) {
	names := allCandidateNames()
	for _, want := range []string{"active_chat", "history_chat", "active_messages", "history_messages",
		"myphone_callhistory_v14", "cl", "callhistory3", "cdr", "callhistory", "call_history",
		"recordings", "s_voicemail", "users_view", "dn"} {
		require.Contains(t, names, want)
	}
}
