package stage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseName_AcceptsEveryOrderEntry(t *testing.T) {
	for _, n := range Order {
		got, err := ParseName(string(n))
		require.NoError(t, err)
		require.Equal(t, n, got)
	}
}

func TestParseName_RejectsUnknownStage(t *testing.T) {
	_, err := ParseName("not_a_stage")
	require.Error(t, err)
}

func TestExtOf_ReturnsLowercaseSuffixWithDot(t *testing.T) {
	require.Equal(t, ".pdf", extOf("inbound_fax.pdf"))
	require.Equal(t, ".tif", extOf("2026/01/scan.tif"))
}

func TestExtOf_NoExtensionReturnsEmpty(t *testing.T) {
	require.Empty(t, extOf("2026/01/noext"))
}

func TestStripSchemeAndHost_StripsURLPrefix(t *testing.T) {
	require.Equal(t, "Extensions/101/call.wav", stripSchemeAndHost("https://pbx.example.com/Extensions/101/call.wav"))
}

func TestStripSchemeAndHost_PassesThroughBarePath(t *testing.T) {
	require.Equal(t, "Extensions/101/call.wav", stripSchemeAndHost("/Extensions/101/call.wav"))
}

func TestExpandVoicemailTemplate_SubstitutesBothPlaceholders(t *testing.T) {
	got := expandVoicemailTemplate("Extensions/{ext}/{file}.wav", "101", "vm-001")
	require.Equal(t, "Extensions/101/vm-001.wav", got)
}

func TestExpandVoicemailTemplate_NoPlaceholdersUnchanged(t *testing.T) {
	require.Equal(t, "static/path.wav", expandVoicemailTemplate("static/path.wav", "101", "vm-001"))
}
