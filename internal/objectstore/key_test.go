package objectstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSanitizeBasename_CollapsesReservedCharacters(t *testing.T) {
	require.Equal(t, "my-file-name", SanitizeBasename("my///file   name"))
}

func TestSanitizeBasename_EmptyFallsBackToFile(t *testing.T) {
	require.Equal(t, "file", SanitizeBasename("###"))
}

func TestBuildKey_DeterministicLayout(t *testing.T) {
	when := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	key := BuildKey("tenant-a", CategoryRecordings, when, "call 123.wav", "wav")
	require.Equal(t, "tenant-a/recordings/2026/03/call-123.wav", key)
}

func TestBuildKey_NoExtension(t *testing.T) {
	when := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	key := BuildKey("tenant-a", CategoryFaxes, when, "document", "")
	require.Equal(t, "tenant-a/faxes/2026/03/document", key)
}
