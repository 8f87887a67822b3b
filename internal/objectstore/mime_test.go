package objectstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectMIME_ByteSniffsJPEG(t *testing.T) {
	head := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0, 0, 0, 0, 0}
	mimeType, ext := DetectMIME("unknown.bin", head)
	require.Equal(t, "image/jpeg", mimeType)
	require.Equal(t, "jpg", ext)
}

func TestDetectMIME_ByteSniffsPDF(t *testing.T) {
	head := []byte("%PDF-1.4")
	mimeType, _ := DetectMIME("doc", head)
	require.Equal(t, "application/pdf", mimeType)
}

func TestDetectMIME_FallsBackToExtensionTable(t *testing.T) {
	mimeType, ext := DetectMIME("voicemail.wav", []byte{0, 0, 0, 0})
	require.Equal(t, "audio/wav", mimeType)
	require.Equal(t, "wav", ext)
}

func TestDetectMIME_FallsBackToOctetStream(t *testing.T) {
	mimeType, _ := DetectMIME("mystery.xyz", []byte{0, 0, 0, 0})
	require.Equal(t, defaultMIME, mimeType)
}
