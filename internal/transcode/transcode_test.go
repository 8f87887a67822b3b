package transcode

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildWAV(t *testing.T, numSamples int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+numSamples*2))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(8000))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(numSamples*2))
	for i := 0; i < numSamples; i++ {
		binary.Write(&buf, binary.LittleEndian, int16(i))
	}
	return buf.Bytes()
}

func TestTranscode_AudioPCMWavHalvesSize(t *testing.T) {
	wav := buildWAV(t, 4000)
	result, err := Transcode("audio", "wav", "audio/wav", wav)
	require.NoError(t, err)
	require.True(t, result.WasCompressed)
	require.Equal(t, "ulaw", result.Ext)
	require.Less(t, result.NewSize, result.OriginalSize)
}

func TestTranscode_NonWavAudioPassesThrough(t *testing.T) {
	result, err := Transcode("audio", "mp3", "audio/mpeg", []byte("ID3not-a-wav"))
	require.NoError(t, err)
	require.False(t, result.WasCompressed)
}

func TestTranscode_LargeImageIsDownscaled(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3000, 2000))
	for y := 0; y < 2000; y += 50 {
		for x := 0; x < 3000; x += 50 {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	result, err := Transcode("image", "jpg", "image/jpeg", buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "jpg", result.Ext)
}

func TestTranscode_UnknownFileTypePassesThrough(t *testing.T) {
	result, err := Transcode("document", "pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	require.False(t, result.WasCompressed)
	require.Equal(t, "application/pdf", result.MIME)
}
