package transcode

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	"github.com/zaf/g711"
)

// minCompressionRatio is the minimum shrink (new/original) below which a
// transcoded result is considered worth keeping; otherwise the original
// bytes are returned unchanged.
const minCompressionRatio = 0.9

// maxImageDimension bounds the long edge of a downscaled image.
const maxImageDimension = 1600

// Result carries the outcome of an optional transcode pass.
type Result struct {
	Bytes         []byte
	Ext           string
	MIME          string
	WasCompressed bool
	OriginalSize  int
	NewSize       int
	Ratio         float64
}

// passthrough returns the original bytes unchanged, the common case when a
// file-type has no transcode path or the transcoded result did not help.
func passthrough(data []byte, ext, mime string) Result {
	return Result{Bytes: data, Ext: ext, MIME: mime, OriginalSize: len(data), NewSize: len(data), Ratio: 1.0}
}

// Transcode dispatches on (fileType, ext) and returns the possibly-smaller
// result. fileType is one of "audio", "image"; any other value passes
// through unchanged.
func Transcode(fileType, ext, mimeType string, data []byte) (Result, error) {
	switch fileType {
	case "audio":
		return transcodeAudio(ext, mimeType, data)
	case "image":
		return transcodeImage(ext, mimeType, data)
	default:
		return passthrough(data, ext, mimeType), nil
	}
}

// transcodeAudio re-encodes 16-bit linear PCM WAV audio to G.711 u-law,
// which halves the bit depth. Non-PCM or already-encoded sources pass
// through unchanged since re-encoding them would require a full codec, out
// of scope here.
func transcodeAudio(ext, mimeType string, data []byte) (Result, error) {
	pcm, err := extractPCMFromWAV(data)
	if err != nil {
		return passthrough(data, ext, mimeType), nil
	}

	ulaw := g711.EncodeUlaw(pcm)
	return finalizeResult(data, ulaw, ext, mimeType, "ulaw", "audio/basic"), nil
}

// transcodeImage downscales an image to at most maxImageDimension on its
// long edge and re-encodes as JPEG.
func transcodeImage(ext, mimeType string, data []byte) (Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return passthrough(data, ext, mimeType), nil
	}

	bounds := img.Bounds()
	width, height := uint(bounds.Dx()), uint(bounds.Dy())
	if width <= maxImageDimension && height <= maxImageDimension {
		return passthrough(data, ext, mimeType), nil
	}

	var resizedWidth, resizedHeight uint
	if width >= height {
		resizedWidth = maxImageDimension
	} else {
		resizedHeight = maxImageDimension
	}
	resized := resize.Resize(resizedWidth, resizedHeight, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return Result{}, fmt.Errorf("encode resized jpeg: %w", err)
	}

	return finalizeResult(data, buf.Bytes(), ext, mimeType, "jpg", "image/jpeg"), nil
}

func finalizeResult(original, transcoded []byte, origExt, origMIME, newExt, newMIME string) Result {
	ratio := float64(len(transcoded)) / float64(len(original))
	if ratio >= minCompressionRatio {
		return passthrough(original, origExt, origMIME)
	}
	return Result{
		Bytes:         transcoded,
		Ext:           newExt,
		MIME:          newMIME,
		WasCompressed: true,
		OriginalSize:  len(original),
		NewSize:       len(transcoded),
		Ratio:         ratio,
	}
}

// extractPCMFromWAV strips a canonical 44-byte WAV header and returns the
// raw 16-bit little-endian PCM sample bytes, rejecting anything that is not
// PCM-encoded.
func extractPCMFromWAV(data []byte) ([]byte, error) {
	const headerSize = 44
	if len(data) <= headerSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a WAV container")
	}
	audioFormat := uint16(data[20]) | uint16(data[21])<<8
	if audioFormat != 1 {
		return nil, fmt.Errorf("not linear PCM (format %d)", audioFormat)
	}
	return data[headerSize:], nil
}
