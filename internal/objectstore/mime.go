package objectstore

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// magicSignature is one recognized container's leading bytes and the
// (mime, extension) pair it implies. Checked in order against the first 12
// bytes of a file, per the byte-sniffing precedence in spec §4.6.
type magicSignature struct {
	prefix []byte
	offset int
	mime   string
	ext    string
}

var magicSignatures = []magicSignature{
	{prefix: []byte{0xFF, 0xD8, 0xFF}, mime: "image/jpeg", ext: "jpg"},
	{prefix: []byte{0x89, 'P', 'N', 'G'}, mime: "image/png", ext: "png"},
	{prefix: []byte("GIF87a"), mime: "image/gif", ext: "gif"},
	{prefix: []byte("GIF89a"), mime: "image/gif", ext: "gif"},
	{prefix: []byte("ftyp"), offset: 4, mime: "video/mp4", ext: "mp4"},
	{prefix: []byte("RIFF"), mime: "audio/wav", ext: "wav"},
	{prefix: []byte("ID3"), mime: "audio/mpeg", ext: "mp3"},
	{prefix: []byte{0xFF, 0xFB}, mime: "audio/mpeg", ext: "mp3"},
	{prefix: []byte("%PDF"), mime: "application/pdf", ext: "pdf"},
	{prefix: []byte{0x49, 0x49, 0x2A, 0x00}, mime: "image/tiff", ext: "tiff"},
	{prefix: []byte{0x4D, 0x4D, 0x00, 0x2A}, mime: "image/tiff", ext: "tiff"},
}

var extensionTable = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png", ".gif": "image/gif",
	".mp4": "video/mp4", ".mov": "video/quicktime", ".wav": "audio/wav", ".mp3": "audio/mpeg",
	".pdf": "application/pdf", ".tif": "image/tiff", ".tiff": "image/tiff", ".txt": "text/plain",
}

const defaultMIME = "application/octet-stream"

// DetectMIME tries, in order: byte-sniffed magic bytes, the extension table,
// content detection by the mimetype library (used only when it finds a type
// other than application/octet-stream), then application/octet-stream. It returns the
// detected MIME type and the extension that should be used for the final
// object key (without a leading dot).
func DetectMIME(basename string, head []byte) (mimeType, ext string) {
	if len(head) > 12 {
		head = head[:12]
	}
	for _, sig := range magicSignatures {
		end := sig.offset + len(sig.prefix)
		if end > len(head) {
			continue
		}
		if bytes.Equal(head[sig.offset:end], sig.prefix) {
			return sig.mime, sig.ext
		}
	}

	if byExt, ok := extensionTable[strings.ToLower(filepath.Ext(basename))]; ok {
		return byExt, strings.TrimPrefix(strings.ToLower(filepath.Ext(basename)), ".")
	}

	if detected := mimetype.Detect(head); detected != nil && detected.String() != defaultMIME {
		ext := strings.TrimPrefix(detected.Extension(), ".")
		return detected.String(), ext
	}

	return defaultMIME, strings.TrimPrefix(strings.ToLower(filepath.Ext(basename)), ".")
}
