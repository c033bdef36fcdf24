package difftool

import (
	"path/filepath"
	"strings"
)

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
	".avif": "image/avif",
}

// ImageMIME returns the MIME type for recognized image extensions.
func ImageMIME(path string) (string, bool) {
	mt, ok := imageTypes[strings.ToLower(filepath.Ext(path))]
	return mt, ok
}

// Encoding values for file content.
const (
	EncodingUTF8   = "utf8"
	EncodingBase64 = "base64"
)

// Classify decides how content at path should be shipped to a client.
// Images and binary data are base64 encoded; everything else is utf8 text.
func Classify(path string, data []byte) (encoding, mimeType string, binary bool) {
	if mt, ok := ImageMIME(path); ok {
		return EncodingBase64, mt, true
	}
	if IsBinary(data) {
		return EncodingBase64, "application/octet-stream", true
	}
	return EncodingUTF8, "", false
}
