package util

import "bytes"

// Magic prefixes for the image formats the vision endpoints accept.
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	riffMagic = []byte("RIFF")
	webpMagic = []byte("WEBP")
	gifMagic  = []byte("GIF8")
)

// SniffImageMIME detects the MIME type of raw image bytes from their magic
// prefix. The second return is false when the bytes are not a supported image
// format.
func SniffImageMIME(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return "image/jpeg", true
	case bytes.HasPrefix(data, pngMagic):
		return "image/png", true
	case bytes.HasPrefix(data, riffMagic) && len(data) >= 12 && bytes.Equal(data[8:12], webpMagic):
		return "image/webp", true
	case bytes.HasPrefix(data, gifMagic):
		return "image/gif", true
	default:
		return "", false
	}
}

// ExtForImageMIME maps an image MIME type to a file extension for generated
// output. Unknown types default to .png, the format the image endpoints
// produce.
func ExtForImageMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}
