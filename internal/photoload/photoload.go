// Package photoload reads reference photos off disk for the vision analysis
// step, rejecting files the providers would refuse anyway.
package photoload

import (
	"fmt"
	"os"

	"storyforge/internal/util"
)

// MaxPhotoBytes is the size cap for a reference photo; the vision endpoints
// reject payloads beyond 20MB.
const MaxPhotoBytes = 20 << 20

// Photo is a loaded reference photo ready for a PhotoRequest.
type Photo struct {
	Path string
	Data []byte
	MIME string
}

// Load reads and validates the photo at path: it must exist, fit under
// MaxPhotoBytes, and carry a recognizable image magic prefix. The MIME type
// comes from the bytes, not the file extension.
func Load(path string) (*Photo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat reference photo: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("reference photo %s is a directory", path)
	}
	if info.Size() > MaxPhotoBytes {
		return nil, fmt.Errorf("reference photo %s is %d bytes, over the %d byte limit", path, info.Size(), MaxPhotoBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference photo: %w", err)
	}

	mime, ok := util.SniffImageMIME(data)
	if !ok {
		return nil, fmt.Errorf("reference photo %s is not a supported image format (jpeg, png, webp, gif)", path)
	}
	return &Photo{Path: path, Data: data, MIME: mime}, nil
}
