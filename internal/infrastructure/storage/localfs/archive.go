package localfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archive keeps cropped buffers on local disk for debugging failed
// identifications. Best effort only: the pipeline works identically
// with no archive at all.
type Archive struct {
	basePath string
}

func New(basePath string) (*Archive, error) {
	if basePath == "" {
		basePath = "./data/crops"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{basePath: basePath}, nil
}

func (a *Archive) SaveCrop(_ context.Context, requestID string, imageIndex int, imageBytes []byte) error {
	key := fmt.Sprintf("%s_%d.jpg", sanitizeKey(requestID), imageIndex)
	path := filepath.Join(a.basePath, key)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create crop file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, bytes.NewReader(imageBytes)); err != nil {
		return fmt.Errorf("write crop file: %w", err)
	}
	return nil
}

func sanitizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "request"
	}
	return string(out)
}
