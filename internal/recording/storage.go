package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/klynov/lectern/internal/domain"
)

// DiskStorage is the default Storage for single-node deployments: one
// file per artifact under Root. Object storage backends implement the
// same interface out of tree.
type DiskStorage struct {
	Root string
}

func (d *DiskStorage) Save(ctx context.Context, meeting domain.RoomID, blob []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := ".webm"
	if mimeType == "audio/webm" {
		ext = ".weba"
	}
	name := fmt.Sprintf("%s-%s%s", meeting, uuid.NewString(), ext)
	path := filepath.Join(d.Root, name)
	if err := os.MkdirAll(d.Root, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}
