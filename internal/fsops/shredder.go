package fsops

import (
	"context"

	"shred-sage/internal/shredder"
)

// Shredder abstracts secure deletion of a batch of files.
// Enables fakes in tests to prove dry-run never shreds.
type Shredder interface {
	ShredFiles(ctx context.Context, files []string, status shredder.StatusFunc) ([]string, error)
}
