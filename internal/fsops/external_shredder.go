package fsops

import (
	"context"

	"shred-sage/internal/shredder"
)

// ExternalShredder implements Shredder by running the shred utility once per batch
type ExternalShredder struct {
	S *shredder.Shredder
}

func (e ExternalShredder) ShredFiles(ctx context.Context, files []string, status shredder.StatusFunc) ([]string, error) {
	return e.S.Shred(ctx, files, status).Wait()
}
