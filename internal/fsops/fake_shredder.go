package fsops

import (
	"context"
	"sync"

	"shred-sage/internal/shredder"
)

// FakeShredder implements Shredder for testing.
// Records every batch without touching the filesystem.
type FakeShredder struct {
	mu    sync.Mutex
	Calls [][]string

	// Err, if set, is returned for every batch
	Err error
	// Events are replayed to status for every batch
	Events []shredder.Progress
}

func (f *FakeShredder) ShredFiles(_ context.Context, files []string, status shredder.StatusFunc) ([]string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, append([]string(nil), files...))
	f.mu.Unlock()

	if status != nil {
		for _, ev := range f.Events {
			status(ev)
		}
	}
	if f.Err != nil {
		return files, f.Err
	}
	return files, nil
}

// CallCount returns the number of batches received
func (f *FakeShredder) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// Files returns every file received across all batches
func (f *FakeShredder) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, batch := range f.Calls {
		out = append(out, batch...)
	}
	return out
}
