package shredder

import "sync"

// Pending is the deferred outcome of one Shred call.
// It is resolved exactly once; later resolutions are ignored.
type Pending struct {
	done  chan struct{}
	once  sync.Once
	files []string
	err   error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve(files []string, err error) {
	p.once.Do(func() {
		p.files = files
		p.err = err
		close(p.done)
	})
}

// Done is closed once the outcome is available
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call finishes.
// On success and on *UtilityError the caller's original paths are returned in
// their original order; input and spawn failures return nil files.
func (p *Pending) Wait() ([]string, error) {
	<-p.done
	return p.files, p.err
}
