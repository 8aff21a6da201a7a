package shredder

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// StatusFunc receives progress events in emission order
type StatusFunc func(Progress)

// EndFunc receives the terminal outcome of a callback-style call
type EndFunc func(err error, files []string)

// Shredder wraps the external shred utility.
// It is safe for concurrent use; every call owns its process and parser state.
type Shredder struct {
	cfg        Config
	flags      []string
	pathExists bool
	spawner    Spawner
	exists     func(path string) bool
	logger     zerolog.Logger
}

// Option customizes a Shredder
type Option func(*Shredder)

// WithLogger sets the logger used for debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Shredder) {
		s.logger = logger
	}
}

// WithSpawner replaces the process launcher
func WithSpawner(spawner Spawner) Option {
	return func(s *Shredder) {
		s.spawner = spawner
	}
}

// WithExistsCheck replaces the binary existence check done at construction
func WithExistsCheck(exists func(path string) bool) Option {
	return func(s *Shredder) {
		s.exists = exists
	}
}

// New creates a Shredder. A missing utility is not an error here;
// calls will fail with a *SpawnError instead.
func New(cfg Config, opts ...Option) *Shredder {
	s := &Shredder{
		cfg:     cfg,
		spawner: ExecSpawner{},
		exists:  binaryExists,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Debug {
		s.logger = s.logger.Level(zerolog.DebugLevel)
	}
	s.logger = s.logger.With().Str("component", "shredder").Logger()

	s.pathExists = s.exists(cfg.UtilityPath)
	if !s.pathExists {
		s.logger.Debug().Str("utility", cfg.UtilityPath).Msg("shred could not be found")
	}

	s.flags = BuildFlags(cfg)
	return s
}

// Config returns the settings the Shredder was built with
func (s *Shredder) Config() Config {
	return s.cfg
}

// Flags returns a copy of the command-line flags used for every call
func (s *Shredder) Flags() []string {
	return append([]string(nil), s.flags...)
}

// PathExists reports whether the utility was found at construction.
// Advisory only.
func (s *Shredder) PathExists() bool {
	return s.pathExists
}

// Shred securely deletes files with a single utility invocation and returns
// immediately. status, if non-nil, is called from the call's own goroutine for
// every progress event. Cancelling ctx kills the utility.
func (s *Shredder) Shred(ctx context.Context, files []string, status StatusFunc) *Pending {
	pending := newPending()

	s.logger.Debug().Int("files", len(files)).Msg("shredding initiated")

	plan, err := NewPlan(s.cfg.UtilityPath, s.flags, files)
	if err != nil {
		pending.resolve(nil, err)
		return pending
	}

	originals := append([]string(nil), files...)

	s.logger.Debug().
		Str("command", plan.CommandLine()).
		Str("dir", plan.WorkingDirectory).
		Msg("configured shred command")

	go s.run(ctx, plan, originals, status, pending)
	return pending
}

// ShredFunc is the callback form of Shred. end, if non-nil, is invoked exactly
// once with the same outcome Shred's Pending would deliver.
func (s *Shredder) ShredFunc(ctx context.Context, files []string, status StatusFunc, end EndFunc) {
	pending := s.Shred(ctx, files, status)
	if end == nil {
		return
	}
	go func() {
		files, err := pending.Wait()
		end(err, files)
	}()
}

func (s *Shredder) run(ctx context.Context, plan *Plan, originals []string, status StatusFunc, pending *Pending) {
	parser := newProgressParser(s.cfg.UtilityPath, plan.WorkingDirectory)

	exit, err := s.spawner.Spawn(ctx, plan, func(line string) {
		s.logger.Debug().Str("stderr", line).Msg("utility output")
		if event, ok := parser.Parse(line); ok && status != nil {
			status(event)
		}
	})
	if err != nil {
		s.logger.Debug().Err(err).Str("utility", plan.Executable).Msg("failed to start shred")
		pending.resolve(nil, &SpawnError{Executable: plan.Executable, Err: err})
		return
	}

	if exit.StreamErr != nil || exit.Signal != "" || exit.Code != 0 {
		uerr := &UtilityError{
			Code:   exit.Code,
			Signal: exit.Signal,
			Files:  originals,
			Err:    exit.StreamErr,
		}
		s.logger.Debug().Err(uerr).Int("exit_code", exit.Code).Msg("shred failed")
		pending.resolve(originals, uerr)
		return
	}

	s.logger.Debug().Strs("files", originals).Msg("shred complete")
	pending.resolve(originals, nil)
}

func binaryExists(path string) bool {
	if path == "" {
		return false
	}
	return unix.Access(path, unix.F_OK) == nil
}
