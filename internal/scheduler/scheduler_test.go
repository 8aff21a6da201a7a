package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shred-sage/internal/config"
	"shred-sage/internal/fsops"
	"shred-sage/internal/limiter"
	"shred-sage/internal/metrics"
	"shred-sage/internal/purge"
	"shred-sage/internal/scan"
)

func init() {
	metrics.Init()
}

func spoolConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	spool := t.TempDir()
	cfg := config.Default()
	cfg.SpoolPaths = []string{spool}
	cfg.AgeOffMinutes = 30
	cfg.IntervalMinutes = 60
	return cfg, spool
}

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("queued job"), 0o600))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestRunOnceNilConfig(t *testing.T) {
	_, err := RunOnce(context.Background(), Deps{})
	assert.ErrorIs(t, err, errNoConfig)
	assert.ErrorIs(t, Run(context.Background(), Deps{}), errNoConfig)
}

func TestRunOnceCanceled(t *testing.T) {
	cfg, _ := spoolConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunOnce(ctx, Deps{Config: cfg})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunOnceShredsAgedFiles(t *testing.T) {
	cfg, spool := spoolConfig(t)
	oldest := writeAged(t, spool, "old.ps", 2*time.Hour)
	older := writeAged(t, spool, "older.ps", time.Hour)
	writeAged(t, spool, "fresh.ps", time.Minute)

	fake := &fsops.FakeShredder{}
	summary, err := RunOnce(context.Background(), Deps{
		Config:  cfg,
		Purger:  purge.New(fake, nil),
		Limiter: limiter.NewCPULimiter(0),
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Shredded)
	assert.Equal(t, []string{oldest, older}, fake.Files())
}

func TestRunOnceNoCandidates(t *testing.T) {
	cfg, spool := spoolConfig(t)
	writeAged(t, spool, "fresh.ps", time.Minute)

	fake := &fsops.FakeShredder{}
	summary, err := RunOnce(context.Background(), Deps{Config: cfg, Purger: purge.New(fake, nil)})
	require.NoError(t, err)
	assert.Equal(t, 0, fake.CallCount())
	assert.Equal(t, 0, summary.Shredded)
}

func TestRunTrigger(t *testing.T) {
	cfg, spool := spoolConfig(t)
	writeAged(t, spool, "old.ps", 2*time.Hour)

	fake := &fsops.FakeShredder{}
	trigger := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Deps{
			Config:   cfg,
			Purger:   purge.New(fake, nil),
			Trigger:  trigger,
			Debounce: -1,
		})
	}()

	// The fake never removes files, so every cycle sees the same candidate
	require.Eventually(t, func() bool { return fake.CallCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	trigger <- struct{}{}
	require.Eventually(t, func() bool { return fake.CallCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunWatchDebounce(t *testing.T) {
	cfg, spool := spoolConfig(t)
	cfg.AgeOffMinutes = 0
	cfg.MaxUsedPercent = 90

	var probes atomic.Int32
	scanner := scan.NewScanner(zerolog.Nop()).WithUsage(func(string) (float64, error) {
		probes.Add(1)
		return 95, nil
	})

	fake := &fsops.FakeShredder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = Run(ctx, Deps{
			Config:   cfg,
			Scanner:  scanner,
			Purger:   purge.New(fake, nil),
			Debounce: 50 * time.Millisecond,
		})
	}()

	// Startup cycle over an empty spool
	require.Eventually(t, func() bool { return probes.Load() >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, fake.CallCount())

	path := filepath.Join(spool, "new.ps")
	require.NoError(t, os.WriteFile(path, []byte("job"), 0o600))

	require.Eventually(t, func() bool { return fake.CallCount() >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, fake.Files()[0])
}
