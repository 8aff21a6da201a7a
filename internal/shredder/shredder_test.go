package shredder

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// scriptedSpawner replays fixed stderr lines instead of starting a process
type scriptedSpawner struct {
	lines []string
	exit  Exit
	err   error

	calls atomic.Int32
	mu    sync.Mutex
	plans []*Plan
}

func (s *scriptedSpawner) Spawn(_ context.Context, plan *Plan, onLine func(string)) (Exit, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.plans = append(s.plans, plan)
	s.mu.Unlock()

	if s.err != nil {
		return Exit{}, s.err
	}
	for _, line := range s.lines {
		onLine(line)
	}
	return s.exit, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Progress
}

func (l *eventLog) add(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, p)
}

func (l *eventLog) snapshot() []Progress {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Progress(nil), l.events...)
}

func waitPending(t *testing.T, p *Pending) ([]string, error) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(20 * time.Second):
		t.Fatal("shred call did not finish")
	}
	return p.Wait()
}

func TestNewDefaults(t *testing.T) {
	s := New(Config{UtilityPath: "/definitely/not/here/shred", Iterations: 3, RemoveAfter: true, FinalZeroPass: true})

	assert.False(t, s.PathExists())
	assert.Equal(t, []string{"-v", "--iterations=3", "-u", "-z"}, s.Flags())

	flags := s.Flags()
	flags[0] = "mutated"
	assert.Equal(t, "-v", s.Flags()[0])
}

func TestNewExistsCheck(t *testing.T) {
	var checked string
	s := New(DefaultConfig(), WithExistsCheck(func(path string) bool {
		checked = path
		return true
	}))

	assert.True(t, s.PathExists())
	assert.Equal(t, DefaultUtilityPath, checked)
}

func TestShredInputErrorsNeverSpawn(t *testing.T) {
	for _, files := range [][]string{nil, {}, {""}} {
		spawner := &scriptedSpawner{}
		s := New(DefaultConfig(), WithSpawner(spawner))

		got, err := waitPending(t, s.Shred(context.Background(), files, nil))
		require.Error(t, err)
		assert.True(t, IsInputError(err))
		assert.Nil(t, got)
		assert.Zero(t, spawner.calls.Load())
	}
}

func TestShredFuncInputErrorCallsEndOnce(t *testing.T) {
	spawner := &scriptedSpawner{}
	s := New(DefaultConfig(), WithSpawner(spawner))

	var statusCalls, endCalls atomic.Int32
	done := make(chan error, 2)
	s.ShredFunc(context.Background(), nil,
		func(Progress) { statusCalls.Add(1) },
		func(err error, files []string) {
			endCalls.Add(1)
			assert.Nil(t, files)
			done <- err
		})

	err := <-done
	assert.ErrorIs(t, err, ErrNoFiles)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), endCalls.Load())
	assert.Zero(t, statusCalls.Load())
	assert.Zero(t, spawner.calls.Load())
}

func TestShredSuccessWithScriptedOutput(t *testing.T) {
	spawner := &scriptedSpawner{
		lines: []string{
			"/usr/bin/shred: x: pass 1/2 (random)...",
			"random noise",
			"/usr/bin/shred: x: pass 2/2 (000000)...",
			"/usr/bin/shred: x: removing",
			"/usr/bin/shred: x: renamed to 0",
			"/usr/bin/shred: x: removed",
		},
	}
	s := New(DefaultConfig(), WithSpawner(spawner))

	var log eventLog
	files := []string{"./a/x"}
	got, err := waitPending(t, s.Shred(context.Background(), files, log.add))
	require.NoError(t, err)
	assert.Equal(t, files, got)

	assert.Equal(t, []Progress{
		{Action: Overwriting, Fraction: 0.5, FileName: "x", Directory: "a"},
		{Action: Overwriting, Fraction: 1, FileName: "x", Directory: "a"},
		{Action: Renaming, Fraction: 1, FileName: "x", Directory: "a"},
	}, log.snapshot())

	require.Len(t, spawner.plans, 1)
	assert.Equal(t, "a", spawner.plans[0].WorkingDirectory)
}

func TestShredStreamError(t *testing.T) {
	streamErr := errors.New("read stderr: broken")
	spawner := &scriptedSpawner{exit: Exit{StreamErr: streamErr}}
	s := New(DefaultConfig(), WithSpawner(spawner))

	files := []string{"/d/a", "/d/b"}
	got, err := waitPending(t, s.Shred(context.Background(), files, nil))
	require.Error(t, err)
	assert.True(t, IsUtilityError(err))
	assert.ErrorIs(t, err, streamErr)
	assert.Equal(t, files, got)
}

func TestShredDebugLogsCommand(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Debug = true
	s := New(cfg, WithSpawner(&scriptedSpawner{}), WithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)))

	_, err := waitPending(t, s.Shred(context.Background(), []string{"/d/a"}, nil))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "configured shred command")
	assert.Contains(t, out, "/usr/bin/shred -v --iterations=3 -u -z a")
	assert.Contains(t, out, `"component":"shredder"`)
}

func TestShredQuietWithoutDebug(t *testing.T) {
	var buf bytes.Buffer
	s := New(DefaultConfig(), WithSpawner(&scriptedSpawner{}), WithLogger(zerolog.New(&buf).Level(zerolog.InfoLevel)))

	_, err := waitPending(t, s.Shred(context.Background(), []string{"/d/a"}, nil))
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestShredRealProcessSameDirectory(t *testing.T) {
	cfg := fakeUtilityConfig(t)
	s := New(cfg)
	require.True(t, s.PathExists())

	dir := t.TempDir()
	files := writeFiles(t, dir, "abc", "de")

	var log eventLog
	got, err := waitPending(t, s.Shred(context.Background(), files, log.add))
	require.NoError(t, err)
	assert.Equal(t, files, got)

	// 3 passes plus the zero pass, then one rename per name character
	events := log.snapshot()
	require.Len(t, events, 4+3+4+2)
	for _, ev := range events {
		assert.Equal(t, dir, ev.Directory)
	}
	assert.Equal(t, Progress{Action: Overwriting, Fraction: 0.25, FileName: "abc", Directory: dir}, events[0])
	assert.Equal(t, Progress{Action: Renaming, Fraction: 1, FileName: "abc", Directory: dir}, events[4])
	assert.InDelta(t, 1.0/3, events[6].Fraction, 1e-9)
	assert.Equal(t, "de", events[7].FileName)
	assert.InDelta(t, 0.5, events[12].Fraction, 1e-9)

	for _, f := range files {
		_, statErr := os.Stat(f)
		assert.True(t, os.IsNotExist(statErr), f)
	}
}

func TestShredRealProcessCrossDirectory(t *testing.T) {
	cfg := fakeUtilityConfig(t)
	cfg.RemoveAfter = false
	cfg.FinalZeroPass = false
	cfg.Iterations = 1
	s := New(cfg)

	dirA, dirB := t.TempDir(), t.TempDir()
	files := append(writeFiles(t, dirA, "x"), writeFiles(t, dirB, "y")...)

	var log eventLog
	got, err := waitPending(t, s.Shred(context.Background(), files, log.add))
	require.NoError(t, err)
	assert.Equal(t, files, got)

	assert.Equal(t, []Progress{
		{Action: Overwriting, Fraction: 1, FileName: "x", Directory: dirA},
		{Action: Overwriting, Fraction: 1, FileName: "y", Directory: dirB},
	}, log.snapshot())

	for _, f := range files {
		assert.FileExists(t, f)
	}
}

func TestShredRealProcessNonzeroExit(t *testing.T) {
	cfg := fakeUtilityConfig(t)
	t.Setenv(fakeExitEnv, "2")
	s := New(cfg)

	files := writeFiles(t, t.TempDir(), "a")
	got, err := waitPending(t, s.Shred(context.Background(), files, nil))
	require.Error(t, err)

	var uerr *UtilityError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, 2, uerr.Code)
	assert.Empty(t, uerr.Signal)
	assert.Equal(t, files, uerr.Files)
	assert.Equal(t, files, got)
	assert.Equal(t, 2, ExitCode(err))
}

func TestShredRealProcessNoiseIgnored(t *testing.T) {
	cfg := fakeUtilityConfig(t)
	cfg.Iterations = 1
	cfg.FinalZeroPass = false
	cfg.RemoveAfter = false
	t.Setenv(fakeNoiseEnv, "1")
	s := New(cfg)

	var log eventLog
	_, err := waitPending(t, s.Shred(context.Background(), writeFiles(t, t.TempDir(), "a"), log.add))
	require.NoError(t, err)
	assert.Len(t, log.snapshot(), 1)
}

func TestShredRealProcessCancelled(t *testing.T) {
	cfg := fakeUtilityConfig(t)
	t.Setenv(fakeHangEnv, "1")
	s := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files := writeFiles(t, t.TempDir(), "a")
	got, err := waitPending(t, s.Shred(ctx, files, func(Progress) { cancel() }))
	require.Error(t, err)

	var uerr *UtilityError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, -1, uerr.Code)
	assert.NotEmpty(t, uerr.Signal)
	assert.Equal(t, files, got)
}

func TestShredMissingUtility(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UtilityPath = filepath.Join(t.TempDir(), "no-such-shred")
	s := New(cfg)
	assert.False(t, s.PathExists())

	var statusCalls atomic.Int32
	got, err := waitPending(t, s.Shred(context.Background(), []string{"/d/a"}, func(Progress) { statusCalls.Add(1) }))
	require.Error(t, err)
	assert.True(t, IsSpawnError(err))
	assert.False(t, IsUtilityError(err))
	assert.Nil(t, got)
	assert.Zero(t, statusCalls.Load())
	assert.Equal(t, -1, ExitCode(err))
}

func TestShredFuncRealProcess(t *testing.T) {
	cfg := fakeUtilityConfig(t)
	s := New(cfg)

	files := writeFiles(t, t.TempDir(), "a", "b")

	var log eventLog
	var endCalls atomic.Int32
	type outcome struct {
		err   error
		files []string
	}
	done := make(chan outcome, 2)
	s.ShredFunc(context.Background(), files, log.add, func(err error, got []string) {
		endCalls.Add(1)
		done <- outcome{err, got}
	})

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, files, out.files)
	case <-time.After(20 * time.Second):
		t.Fatal("end callback never called")
	}

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), endCalls.Load())
	// Every status event precedes the end callback
	assert.Len(t, log.snapshot(), 2*(4+1))
}

func TestShredConcurrentCallsAreIndependent(t *testing.T) {
	cfg := fakeUtilityConfig(t)
	s := New(cfg)

	dirA, dirB := t.TempDir(), t.TempDir()
	filesA := writeFiles(t, dirA, "alpha", "beta")
	filesB := writeFiles(t, dirB, "gamma")

	var logA, logB eventLog
	pendingA := s.Shred(context.Background(), filesA, logA.add)

	doneB := make(chan []string, 1)
	s.ShredFunc(context.Background(), filesB, logB.add, func(err error, files []string) {
		assert.NoError(t, err)
		doneB <- files
	})

	gotA, errA := waitPending(t, pendingA)
	require.NoError(t, errA)
	assert.Equal(t, filesA, gotA)
	assert.Equal(t, filesB, <-doneB)

	for _, ev := range logA.snapshot() {
		assert.Equal(t, dirA, ev.Directory)
		assert.Contains(t, []string{"alpha", "beta"}, ev.FileName)
	}
	for _, ev := range logB.snapshot() {
		assert.Equal(t, dirB, ev.Directory)
		assert.Equal(t, "gamma", ev.FileName)
	}
	assert.Len(t, logA.snapshot(), 4+5+4+4)
	assert.Len(t, logB.snapshot(), 4+5)
}

func TestPendingResolvesOnce(t *testing.T) {
	p := newPending()
	p.resolve([]string{"a"}, nil)
	p.resolve(nil, errors.New("late"))

	files, err := p.Wait()
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, files)
}
