package shredder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// The test binary doubles as a stand-in for GNU shred. When fakeUtilityEnv is
// set it prints shred's verbose output for its arguments and exits.
const (
	fakeUtilityEnv = "SHRED_SAGE_FAKE_UTILITY"
	fakeExitEnv    = "SHRED_SAGE_FAKE_EXIT"
	fakeHangEnv    = "SHRED_SAGE_FAKE_HANG"
	fakeNoiseEnv   = "SHRED_SAGE_FAKE_NOISE"
)

func TestMain(m *testing.M) {
	if os.Getenv(fakeUtilityEnv) == "1" {
		os.Exit(fakeShred(os.Args[0], os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeShred(argv0 string, args []string) int {
	iterations := 3
	var remove, zero bool
	var files []string

	for _, a := range args {
		switch {
		case a == "-v", a == "-f":
		case a == "-u":
			remove = true
		case a == "-z":
			zero = true
		case strings.HasPrefix(a, "--iterations="):
			iterations, _ = strconv.Atoi(strings.TrimPrefix(a, "--iterations="))
		case strings.HasPrefix(a, "--size="):
		default:
			files = append(files, a)
		}
	}

	if os.Getenv(fakeNoiseEnv) == "1" {
		fmt.Fprintln(os.Stderr, "ld.so: warning: something unrelated")
	}

	total := iterations
	if zero {
		total++
	}

	for _, f := range files {
		for pass := 1; pass <= total; pass++ {
			fmt.Fprintf(os.Stderr, "%s: %s: pass %d/%d (random)...\n", argv0, f, pass, total)
			if os.Getenv(fakeHangEnv) == "1" {
				time.Sleep(30 * time.Second)
			}
		}
		if !remove {
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: %s: removing\n", argv0, f)
		dir, name := filepath.Dir(f), filepath.Base(f)
		current := f
		for n := len(name); n >= 1; n-- {
			next := filepath.Join(dir, strings.Repeat("0", n))
			fmt.Fprintf(os.Stderr, "%s: %s: renamed to %s\n", argv0, current, next)
			current = next
		}
		_ = os.Remove(f)
		fmt.Fprintf(os.Stderr, "%s: %s: removed\n", argv0, f)
	}

	if code := os.Getenv(fakeExitEnv); code != "" {
		n, _ := strconv.Atoi(code)
		return n
	}
	return 0
}

// fakeUtilityConfig returns a Config that runs the test binary as the utility
func fakeUtilityConfig(t *testing.T) Config {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("locate test binary: %v", err)
	}
	t.Setenv(fakeUtilityEnv, "1")

	cfg := DefaultConfig()
	cfg.UtilityPath = exe
	return cfg
}

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("secret "+name), 0o600); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		paths = append(paths, p)
	}
	return paths
}
