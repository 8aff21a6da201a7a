package shredder

import (
	"regexp"
	"strconv"
)

var sizePattern = regexp.MustCompile(`^\d+[KMG]?$`)

// ValidSize reports whether s is accepted as a --size value
func ValidSize(s string) bool {
	return sizePattern.MatchString(s)
}

// BuildFlags turns a Config into the utility's command-line flags.
// The order is fixed: verbosity, force, iterations, size, remove, zero.
// Progress parsing depends on -v always being present.
func BuildFlags(cfg Config) []string {
	flags := []string{"-v"}

	if cfg.ForceWritable {
		flags = append(flags, "-f")
	}

	flags = append(flags, "--iterations="+strconv.FormatUint(uint64(cfg.Iterations), 10))

	// Invalid sizes are dropped rather than rejected
	if cfg.SizeLimit != "" && ValidSize(cfg.SizeLimit) {
		flags = append(flags, "--size="+cfg.SizeLimit)
	}

	if cfg.RemoveAfter {
		flags = append(flags, "-u")
	}

	if cfg.FinalZeroPass {
		flags = append(flags, "-z")
	}

	return flags
}
