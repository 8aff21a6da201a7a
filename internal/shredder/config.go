package shredder

const (
	// DefaultUtilityPath is where GNU coreutils installs shred on most distributions
	DefaultUtilityPath = "/usr/bin/shred"

	// DefaultIterations is the number of random overwrite passes
	DefaultIterations = 3
)

// Config controls how the external shred utility is invoked.
// A Config is copied into the Shredder at construction and never changed afterwards.
type Config struct {
	UtilityPath   string // Path to the shred binary
	ForceWritable bool   // Change permissions to allow writing if necessary (-f)
	Iterations    uint   // Overwrite passes before the optional zero pass
	SizeLimit     string // Shred only this many bytes, e.g. "64K"; ignored unless it matches ^\d+[KMG]?$
	RemoveAfter   bool   // Truncate, rename and unlink after overwriting (-u)
	FinalZeroPass bool   // Add a final overwrite with zeros to hide shredding (-z)
	Debug         bool   // Log the command line and raw utility output
}

// DefaultConfig returns the settings used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		UtilityPath:   DefaultUtilityPath,
		ForceWritable: false,
		Iterations:    DefaultIterations,
		SizeLimit:     "",
		RemoveAfter:   true,
		FinalZeroPass: true,
		Debug:         false,
	}
}
