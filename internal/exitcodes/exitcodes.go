package exitcodes

// Exit codes for shred-sage
// These codes form the operational contract with scripts and operators
const (
	Success         = 0 // Successful execution
	InvalidConfig   = 2 // Configuration file invalid or missing, or bad command-line input
	SafetyViolation = 3 // Safety validator blocked an operation
	RuntimeError    = 4 // Runtime error during execution
	UtilityFailure  = 5 // The shred utility exited nonzero or was killed
)
