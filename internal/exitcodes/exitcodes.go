package exitcodes

// Exit codes for fastrm
// These codes form the operational contract with scripts and CI jobs
const (
	Success         = 0 // Every pattern resolved and every match deleted
	Usage           = 1 // Bad flags or no patterns given
	InvalidConfig   = 2 // Configuration file or flag values invalid
	SafetyViolation = 3 // Safety guard refused a resolved path
	RuntimeError    = 4 // A filesystem operation failed
	PatternError    = 5 // A pattern has invalid glob syntax
)
