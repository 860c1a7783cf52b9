package defaults

// Exit codes for the CLI.
const (
	ExitSuccess       = 0 // Scan completed, one line per target
	ExitInternalError = 1 // Unexpected internal error
	ExitSessionError  = 2 // Session rotation failed, run aborted
	ExitConfigError   = 3 // Invalid arguments or configuration
	ExitTargetError   = 4 // Oracle unreachable or datasource lookup failed
	ExitInterrupted   = 5 // Operator interrupted the scan
)
