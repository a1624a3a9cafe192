// Package exitcode provides standardized exit codes for crxprep
package exitcode

// Exit codes for the crxprep CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
	FileSystemError = 4
	// PartialFailure means the run finished but some files could not be processed.
	PartialFailure  = 5
	ManifestMissing = 6
	BuilderError    = 7
	Cancelled       = 130
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case PartialFailure:
		return "Partial failure"
	case ManifestMissing:
		return "Manifest not found"
	case BuilderError:
		return "Builder error"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown error"
	}
}
