// Package output provides JSON/Markdown/styled output formatting and error handling.
package output

// Exit codes.
const (
	ExitOK          = 0 // Success
	ExitUsage       = 1 // Invalid arguments or flags
	ExitNotFound    = 2 // Resource not found
	ExitAuth        = 3 // Not authenticated
	ExitForbidden   = 4 // Access denied
	ExitValidation  = 5 // Backend rejected the payload (400)
	ExitNetwork     = 6 // Connection/DNS error
	ExitAPI         = 7 // Server returned error
	ExitTimeout     = 8 // Request exceeded the client timeout
	ExitCircuitOpen = 9 // Too many consecutive failures
)

// Error codes for the JSON envelope.
const (
	CodeUsage       = "usage"
	CodeNotFound    = "not_found"
	CodeAuth        = "auth_required"
	CodeForbidden   = "forbidden"
	CodeValidation  = "validation"
	CodeNetwork     = "network"
	CodeTimeout     = "timeout"
	CodeAPI         = "api_error"
	CodeDecode      = "decode"
	CodeCircuitOpen = "circuit_open"
	CodeUnavailable = "unavailable"
)

// ExitCodeFor returns the exit code for a given error code.
func ExitCodeFor(code string) int {
	switch code {
	case CodeUsage:
		return ExitUsage
	case CodeNotFound:
		return ExitNotFound
	case CodeAuth:
		return ExitAuth
	case CodeForbidden:
		return ExitForbidden
	case CodeValidation:
		return ExitValidation
	case CodeNetwork:
		return ExitNetwork
	case CodeTimeout:
		return ExitTimeout
	case CodeCircuitOpen:
		return ExitCircuitOpen
	default:
		return ExitAPI
	}
}
