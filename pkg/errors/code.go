package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Input validation errors
// 12000-12999: Archive & Mount errors
// 13000-13999: CGI execution errors
// 14000-14999: Remote storage errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Forbidden           ErrorCode = 10004
	TooManyRequests     ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10006
	Timeout             ErrorCode = 10007
	PayloadTooLarge     ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// ========== Input Validation Errors (11000-11999) ==========

	InvalidGameID   ErrorCode = 11000
	InvalidHostname ErrorCode = 11001
	InvalidURLPath  ErrorCode = 11002

	// ========== Archive & Mount Errors (12000-12999) ==========

	// Mount lifecycle (12000-12099)
	ArchiveNotMounted      ErrorCode = 12000
	ArchiveOpenFailed      ErrorCode = 12001
	ArchiveSourceMissing   ErrorCode = 12002
	MountSourceOutsideRoot ErrorCode = 12003

	// Lookup (12100-12199)
	ArchiveFileNotFound ErrorCode = 12100
	ArchiveReadFailed   ErrorCode = 12101

	// ========== CGI Execution Errors (13000-13999) ==========

	ScriptOutsideRoot   ErrorCode = 13000
	CgiSpawnFailed      ErrorCode = 13001
	CgiTimeout          ErrorCode = 13002
	CgiSignaled         ErrorCode = 13003
	CgiExitError        ErrorCode = 13004
	CgiResponseTooLarge ErrorCode = 13005

	// ========== Remote Storage Errors (14000-14999) ==========

	ObjectNotFound     ErrorCode = 14000
	ObjectFetchFailed  ErrorCode = 14001
	StorageUnavailable ErrorCode = 14002
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",
	PayloadTooLarge:     "Payload too large",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	InvalidGameID:   "Invalid game id",
	InvalidHostname: "Invalid hostname",
	InvalidURLPath:  "Invalid URL path",

	// Archive & Mount
	ArchiveNotMounted:      "Archive is not mounted",
	ArchiveOpenFailed:      "Failed to open archive",
	ArchiveSourceMissing:   "Archive source file does not exist",
	MountSourceOutsideRoot: "Archive source is outside the games directory",
	ArchiveFileNotFound:    "File not found in any mounted archive",
	ArchiveReadFailed:      "Failed to read archive entry",

	// CGI
	ScriptOutsideRoot:   "Script path is outside the allowed roots",
	CgiSpawnFailed:      "Failed to spawn CGI interpreter",
	CgiTimeout:          "CGI execution timed out",
	CgiSignaled:         "CGI interpreter terminated by signal",
	CgiExitError:        "CGI interpreter exited with an error",
	CgiResponseTooLarge: "CGI response exceeds the size limit",

	// Remote storage
	ObjectNotFound:     "Object not found in remote storage",
	ObjectFetchFailed:  "Failed to fetch object from remote storage",
	StorageUnavailable: "Remote storage is not configured",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c >= 11000 && c < 12000: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	case c == Forbidden, c == MountSourceOutsideRoot, c == ScriptOutsideRoot:
		return 403
	case c == NotFound, c == ArchiveNotMounted, c == ArchiveFileNotFound, c == ObjectNotFound:
		return 404
	case c == PayloadTooLarge, c == CgiResponseTooLarge:
		return 413
	case c == TooManyRequests:
		return 429
	case c == Timeout, c == CgiTimeout:
		return 504
	case c == ServiceUnavailable, c == StorageUnavailable:
		return 503
	default:
		return 500
	}
}
