package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Submission validation errors
// 12000-12999: Sandbox & Container driver errors
// 13000-13999: Judge engine errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10004
	ServiceUnavailable  ErrorCode = 10005
	Timeout             ErrorCode = 10006

	// Cache errors (10200-10299)
	CacheError     ErrorCode = 10200
	CacheMiss      ErrorCode = 10201
	CacheSetFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Submission Validation Errors (11000-11999) ==========

	// Code checks (11000-11099)
	CodeEmpty        ErrorCode = 11000
	CodeTooLarge     ErrorCode = 11001
	ForbiddenPattern ErrorCode = 11002

	// Language checks (11100-11199)
	LanguageNotSupported ErrorCode = 11100
	StandardNotSupported ErrorCode = 11101
	FlagsInvalid         ErrorCode = 11102

	// Request shape checks (11200-11299)
	BatchTooLarge ErrorCode = 11200
	BatchEmpty    ErrorCode = 11201
	ConfigInvalid ErrorCode = 11202
	LimitsInvalid ErrorCode = 11203

	// ========== Sandbox & Container Driver Errors (12000-12999) ==========

	// Runtime availability (12000-12099)
	RuntimeUnavailable ErrorCode = 12000
	ImageMissing       ErrorCode = 12001

	// Container lifecycle (12100-12199)
	ContainerCreateFailed ErrorCode = 12100
	ContainerStartFailed  ErrorCode = 12101
	ContainerStopFailed   ErrorCode = 12102
	ContainerRemoveFailed ErrorCode = 12103

	// Exec & archive IO (12200-12299)
	ExecFailed       ErrorCode = 12200
	DeadlineExceeded ErrorCode = 12201
	ArchiveIOFailed  ErrorCode = 12202

	// ========== Judge Engine Errors (13000-13999) ==========

	// Scheduling (13000-13099)
	JudgeQueueFull   ErrorCode = 13000
	JudgeSystemError ErrorCode = 13001

	// Pipeline outcomes (13100-13199)
	CompileError   ErrorCode = 13100
	CompileTimeout ErrorCode = 13101
	RuntimeError   ErrorCode = 13102
	RuntimeTimeout ErrorCode = 13103

	// Result collection (13200-13299)
	ResultMissing ErrorCode = 13200
	ResultInvalid ErrorCode = 13201
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Cache
	CacheError:     "Cache operation failed",
	CacheMiss:      "Cache miss",
	CacheSetFailed: "Failed to set cache",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Submission - Code checks
	CodeEmpty:        "Source code must not be empty",
	CodeTooLarge:     "Source code exceeds the maximum allowed length",
	ForbiddenPattern: "Source code contains a forbidden pattern",

	// Submission - Language checks
	LanguageNotSupported: "Programming language not supported",
	StandardNotSupported: "Language standard not supported",
	FlagsInvalid:         "Compiler flags are not valid",

	// Submission - Request shape
	BatchTooLarge: "Batch exceeds the maximum number of tests",
	BatchEmpty:    "Batch must contain at least one test",
	ConfigInvalid: "Test configuration is invalid",
	LimitsInvalid: "Resource limits are invalid",

	// Sandbox - Runtime availability
	RuntimeUnavailable: "Container runtime is unavailable",
	ImageMissing:       "Runner image is missing",

	// Sandbox - Container lifecycle
	ContainerCreateFailed: "Failed to create container",
	ContainerStartFailed:  "Failed to start container",
	ContainerStopFailed:   "Failed to stop container",
	ContainerRemoveFailed: "Failed to remove container",

	// Sandbox - Exec & archive IO
	ExecFailed:       "Command execution failed",
	DeadlineExceeded: "Command deadline exceeded",
	ArchiveIOFailed:  "Archive transfer failed",

	// Judge - Scheduling
	JudgeQueueFull:   "Judge queue is full, please try again later",
	JudgeSystemError: "Judge system error",

	// Judge - Pipeline outcomes
	CompileError:   "Compilation error",
	CompileTimeout: "Compilation time limit exceeded",
	RuntimeError:   "Runtime error",
	RuntimeTimeout: "Execution time limit exceeded",

	// Judge - Result collection
	ResultMissing: "Result file is missing",
	ResultInvalid: "Result file is not valid",
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
	case c == NotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable, c == RuntimeUnavailable:
		return 503
	case c >= 11000 && c < 12000: // Submission validation rejects
		return 422
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}
