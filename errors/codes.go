package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where a reconnect may succeed.
	// Examples: dial failures, connect timeouts, missed heartbeats.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: rejected credentials, malformed frames, invalid input.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates capacity or quota issues.
	// Examples: queue overflow, oversized messages, server rate limits.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	// Examples: handler panics, corrupted state.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// Fault names the class of channel failure an error belongs to. It decides
// which state the connection manager moves to.
type Fault string

const (
	FaultNetwork        Fault = "network"        // dial failure, abnormal close, connect timeout
	FaultLiveness       Fault = "liveness"       // pong not received in time
	FaultAuthentication Fault = "authentication" // credentials rejected
	FaultProtocol       Fault = "protocol"       // malformed or unknown frame
	FaultCapacity       Fault = "capacity"       // queue overflow, oversized message, rate limit
	FaultExhaustion     Fault = "exhaustion"     // reconnect attempts used up
	FaultInternal       Fault = "internal"       // bug or handler panic
)

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for channel failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout          ErrorCode = "TIMEOUT"           // Connect attempt timed out
	ErrCodeNetworkErr       ErrorCode = "NETWORK_ERR"       // Transport failed or closed abnormally
	ErrCodeHeartbeatTimeout ErrorCode = "HEARTBEAT_TIMEOUT" // Pong not received in time
	ErrCodeServerError      ErrorCode = "SERVER_ERROR"      // Server reported a recoverable error

	// Permanent errors
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"   // Malformed or invalid input
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"    // Authentication failed
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"       // Authorization denied
	ErrCodeMalformedFrame ErrorCode = "MALFORMED_FRAME" // Inbound frame could not be decoded
	ErrCodeNotConnected   ErrorCode = "NOT_CONNECTED"   // Operation requires an open channel
	ErrCodeCanceled       ErrorCode = "CANCELED"        // Operation was canceled

	// Resource errors
	ErrCodeRateLimit       ErrorCode = "RATE_LIMITED"      // Rate limit exceeded
	ErrCodeQueueOverflow   ErrorCode = "QUEUE_OVERFLOW"    // Oldest queued message evicted
	ErrCodeMessageTooLarge ErrorCode = "MESSAGE_TOO_LARGE" // Encoded frame exceeds size limit

	// Exhaustion
	ErrCodeReconnectExhausted ErrorCode = "RECONNECT_EXHAUSTED" // Retry budget used up

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
	ErrCodePanic    ErrorCode = "PANIC"    // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeNetworkErr, ErrCodeHeartbeatTimeout, ErrCodeServerError:
		return CategoryTransient

	case ErrCodeInvalidInput, ErrCodeUnauthorized, ErrCodeForbidden, ErrCodeMalformedFrame,
		ErrCodeNotConnected, ErrCodeCanceled, ErrCodeReconnectExhausted:
		return CategoryPermanent

	case ErrCodeRateLimit, ErrCodeQueueOverflow, ErrCodeMessageTooLarge:
		return CategoryResource

	case ErrCodeInternal, ErrCodePanic:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

// Fault returns the failure class for an error code.
func (c ErrorCode) Fault() Fault {
	switch c {
	case ErrCodeTimeout, ErrCodeNetworkErr, ErrCodeServerError:
		return FaultNetwork
	case ErrCodeHeartbeatTimeout:
		return FaultLiveness
	case ErrCodeUnauthorized, ErrCodeForbidden:
		return FaultAuthentication
	case ErrCodeMalformedFrame, ErrCodeInvalidInput, ErrCodeNotConnected, ErrCodeCanceled:
		return FaultProtocol
	case ErrCodeRateLimit, ErrCodeQueueOverflow, ErrCodeMessageTooLarge:
		return FaultCapacity
	case ErrCodeReconnectExhausted:
		return FaultExhaustion
	default:
		return FaultInternal
	}
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeTimeout:            "connect attempt timed out",
	ErrCodeNetworkErr:         "network connectivity error",
	ErrCodeHeartbeatTimeout:   "heartbeat pong not received",
	ErrCodeServerError:        "server reported an error",
	ErrCodeInvalidInput:       "invalid input provided",
	ErrCodeUnauthorized:       "authentication required",
	ErrCodeForbidden:          "access denied",
	ErrCodeMalformedFrame:     "malformed frame",
	ErrCodeNotConnected:       "channel not connected",
	ErrCodeCanceled:           "operation canceled",
	ErrCodeRateLimit:          "rate limit exceeded",
	ErrCodeQueueOverflow:      "outbound queue overflow",
	ErrCodeMessageTooLarge:    "message exceeds size limit",
	ErrCodeReconnectExhausted: "reconnect attempts exhausted",
	ErrCodeInternal:           "internal error",
	ErrCodePanic:              "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
