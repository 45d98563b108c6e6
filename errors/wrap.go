package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a SyncError, it keeps its code and context.
// Context errors map to TIMEOUT and CANCELED. Anything else becomes NETWORK_ERR.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var syncErr *Error
	if errors.As(err, &syncErr) {
		wrapped := &Error{
			code:      syncErr.code,
			category:  syncErr.category,
			message:   message,
			cause:     err,
			metadata:  syncErr.Metadata(),
			retryable: syncErr.retryable,
			timestamp: syncErr.timestamp,
			epoch:     syncErr.epoch,
			messageID: syncErr.messageID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	// Check for context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeNetworkErr, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsSyncError extracts a SyncError from an error chain.
// Returns nil if none is found.
func AsSyncError(err error) SyncError {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr
	}
	return nil
}

// FaultOf returns the failure class of err. Errors outside the taxonomy are
// treated as network faults.
func FaultOf(err error) Fault {
	if err == nil {
		return ""
	}
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Fault()
	}
	return FaultNetwork
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Retryable()
	}
	// Default to not retryable for non-SyncErrors
	return false
}

// IsTransient checks if the error is transient.
func IsTransient(err error) bool {
	return IsCategory(err, CategoryTransient)
}

// IsPermanent checks if the error is permanent.
func IsPermanent(err error) bool {
	return IsCategory(err, CategoryPermanent)
}

// IsResource checks if the error is resource-related.
func IsResource(err error) bool {
	return IsCategory(err, CategoryResource)
}

// IsInternal checks if the error is an internal error.
func IsInternal(err error) bool {
	return IsCategory(err, CategoryInternal)
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not an SyncError.
func Code(err error) ErrorCode {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.code
	}
	return ""
}

// Category extracts the error category from an error, if available.
// Returns empty string if err is not an SyncError.
func Category(err error) ErrorCategory {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.category
	}
	return ""
}

// GetMetadata extracts metadata from an error.
// Returns nil if err is not an SyncError.
func GetMetadata(err error) map[string]string {
	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Metadata()
	}
	return nil
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines multiple errors into a single error.
// If all errors are nil, returns nil.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
