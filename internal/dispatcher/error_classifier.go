package dispatcher

import (
	"context"
	"errors"
	"strings"

	"github.com/local/pdfeditor/internal/engine"
)

// isTransientError checks if error is worth retrying later
func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	// Timeout errors
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Storage backend failures
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return true
	}

	// Network errors (connection issues, timeouts)
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof") {
		return true
	}

	return false
}

// isFatalError checks if error is fatal and should not be retried
func isFatalError(err error) bool {
	if err == nil {
		return false
	}

	// ValidationError
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}

	// Deleting every page is a request problem, retrying cannot fix it.
	var allDeleted *engine.AllPagesDeletedError
	if errors.As(err, &allDeleted) {
		return true
	}

	// A save that fails verification would fail the same way again.
	var saveVerify *engine.SaveVerificationError
	if errors.As(err, &saveVerify) {
		return true
	}

	// Validation keywords in error message
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "invalid request") ||
		strings.Contains(errStr, "validation failed") ||
		strings.Contains(errStr, "bad request") ||
		strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "unsupported input") {
		return true
	}

	return false
}

// isTimeoutError checks if error is specifically a timeout
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}
