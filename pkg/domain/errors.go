package domain

import (
	"fmt"
	"strings"
)

// ErrorCode is the machine-stable code echoed in error responses.
type ErrorCode string

// Stable error codes, one per failure class.
const (
	CodeInvalidInput         ErrorCode = "invalid_input"
	CodeInvalidIdentifier    ErrorCode = "invalid_identifier"
	CodeNotFound             ErrorCode = "not_found"
	CodeStoreUnavailable     ErrorCode = "store_unavailable"
	CodeStoreOperationFailed ErrorCode = "store_operation_failed"
)

// InvalidInputError reports malformed or missing request fields.
type InvalidInputError struct {
	Reason  string
	Missing []string
}

func (e InvalidInputError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing %s", e.Reason, strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

// InvalidIdentifierError reports an identifier that fails the pattern check.
// Raw echoes the supplied value for diagnostics.
type InvalidIdentifierError struct {
	Raw string
}

func (e InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid identifier %q", e.Raw)
}

// NotFoundError reports a missing record or an empty criteria match.
type NotFoundError struct {
	ID       string
	Criteria map[string]any
}

func (e NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %s not found", e.ID)
	}
	return "no records match criteria"
}

// StoreUnavailableError reports a failed connectivity check before any
// operation was attempted.
type StoreUnavailableError struct {
	Err error
}

func (e StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e StoreUnavailableError) Unwrap() error { return e.Err }

// StoreOperationError reports a store call failing during an otherwise-valid
// request. Op names the failed operation.
type StoreOperationError struct {
	Op  string
	Err error
}

func (e StoreOperationError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e StoreOperationError) Unwrap() error { return e.Err }
