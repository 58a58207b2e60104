package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	ErrStaleReview     = errors.New("stale review")
	ErrVersionConflict = errors.New("version conflict")
	ErrTerminalState   = errors.New("document is in a terminal state")
	ErrFatal           = errors.New("fatal stage failure")
)

// Error codes exposed to API, MCP and CLI clients.
const (
	CodeNotFound        = "not_found"
	CodeInvalidInput    = "invalid_input"
	CodeUnauthorized    = "unauthorized"
	CodeStaleReview     = "stale_review"
	CodeVersionConflict = "version_conflict"
	CodeTerminalState   = "terminal_state"
	CodeTemporary       = "temporary"
	CodeInternal        = "internal"
)

// Checked in order: a stale review wrapped as invalid input still reports stale_review.
var errorCodes = []struct {
	kind error
	code string
}{
	{ErrStaleReview, CodeStaleReview},
	{ErrTerminalState, CodeTerminalState},
	{ErrVersionConflict, CodeVersionConflict},
	{ErrDocumentNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrTemporary, CodeTemporary},
}

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorCode names the kind of err for clients. Unclassified errors are internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.kind) {
			return entry.code
		}
	}
	return CodeInternal
}
