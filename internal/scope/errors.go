package scope

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while operating on a scope tree.
//
// Runtime errors include:
//   - Digest TTL: watchers kept changing past the iteration limit
//   - Destroyed scope: an operation targeted a scope that was torn down
//   - Parse error: an expression could not be parsed
//   - Assign error: an expression could not be assigned through
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ScopeID identifies the affected scope, when known.
	ScopeID ID

	// Expr is the expression involved (parse and assign errors).
	Expr string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDigestTTL indicates the dirty loop did not stabilize.
	ErrCodeDigestTTL RuntimeErrorCode = "DIGEST_TTL"

	// ErrCodeScopeDestroyed indicates the scope is no longer live.
	ErrCodeScopeDestroyed RuntimeErrorCode = "SCOPE_DESTROYED"

	// ErrCodeParse indicates an expression failed to parse.
	ErrCodeParse RuntimeErrorCode = "PARSE_ERROR"

	// ErrCodeAssign indicates an assignment could not be performed.
	ErrCodeAssign RuntimeErrorCode = "ASSIGN_ERROR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Expr != "" && e.ScopeID != 0 {
		return fmt.Sprintf("%s: %s (scope=%d, expr=%q)", e.Code, e.Message, e.ScopeID, e.Expr)
	}
	if e.Expr != "" {
		return fmt.Sprintf("%s: %s (expr=%q)", e.Code, e.Message, e.Expr)
	}
	if e.ScopeID != 0 {
		return fmt.Sprintf("%s: %s (scope=%d)", e.Code, e.Message, e.ScopeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDigestTTLError returns true if the digest did not stabilize.
// Uses errors.As to handle wrapped errors.
func IsDigestTTLError(err error) bool {
	return hasCode(err, ErrCodeDigestTTL)
}

// IsDestroyedError returns true if the error reports a destroyed scope.
func IsDestroyedError(err error) bool {
	return hasCode(err, ErrCodeScopeDestroyed)
}

// IsParseError returns true if the error is an expression parse error.
func IsParseError(err error) bool {
	return hasCode(err, ErrCodeParse)
}

// IsAssignError returns true if the error is an assignment error.
func IsAssignError(err error) bool {
	return hasCode(err, ErrCodeAssign)
}

// ApplyError reports an Apply whose function failed. The digest still ran;
// Digest holds its error, if any.
type ApplyError struct {
	Err    error
	Digest error
}

func (e *ApplyError) Error() string {
	if e.Digest != nil {
		return fmt.Sprintf("%v (digest: %v)", e.Err, e.Digest)
	}
	return e.Err.Error()
}

// Unwrap exposes both the function error and the digest error.
func (e *ApplyError) Unwrap() []error {
	if e.Digest != nil {
		return []error{e.Err, e.Digest}
	}
	return []error{e.Err}
}

// Committed reports whether the digest after the failing function completed.
func (e *ApplyError) Committed() bool {
	return e.Digest == nil
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewDigestTTLError creates a RuntimeError for a digest that did not settle.
func NewDigestTTLError(id ID, iterations, ttl int, lastDirty []string) *RuntimeError {
	details := map[string]string{
		"iterations": fmt.Sprintf("%d", iterations),
		"ttl":        fmt.Sprintf("%d", ttl),
	}
	if len(lastDirty) > 0 {
		details["last_dirty"] = fmt.Sprintf("%q", lastDirty)
	}
	return &RuntimeError{
		Code:    ErrCodeDigestTTL,
		Message: fmt.Sprintf("%d digest iterations reached, aborting", ttl),
		ScopeID: id,
		Details: details,
	}
}

// NewDestroyedError creates a RuntimeError for an operation on a dead scope.
func NewDestroyedError(id ID, op string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeScopeDestroyed,
		Message: fmt.Sprintf("cannot %s a destroyed scope", op),
		ScopeID: id,
	}
}

// NewParseError creates a RuntimeError for a malformed expression.
func NewParseError(expr, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeParse,
		Message: reason,
		Expr:    expr,
	}
}

// NewAssignError creates a RuntimeError for a failed assignment.
func NewAssignError(expr, reason string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeAssign,
		Message: reason,
		Expr:    expr,
	}
}
