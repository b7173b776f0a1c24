package transport

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrRateLimited = errors.New("rate limited")
	ErrConflict    = errors.New("conflict")
)

type UnreachableReason string

const (
	UnreachableUnknownUser UnreachableReason = "unknown_user"
	UnreachableDMsDisabled UnreachableReason = "dms_disabled"
	UnreachableOther       UnreachableReason = "other"
)

// UnreachableError means a private message could not be delivered to the
// recipient. It is never worth retrying.
type UnreachableError struct {
	Reason UnreachableReason
	Err    error
}

func (e *UnreachableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recipient unreachable (%s)", e.Reason)
	}
	return fmt.Sprintf("recipient unreachable (%s): %v", e.Reason, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// AsUnreachable returns the UnreachableError wrapped by err, if any.
func AsUnreachable(err error) (*UnreachableError, bool) {
	var target *UnreachableError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func IsUnreachable(err error) bool {
	_, ok := AsUnreachable(err)
	return ok
}
