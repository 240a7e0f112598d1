package store

import (
	"errors"
	"fmt"
)

// Sentinel errors mirroring the closed error taxonomy of spec §7, classes
// 1–3 (validation is the task engine's job; the store only ever returns
// "not found", "gone", "illegal transition", and "conflict").
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrGone indicates a row that existed at lookup time vanished before
	// the mutating half of the same logical operation committed (deleted
	// concurrently mid-transition).
	ErrGone = errors.New("gone")

	// ErrIllegalTransition indicates a state-machine guard refused the
	// requested transition (spec §3 transition guards).
	ErrIllegalTransition = errors.New("illegal transition")
)

// ConflictError is returned by TaskRepository.Start when another task is
// already ACTIVE. It names the winner so the caller can surface a
// user-visible reason (spec §4.3).
type ConflictError struct {
	ActiveTaskID    int64
	ActiveTaskTitle string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %q (id=%d) is already active", e.ActiveTaskTitle, e.ActiveTaskID)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsGone reports whether err is or wraps ErrGone.
func IsGone(err error) bool { return errors.Is(err, ErrGone) }

// IsIllegalTransition reports whether err is or wraps ErrIllegalTransition.
func IsIllegalTransition(err error) bool { return errors.Is(err, ErrIllegalTransition) }

// AsConflict reports whether err is a *ConflictError and returns it.
func AsConflict(err error) (*ConflictError, bool) {
	var c *ConflictError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}
