package taskengine

import "errors"

// ErrTitleTooLong and friends are validation errors the engine returns
// before ever touching the store (spec §7 class 1: validation errors).
var (
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title exceeds maximum length")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
	ErrContextTooLong     = errors.New("context exceeds maximum length")
)
