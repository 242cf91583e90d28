package service

import "errors"

var (
	// ErrActivityLogNotFound indicates the requested activity log does not exist.
	ErrActivityLogNotFound = errors.New("activity log not found")
	// ErrForbidden indicates the actor does not own the offering behind the log.
	ErrForbidden = errors.New("access denied")
	// ErrActivityLogConflict indicates a log already exists for the offering week.
	ErrActivityLogConflict = errors.New("activity log already exists for this week")
	// ErrValidation wraps input that failed validation.
	ErrValidation = errors.New("validation failed")
)
