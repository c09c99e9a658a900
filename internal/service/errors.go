package service

import "errors"

// ErrInvalidTask is returned when task input fails validation.
var ErrInvalidTask = errors.New("invalid task")
