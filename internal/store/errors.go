package store

import "errors"

// ErrOpNotFound is returned when a status transition references an operation
// ID that is not in the log.
var ErrOpNotFound = errors.New("operation not found")
