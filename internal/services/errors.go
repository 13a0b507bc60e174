package services

import "errors"

// Failure taxonomy shared by the realtime dispatcher and the REST handlers.
// Duplicate joins are deliberately not an error: they ack success with the
// current snapshot.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
)
