package model

import "errors"

var (
	// ErrNotFound is returned when a resource (a run, its artifacts...) is
	// not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists (e.g
	// opening a run log twice).
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource or request is not valid (task
	// validation, bad parameters...).
	ErrNotValid = errors.New("not valid")
)
