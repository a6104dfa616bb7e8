package compare

import "errors"

// ErrNotFound is returned when no comparison request has the given ID.
var ErrNotFound = errors.New("compare: request not found")

// ErrInvalidInput is returned when request parameters fail validation.
var ErrInvalidInput = errors.New("compare: invalid input")

// ErrRepoOutsideRoot is returned when a repository path escapes the
// configured repo root.
var ErrRepoOutsideRoot = errors.New("compare: repository path outside repo root")
