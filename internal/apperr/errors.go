// Package apperr defines sentinel errors shared across service layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrMarkerNotFound  = errors.New("marker not found")
	ErrInvalidWidth    = errors.New("invalid width")
	ErrAssetUnresolved = errors.New("asset unresolved")
	ErrUnauthorized    = errors.New("unauthorized")
)
