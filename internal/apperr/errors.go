package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrBadFilter   = errors.New("invalid filter")
	ErrEmptyFilter = errors.New("no filter specified")
)
