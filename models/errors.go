package models

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("medico already exists for that specialty")
	ErrNotFound   = errors.New("medico not found")
	ErrStorage    = errors.New("storage failure")
)
