package reminder

import "errors"

var (
	ErrNotFound   = errors.New("reminder not found")
	ErrValidation = errors.New("validation error")
	ErrDuplicate  = errors.New("reminder already exists")
)
