package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyMessage    = errors.New("diagnostic message cannot be empty")
	ErrInvalidSeverity = errors.New("severity must be between 1 and 4")
	ErrInvalidRange    = errors.New("range end must not precede start")
	ErrEmptyName       = errors.New("symbol name is required")
)
