package conversation

import "errors"

// Error classes surfaced to callers. Details are wrapped around these with
// fmt.Errorf, so match with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)
