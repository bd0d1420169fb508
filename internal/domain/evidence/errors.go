package evidence

import "errors"

var (
	ErrNotFound      = errors.New("evidence file not found")
	ErrForbidden     = errors.New("forbidden")
	ErrTaskNotFound  = errors.New("task not found")
	ErrNotConfigured = errors.New("document store is not configured for this workspace")
)
