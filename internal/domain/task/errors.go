package task

import "errors"

var (
	ErrNotFound         = errors.New("task not found")
	ErrDuplicate        = errors.New("task already exists for compliance id and entity")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("task is not pending")
	ErrEvidenceRequired = errors.New("at least one evidence file is required")
)
