package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
	ErrStoreQuery      = errors.New("record store query failed")
	ErrToolFailed      = errors.New("tool execution failed")
	ErrStageFailed     = errors.New("stage failed")
)
