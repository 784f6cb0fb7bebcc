package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrRunInProgress     = errors.New("etl run already in progress")
	ErrMissingSurrogate  = errors.New("no surrogate key resolved for natural key")
)
