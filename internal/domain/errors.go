package domain

import "errors"

// Error kinds shared across layers. Infrastructure wraps its failures with one of
// these so callers can use errors.Is without knowing the backend.
var (
	ErrFetch           = errors.New("fetch failed")
	ErrSend            = errors.New("send failed")
	ErrPersistence     = errors.New("persistence failure")
	ErrInvalidInterval = errors.New("interval out of range")
)
