package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnresolvedToken    = errors.New("no condition mapping for token")
	ErrMalformedCondition = errors.New("malformed condition data")
	ErrMissingResolution  = errors.New("no resolution for condition")
	ErrWatermarkStalled   = errors.New("watermark stalled")
	ErrLockHeld           = errors.New("lock already held")
)
