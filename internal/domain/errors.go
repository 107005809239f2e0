package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrDataUnavailable = errors.New("superlap data unavailable")
	ErrExternalService = errors.New("external service failure")
	ErrAudioSubsystem  = errors.New("audio subsystem failure")
	ErrNotFound        = errors.New("not found")
)
