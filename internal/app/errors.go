package service

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrInvalidEvent marks an inbound event that cannot be keyed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrQueueFull marks a rejected trigger; the event source should retry.
	ErrQueueFull = errors.New("mastery queue full")

	// ErrPipelineNotFound marks an unknown or evicted pipeline ID.
	ErrPipelineNotFound = errors.New("pipeline not found")
)
