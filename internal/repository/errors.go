package repository

import (
	"errors"
	"fmt"
)

// Error classes. Every concrete error below wraps exactly one of them so that
// callers can branch on the class with errors.Is.
var (
	// ErrNotFound marks a missing event, registration, participant or entry.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks a rejected request; never retried internally.
	ErrValidation = errors.New("validation failed")
	// ErrTransient marks an unreachable or timed out collaborator.
	ErrTransient = errors.New("collaborator unavailable")
)

var (
	ErrEventNotFound        = fmt.Errorf("event %w", ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("registration %w", ErrNotFound)
	ErrParticipantNotFound  = fmt.Errorf("participant %w", ErrNotFound)
	ErrWaitlistNotFound     = fmt.Errorf("waitlist entry %w", ErrNotFound)

	ErrInvalidInput      = fmt.Errorf("%w: invalid input", ErrValidation)
	ErrEventNotPublished = fmt.Errorf("%w: event is not published", ErrValidation)
	ErrAlreadyRegistered = fmt.Errorf("%w: already registered for this event", ErrValidation)
	ErrAlreadyWaitlisted = fmt.Errorf("%w: already on the waitlist for this event", ErrValidation)
	ErrEventFull         = fmt.Errorf("%w: event is full", ErrValidation)
	ErrInvalidState      = fmt.Errorf("%w: invalid state transition", ErrValidation)
	ErrEventNotCancelled = fmt.Errorf("%w: event is not cancelled", ErrValidation)
)

// ErrStaleState is returned by a guarded transition whose expected current
// state no longer matches the stored one.
var ErrStaleState = errors.New("registration state changed concurrently")
