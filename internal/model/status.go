package model

// RegistrationStatus is a state in the registration lifecycle.
type RegistrationStatus string

const (
	StatusConfirmed        RegistrationStatus = "confirmed"
	StatusAttended         RegistrationStatus = "attended"
	StatusCancelledByUser  RegistrationStatus = "cancelled_by_user"
	StatusCancelledByEvent RegistrationStatus = "cancelled_by_event"
)

// IsActive reports whether the status holds a seat.
func (s RegistrationStatus) IsActive() bool {
	return s == StatusConfirmed || s == StatusAttended
}

// IsCancelled reports whether the status is one of the cancelled variants.
func (s RegistrationStatus) IsCancelled() bool {
	return s == StatusCancelledByUser || s == StatusCancelledByEvent
}

// IsTerminal reports whether no transition leaves the status.
func (s RegistrationStatus) IsTerminal() bool {
	return s == StatusAttended || s.IsCancelled()
}

// CanTransition reports whether from → to is an edge of the lifecycle.
// Only confirmed has outgoing edges.
func CanTransition(from, to RegistrationStatus) bool {
	if from != StatusConfirmed {
		return false
	}
	switch to {
	case StatusAttended, StatusCancelledByUser, StatusCancelledByEvent:
		return true
	}
	return false
}

// Initiator identifies who asked for a cancellation.
type Initiator string

const (
	InitiatorParticipant Initiator = "participant"
	InitiatorOrganizer   Initiator = "organizer"
)

// CancelledStatus maps the initiator to the cancelled variant it produces.
func (i Initiator) CancelledStatus() RegistrationStatus {
	if i == InitiatorOrganizer {
		return StatusCancelledByEvent
	}
	return StatusCancelledByUser
}
