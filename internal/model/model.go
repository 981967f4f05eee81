// Package model defines the core domain types for event admission.
package model

import "time"

// EventStatus is the lifecycle state of an event as published by the event registry.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
	EventCompleted EventStatus = "completed"
)

// Event is the read-only view of an event this service admits participants to.
type Event struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Location        string      `json:"location"`
	StartTime       time.Time   `json:"start_time"`
	Capacity        int         `json:"capacity"`
	Status          EventStatus `json:"status"`
	WaitlistEnabled bool        `json:"waitlist_enabled"`
}

// IsPublished reports whether admission operations may proceed.
func (e *Event) IsPublished() bool {
	return e.Status == EventPublished
}

// HasSeat reports whether another confirmed registration fits under capacity.
func (e *Event) HasSeat(confirmed int) bool {
	return confirmed < e.Capacity
}

// Registration is a participant's admission record for one event.
type Registration struct {
	ID            string             `json:"id"`
	ParticipantID string             `json:"participant_id"`
	EventID       string             `json:"event_id"`
	Status        RegistrationStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// WaitlistEntry is a pending entrant queued for a full event.
//
// Seq is assigned by the store when the entry is appended and alone decides
// FIFO order. AddedAt is the caller's timestamp and is informational.
type WaitlistEntry struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	EventID       string    `json:"event_id"`
	AddedAt       time.Time `json:"added_at"`
	Seq           int64     `json:"-"`
}

// Before reports whether e joined the queue before other.
func (e WaitlistEntry) Before(other WaitlistEntry) bool {
	return e.Seq < other.Seq
}

// QueuedEntry is a waitlist entry together with its 1-indexed FIFO rank.
type QueuedEntry struct {
	WaitlistEntry
	Position int `json:"position"`
}

// Participant is the contact card resolved from the identity directory.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Badge is a completion badge earned by attending an event.
type Badge struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id"`
	EventID       string    `json:"event_id"`
	EventName     string    `json:"event_name"`
	EarnedAt      time.Time `json:"earned_at"`
}

// AdmissionStatus is the outcome of a successful registration attempt.
type AdmissionStatus string

const (
	AdmissionConfirmed  AdmissionStatus = "confirmed"
	AdmissionWaitlisted AdmissionStatus = "waitlisted"
)

// AdmissionResult is returned by a registration attempt.
type AdmissionResult struct {
	Status        AdmissionStatus `json:"status"`
	Position      int             `json:"position,omitempty"`
	Registration  *Registration   `json:"registration,omitempty"`
	WaitlistEntry *WaitlistEntry  `json:"waitlist_entry,omitempty"`
}

// PromotionResult is returned by a promotion attempt. Registration is nil when
// nothing was promoted.
type PromotionResult struct {
	Registration *Registration `json:"registration,omitempty"`
	Noop         bool          `json:"noop,omitempty"`
}

// EventCancellation summarises an organizer-initiated event cancellation.
type EventCancellation struct {
	EventID         string   `json:"event_id"`
	Cancelled       []string `json:"cancelled_registrations"`
	WaitlistCleared int      `json:"waitlist_cleared"`
}

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	ParticipantID string `json:"participant_id"`
}

// BadgeRequest is the payload of the internal passport check-in hook.
type BadgeRequest struct {
	ParticipantID string `json:"participantId"`
	EventID       string `json:"eventId"`
}

// CheckInCode is the displayable artifact a participant presents at the door.
type CheckInCode struct {
	RegistrationID string `json:"registration_id"`
	DataURL        string `json:"qr_code_data"`
}

// Passport lists a participant's earned badges.
type Passport struct {
	ParticipantID string  `json:"participant_id"`
	Badges        []Badge `json:"badges"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
