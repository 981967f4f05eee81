// Package notify delivers participant notifications to an external pipeline.
//
// Delivery is at-most-once from this side: messages are built and sent on a
// background worker, failures are logged and dropped. Every message carries a
// DedupeKey that is stable for the logical event so consumers can discard
// redeliveries.
package notify

import "time"

// Kind names a notification template.
type Kind string

const (
	KindRegistrationConfirmed Kind = "registration-confirmed"
	KindWaitlistConfirmed     Kind = "waitlist-confirmed"
	KindWaitlistSuccess       Kind = "waitlist-success"
	KindEventCancelled        Kind = "event-cancelled"
	KindRegistrationCancelled Kind = "registration-cancelled"
	KindCheckInSuccess        Kind = "check-in-success"
)

// Recipient is one participant addressed by a message.
type Recipient struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
}

// Message is the wire payload shared by every transport.
type Message struct {
	Type           Kind        `json:"type"`
	DedupeKey      string      `json:"dedupeKey"`
	EventID        string      `json:"eventId"`
	EventTitle     string      `json:"eventTitle,omitempty"`
	EventLocation  string      `json:"eventLocation,omitempty"`
	EventStartTime *time.Time  `json:"eventStartTime,omitempty"`
	Recipients     []Recipient `json:"recipients"`
	RegistrationID string      `json:"registrationId,omitempty"`
	QRCodeData     string      `json:"qrCodeData,omitempty"`
	Position       int         `json:"position,omitempty"`
	SentAt         time.Time   `json:"sentAt"`
}

func dedupeKey(kind Kind, id string) string {
	return string(kind) + ":" + id
}
