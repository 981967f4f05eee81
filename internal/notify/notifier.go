package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/dispatch"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// Submitter accepts background jobs without blocking.
type Submitter interface {
	Submit(name string, job dispatch.Job) bool
}

// EventLookup resolves event details for a message.
type EventLookup interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// Directory resolves participant contact details.
type Directory interface {
	GetByID(ctx context.Context, id string) (*model.Participant, error)
}

// CodeEncoder renders the check-in code attached to messages.
type CodeEncoder interface {
	Encode(registrationID string) (string, error)
}

// Notifier turns ledger changes into messages and sends them off the caller's
// goroutine. None of its methods block or report delivery errors.
type Notifier struct {
	sender    Sender
	runner    Submitter
	events    EventLookup
	directory Directory
	codes     CodeEncoder
	clock     clock.Clock
	timeout   time.Duration
	log       logrus.FieldLogger
}

// Deps are the collaborators a Notifier needs.
type Deps struct {
	Sender    Sender
	Runner    Submitter
	Events    EventLookup
	Directory Directory
	Codes     CodeEncoder
	Clock     clock.Clock
	Timeout   time.Duration
	Log       logrus.FieldLogger
}

// NewNotifier constructs a Notifier from d.
func NewNotifier(d Deps) *Notifier {
	return &Notifier{
		sender:    d.Sender,
		runner:    d.Runner,
		events:    d.Events,
		directory: d.Directory,
		codes:     d.Codes,
		clock:     d.Clock,
		timeout:   d.Timeout,
		log:       d.Log,
	}
}

type draft struct {
	kind           Kind
	key            string
	eventID        string
	participantIDs []string
	registrationID string
	position       int
	withCode       bool
}

// RegistrationConfirmed tells the participant their seat is confirmed.
func (n *Notifier) RegistrationConfirmed(reg model.Registration) {
	n.enqueue(draft{
		kind:           KindRegistrationConfirmed,
		key:            reg.ID,
		eventID:        reg.EventID,
		participantIDs: []string{reg.ParticipantID},
		registrationID: reg.ID,
		withCode:       true,
	})
}

// WaitlistConfirmed tells the participant their place in the queue.
func (n *Notifier) WaitlistConfirmed(entry model.WaitlistEntry, position int) {
	n.enqueue(draft{
		kind:           KindWaitlistConfirmed,
		key:            entry.ID,
		eventID:        entry.EventID,
		participantIDs: []string{entry.ParticipantID},
		position:       position,
	})
}

// WaitlistSuccess tells a promoted participant they now hold a seat.
func (n *Notifier) WaitlistSuccess(reg model.Registration) {
	n.enqueue(draft{
		kind:           KindWaitlistSuccess,
		key:            reg.ID,
		eventID:        reg.EventID,
		participantIDs: []string{reg.ParticipantID},
		registrationID: reg.ID,
		withCode:       true,
	})
}

// RegistrationCancelled confirms a cancellation to the participant.
func (n *Notifier) RegistrationCancelled(reg model.Registration) {
	n.enqueue(draft{
		kind:           KindRegistrationCancelled,
		key:            reg.ID,
		eventID:        reg.EventID,
		participantIDs: []string{reg.ParticipantID},
		registrationID: reg.ID,
	})
}

// EventCancelled sends one message addressed to every affected participant.
func (n *Notifier) EventCancelled(eventID string, participantIDs []string) {
	n.enqueue(draft{
		kind:           KindEventCancelled,
		key:            eventID,
		eventID:        eventID,
		participantIDs: participantIDs,
	})
}

// CheckInSuccess confirms attendance to the participant.
func (n *Notifier) CheckInSuccess(reg model.Registration) {
	n.enqueue(draft{
		kind:           KindCheckInSuccess,
		key:            reg.ID,
		eventID:        reg.EventID,
		participantIDs: []string{reg.ParticipantID},
		registrationID: reg.ID,
	})
}

func (n *Notifier) enqueue(d draft) {
	n.runner.Submit("notify:"+string(d.kind), func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()

		if err := n.deliver(ctx, d); err != nil {
			n.log.WithFields(logrus.Fields{
				"type":     d.kind,
				"event_id": d.eventID,
				"key":      d.key,
			}).WithError(err).Warn("notification dropped")
		}
	})
}

func (n *Notifier) deliver(ctx context.Context, d draft) error {
	msg := n.build(ctx, d)
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: send %s: %w", repository.ErrTransient, d.kind, err)
	}
	return nil
}

// build resolves event details, contacts and the check-in code. Lookups are
// best effort; a message with bare identifiers still goes out.
func (n *Notifier) build(ctx context.Context, d draft) Message {
	msg := Message{
		Type:           d.kind,
		DedupeKey:      dedupeKey(d.kind, d.key),
		EventID:        d.eventID,
		RegistrationID: d.registrationID,
		Position:       d.position,
		SentAt:         n.clock.Now(),
	}
	log := n.log.WithFields(logrus.Fields{"type": d.kind, "event_id": d.eventID})

	if e, err := n.events.GetByID(ctx, d.eventID); err == nil {
		msg.EventTitle = e.Title
		msg.EventLocation = e.Location
		if !e.StartTime.IsZero() {
			start := e.StartTime
			msg.EventStartTime = &start
		}
	} else {
		log.WithError(err).Debug("event lookup failed")
	}

	msg.Recipients = make([]Recipient, 0, len(d.participantIDs))
	for _, id := range d.participantIDs {
		r := Recipient{ParticipantID: id}
		if p, err := n.directory.GetByID(ctx, id); err == nil {
			r.Name = p.Name
			r.Email = p.Email
		} else {
			log.WithField("participant_id", id).WithError(err).Debug("contact lookup failed")
		}
		msg.Recipients = append(msg.Recipients, r)
	}

	if d.withCode && d.registrationID != "" {
		if code, err := n.codes.Encode(d.registrationID); err == nil {
			msg.QRCodeData = code
		} else {
			log.WithError(err).Warn("check-in code encoding failed")
		}
	}
	return msg
}
