// Package service implements admission, promotion, cancellation and check-in
// on top of the repository layer.
//
// Ledger writes for one event are serialised by locking the event inside a
// store transaction; every status change is a guarded compare-and-set. Side
// effects (notifications, badges, promotion after a cancellation) are handed
// to a background runner after the write commits and never fail the caller.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/event-admission/internal/dispatch"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// Transactor runs a unit of work atomically. Nested calls join the outer
// transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventRegistry is the read-only source of event capacity and status.
type EventRegistry interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetForUpdate(ctx context.Context, id string) (*model.Event, error)
}

// RegistrationLedger stores registrations and applies guarded status changes.
type RegistrationLedger interface {
	Create(ctx context.Context, reg model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	FindActive(ctx context.Context, participantID, eventID string) (*model.Registration, error)
	CountConfirmed(ctx context.Context, eventID string) (int, error)
	Transition(ctx context.Context, id string, from, to model.RegistrationStatus, at time.Time) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	ListByParticipant(ctx context.Context, participantID string) ([]model.Registration, error)
}

// WaitlistQueue is the per-event FIFO of pending entrants. The store assigns
// each entry's place in line on Create.
type WaitlistQueue interface {
	Create(ctx context.Context, entry *model.WaitlistEntry) error
	FindByParticipant(ctx context.Context, participantID, eventID string) (*model.WaitlistEntry, error)
	Position(ctx context.Context, entryID string) (int, error)
	PopOldest(ctx context.Context, eventID string) (*model.WaitlistEntry, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.QueuedEntry, error)
	ListByParticipant(ctx context.Context, participantID string) ([]model.QueuedEntry, error)
	Withdraw(ctx context.Context, entryID string) (*model.WaitlistEntry, error)
	DeleteByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error)
}

// Notifier queues participant notifications. Implementations must not block.
type Notifier interface {
	RegistrationConfirmed(reg model.Registration)
	WaitlistConfirmed(entry model.WaitlistEntry, position int)
	WaitlistSuccess(reg model.Registration)
	RegistrationCancelled(reg model.Registration)
	EventCancelled(eventID string, participantIDs []string)
	CheckInSuccess(reg model.Registration)
}

// BadgeIssuer is the passport hook called after a check-in.
type BadgeIssuer interface {
	NotifyCheckIn(ctx context.Context, participantID, eventID string) error
}

// Submitter accepts background jobs without blocking.
type Submitter interface {
	Submit(name string, job dispatch.Job) bool
}

// PromotionScheduler asks for a waitlist promotion without waiting for it.
type PromotionScheduler interface {
	Trigger(eventID string)
}

// CodeEncoder renders a registration id as a check-in code.
type CodeEncoder interface {
	Encode(registrationID string) (string, error)
}

// Store groups the ledger handles shared by the services.
type Store struct {
	Tx            Transactor
	Events        EventRegistry
	Registrations RegistrationLedger
	Waitlist      WaitlistQueue
}

// isPermanent reports whether retrying err cannot help.
func isPermanent(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrValidation)
}
