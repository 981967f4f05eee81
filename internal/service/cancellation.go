package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// CancellationService cancels single registrations and whole events.
type CancellationService struct {
	store     Store
	notifier  Notifier
	promotion PromotionScheduler
	clock     clock.Clock
	log       logrus.FieldLogger
}

// NewCancellationService constructs a CancellationService with its dependencies.
func NewCancellationService(store Store, notifier Notifier, promotion PromotionScheduler, clk clock.Clock, log logrus.FieldLogger) *CancellationService {
	return &CancellationService{store: store, notifier: notifier, promotion: promotion, clock: clk, log: log}
}

// Cancel cancels a confirmed registration on behalf of initiator and schedules
// a promotion for the freed seat. Cancelling an already cancelled
// registration returns it unchanged and does nothing else.
func (s *CancellationService) Cancel(ctx context.Context, registrationID string, initiator model.Initiator) (*model.Registration, error) {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		return nil, fmt.Errorf("%w: registration id is required", repository.ErrInvalidInput)
	}
	switch initiator {
	case model.InitiatorParticipant, model.InitiatorOrganizer:
	default:
		return nil, fmt.Errorf("%w: unknown initiator %q", repository.ErrInvalidInput, initiator)
	}

	current, err := s.store.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	for {
		if current.Status.IsCancelled() {
			return current, nil
		}
		if current.Status != model.StatusConfirmed {
			return nil, repository.ErrInvalidState
		}

		updated, err := s.store.Registrations.Transition(ctx, registrationID,
			model.StatusConfirmed, initiator.CancelledStatus(), s.clock.Now())
		if errors.Is(err, repository.ErrStaleState) {
			// Lost to a concurrent check-in or cancel; judge the fresh record.
			if current, err = s.store.Registrations.GetByID(ctx, registrationID); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		s.log.WithFields(logrus.Fields{
			"registration_id": updated.ID,
			"event_id":        updated.EventID,
			"initiator":       initiator,
		}).Info("registration cancelled")
		s.notifier.RegistrationCancelled(*updated)
		s.promotion.Trigger(updated.EventID)
		return updated, nil
	}
}

// Withdraw takes a participant off an event's waitlist. The delete is the
// guard: an entry that was already promoted or withdrawn is reported as
// ErrWaitlistNotFound. No seat changes hands, so nothing is promoted.
func (s *CancellationService) Withdraw(ctx context.Context, entryID string) (*model.WaitlistEntry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return nil, fmt.Errorf("%w: waitlist entry id is required", repository.ErrInvalidInput)
	}
	entry, err := s.store.Waitlist.Withdraw(ctx, entryID)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"entry_id":       entry.ID,
		"event_id":       entry.EventID,
		"participant_id": entry.ParticipantID,
	}).Info("waitlist entry withdrawn")
	return entry, nil
}

// CancelEvent applies an event cancellation from the registry to the ledger:
// every confirmed registration becomes cancelled_by_event and the waitlist is
// emptied. One notification addresses everyone affected. Repeating the call
// finds nobody left and sends nothing.
func (s *CancellationService) CancelEvent(ctx context.Context, eventID string) (*model.EventCancellation, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", repository.ErrInvalidInput)
	}

	var (
		result   *model.EventCancellation
		affected []string
	)
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		result = &model.EventCancellation{EventID: eventID, Cancelled: []string{}}
		affected = nil

		event, err := s.store.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event.Status != model.EventCancelled {
			return repository.ErrEventNotCancelled
		}

		regs, err := s.store.Registrations.ListByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, reg := range regs {
			if reg.Status != model.StatusConfirmed {
				continue
			}
			_, err := s.store.Registrations.Transition(ctx, reg.ID, model.StatusConfirmed, model.StatusCancelledByEvent, now)
			if errors.Is(err, repository.ErrStaleState) {
				continue
			}
			if err != nil {
				return err
			}
			result.Cancelled = append(result.Cancelled, reg.ID)
			affected = append(affected, reg.ParticipantID)
		}

		removed, err := s.store.Waitlist.DeleteByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		result.WaitlistCleared = len(removed)
		for _, entry := range removed {
			affected = append(affected, entry.ParticipantID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"event_id":         eventID,
		"cancelled":        len(result.Cancelled),
		"waitlist_cleared": result.WaitlistCleared,
	}).Info("event cancellation applied")
	if len(affected) > 0 {
		s.notifier.EventCancelled(eventID, affected)
	}
	return result, nil
}
