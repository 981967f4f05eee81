package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// AdmissionService decides whether a participant gets a seat, a waitlist
// place, or a rejection.
type AdmissionService struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	log      logrus.FieldLogger
}

// NewAdmissionService constructs an AdmissionService with its dependencies.
func NewAdmissionService(store Store, notifier Notifier, clk clock.Clock, log logrus.FieldLogger) *AdmissionService {
	return &AdmissionService{store: store, notifier: notifier, clock: clk, log: log}
}

// Register admits participantID to eventID.
//
// The whole check-and-insert runs in one transaction that starts by locking
// the event, so concurrent registrations for the same event are serialised
// and the capacity check cannot be raced. The confirmation or waitlist
// notification is queued only after commit.
func (s *AdmissionService) Register(ctx context.Context, eventID, participantID string) (*model.AdmissionResult, error) {
	eventID = strings.TrimSpace(eventID)
	participantID = strings.TrimSpace(participantID)
	if eventID == "" || participantID == "" {
		return nil, fmt.Errorf("%w: event id and participant_id are required", repository.ErrInvalidInput)
	}

	var result *model.AdmissionResult
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		result = nil

		event, err := s.store.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.IsPublished() {
			return repository.ErrEventNotPublished
		}

		active, err := s.store.Registrations.FindActive(ctx, participantID, eventID)
		if err != nil {
			return err
		}
		if active != nil {
			return repository.ErrAlreadyRegistered
		}

		queued, err := s.store.Waitlist.FindByParticipant(ctx, participantID, eventID)
		if err != nil {
			return err
		}
		if queued != nil {
			return repository.ErrAlreadyWaitlisted
		}

		confirmed, err := s.store.Registrations.CountConfirmed(ctx, eventID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if event.HasSeat(confirmed) {
			reg := model.Registration{
				ID:            uuid.NewString(),
				ParticipantID: participantID,
				EventID:       eventID,
				Status:        model.StatusConfirmed,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := s.store.Registrations.Create(ctx, reg); err != nil {
				return err
			}
			result = &model.AdmissionResult{Status: model.AdmissionConfirmed, Registration: &reg}
			return nil
		}

		if !event.WaitlistEnabled {
			return repository.ErrEventFull
		}

		entry := &model.WaitlistEntry{
			ID:            uuid.NewString(),
			ParticipantID: participantID,
			EventID:       eventID,
			AddedAt:       now,
		}
		if err := s.store.Waitlist.Create(ctx, entry); err != nil {
			return err
		}
		position, err := s.store.Waitlist.Position(ctx, entry.ID)
		if err != nil {
			return err
		}
		result = &model.AdmissionResult{Status: model.AdmissionWaitlisted, Position: position, WaitlistEntry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"event_id": eventID, "participant_id": participantID})
	switch result.Status {
	case model.AdmissionConfirmed:
		log.WithField("registration_id", result.Registration.ID).Info("registration confirmed")
		s.notifier.RegistrationConfirmed(*result.Registration)
	case model.AdmissionWaitlisted:
		log.WithField("position", result.Position).Info("participant waitlisted")
		s.notifier.WaitlistConfirmed(*result.WaitlistEntry, result.Position)
	}
	return result, nil
}
