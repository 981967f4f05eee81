package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// QueryService serves read-only views of the ledger.
type QueryService struct {
	store Store
	codes CodeEncoder
}

// NewQueryService constructs a QueryService.
func NewQueryService(store Store, codes CodeEncoder) *QueryService {
	return &QueryService{store: store, codes: codes}
}

// GetRegistration returns one registration by id.
func (s *QueryService) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return s.store.Registrations.GetByID(ctx, id)
}

// ListEventRegistrations returns every registration for an existing event.
func (s *QueryService) ListEventRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	if _, err := s.store.Events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.Registrations.ListByEvent(ctx, eventID)
}

// ListEventWaitlist returns the event's queue in promotion order.
func (s *QueryService) ListEventWaitlist(ctx context.Context, eventID string) ([]model.QueuedEntry, error) {
	if _, err := s.store.Events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.Waitlist.ListByEvent(ctx, eventID)
}

// ListParticipantRegistrations returns a participant's registrations, oldest
// first.
func (s *QueryService) ListParticipantRegistrations(ctx context.Context, participantID string) ([]model.Registration, error) {
	return s.store.Registrations.ListByParticipant(ctx, participantID)
}

// ListParticipantWaitlist returns the queues a participant is waiting in, with
// the current position in each.
func (s *QueryService) ListParticipantWaitlist(ctx context.Context, participantID string) ([]model.QueuedEntry, error) {
	return s.store.Waitlist.ListByParticipant(ctx, participantID)
}

// CheckInCode renders the code presented at the door. Cancelled registrations
// have none.
func (s *QueryService) CheckInCode(ctx context.Context, registrationID string) (*model.CheckInCode, error) {
	reg, err := s.store.Registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if reg.Status.IsCancelled() {
		return nil, repository.ErrInvalidState
	}
	url, err := s.codes.Encode(reg.ID)
	if err != nil {
		return nil, fmt.Errorf("render check-in code: %w", err)
	}
	return &model.CheckInCode{RegistrationID: reg.ID, DataURL: url}, nil
}
