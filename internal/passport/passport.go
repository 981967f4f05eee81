// Package passport issues completion badges for attended events and reads a
// participant's collection. Issuance is idempotent per participant and event,
// so a repeated check-in hook never yields a second badge.
package passport

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/event-admission/internal/clock"
	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// BadgeStore persists badges, at most one per participant and event.
type BadgeStore interface {
	Award(ctx context.Context, badge model.Badge) (model.Badge, bool, error)
	ListByParticipant(ctx context.Context, participantID string) ([]model.Badge, error)
}

// EventLookup resolves the event a badge is awarded for.
type EventLookup interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
}

// Service issues badges and serves passports in process.
type Service struct {
	badges BadgeStore
	events EventLookup
	clock  clock.Clock
	log    logrus.FieldLogger
}

// NewService constructs a Service.
func NewService(badges BadgeStore, events EventLookup, clk clock.Clock, log logrus.FieldLogger) *Service {
	return &Service{badges: badges, events: events, clock: clk, log: log}
}

// Issue awards the badge for eventID to participantID. created is false when
// the participant already held it.
func (s *Service) Issue(ctx context.Context, participantID, eventID string) (model.Badge, bool, error) {
	if participantID == "" || eventID == "" {
		return model.Badge{}, false, fmt.Errorf("%w: participantId and eventId are required", repository.ErrInvalidInput)
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return model.Badge{}, false, err
	}

	badge, created, err := s.badges.Award(ctx, model.Badge{
		ID:            uuid.NewString(),
		ParticipantID: participantID,
		EventID:       eventID,
		EventName:     event.Title,
		EarnedAt:      s.clock.Now(),
	})
	if err != nil {
		return model.Badge{}, false, fmt.Errorf("award badge: %w", err)
	}

	if created {
		s.log.WithFields(logrus.Fields{
			"participant_id": participantID,
			"event_id":       eventID,
			"badge_id":       badge.ID,
		}).Info("badge issued")
	}
	return badge, created, nil
}

// NotifyCheckIn satisfies the check-in processor's badge hook in process.
func (s *Service) NotifyCheckIn(ctx context.Context, participantID, eventID string) error {
	_, _, err := s.Issue(ctx, participantID, eventID)
	return err
}

// Get returns the participant's passport. A participant without badges gets
// an empty one.
func (s *Service) Get(ctx context.Context, participantID string) (*model.Passport, error) {
	if participantID == "" {
		return nil, repository.ErrInvalidInput
	}
	badges, err := s.badges.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	if badges == nil {
		badges = []model.Badge{}
	}
	return &model.Passport{ParticipantID: participantID, Badges: badges}, nil
}

