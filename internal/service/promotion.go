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

// PromotionService moves the oldest waitlisted participant into a free seat.
type PromotionService struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	log      logrus.FieldLogger
}

// NewPromotionService constructs a PromotionService with its dependencies.
func NewPromotionService(store Store, notifier Notifier, clk clock.Clock, log logrus.FieldLogger) *PromotionService {
	return &PromotionService{store: store, notifier: notifier, clock: clk, log: log}
}

// Promote fills at most one seat of eventID from the head of its waitlist.
// It is a no-op when the event is not published, is still full, or nobody is
// waiting. A queued participant who already holds an active registration is
// dropped from the queue and the next one is tried.
func (s *PromotionService) Promote(ctx context.Context, eventID string) (*model.PromotionResult, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", repository.ErrInvalidInput)
	}

	var promoted *model.Registration
	err := s.store.Tx.WithTx(ctx, func(ctx context.Context) error {
		promoted = nil

		event, err := s.store.Events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.IsPublished() {
			return nil
		}

		confirmed, err := s.store.Registrations.CountConfirmed(ctx, eventID)
		if err != nil {
			return err
		}
		if !event.HasSeat(confirmed) {
			return nil
		}

		for {
			head, err := s.store.Waitlist.PopOldest(ctx, eventID)
			if err != nil {
				return err
			}
			if head == nil {
				return nil
			}

			active, err := s.store.Registrations.FindActive(ctx, head.ParticipantID, eventID)
			if err != nil {
				return err
			}
			if active != nil {
				s.log.WithFields(logrus.Fields{
					"event_id":       eventID,
					"participant_id": head.ParticipantID,
				}).Warn("discarding waitlist entry of already registered participant")
				continue
			}

			now := s.clock.Now()
			reg := model.Registration{
				ID:            uuid.NewString(),
				ParticipantID: head.ParticipantID,
				EventID:       eventID,
				Status:        model.StatusConfirmed,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := s.store.Registrations.Create(ctx, reg); err != nil {
				return err
			}
			promoted = &reg
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		return &model.PromotionResult{Noop: true}, nil
	}

	s.log.WithFields(logrus.Fields{
		"event_id":        eventID,
		"participant_id":  promoted.ParticipantID,
		"registration_id": promoted.ID,
	}).Info("waitlist entry promoted")
	s.notifier.WaitlistSuccess(*promoted)
	return &model.PromotionResult{Registration: promoted}, nil
}

// Promoter is the synchronous promotion operation.
type Promoter interface {
	Promote(ctx context.Context, eventID string) (*model.PromotionResult, error)
}

// PromotionTrigger runs promotions in the background with bounded retries.
// When retries run out the seat stays free until the next promotion request.
type PromotionTrigger struct {
	promoter Promoter
	runner   Submitter
	policy   RetryPolicy
	log      logrus.FieldLogger
}

// NewPromotionTrigger constructs a PromotionTrigger.
func NewPromotionTrigger(promoter Promoter, runner Submitter, policy RetryPolicy, log logrus.FieldLogger) *PromotionTrigger {
	return &PromotionTrigger{promoter: promoter, runner: runner, policy: policy, log: log}
}

// Trigger schedules a promotion for eventID and returns immediately.
func (t *PromotionTrigger) Trigger(eventID string) {
	t.runner.Submit("promote:"+eventID, func(ctx context.Context) {
		t.run(ctx, eventID)
	})
}

func (t *PromotionTrigger) run(ctx context.Context, eventID string) {
	log := t.log.WithField("event_id", eventID)

	var result *model.PromotionResult
	err := t.policy.run(ctx, log, func(ctx context.Context) error {
		res, err := t.promoter.Promote(ctx, eventID)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		log.WithError(err).Error("promotion failed, seat not reconciled")
		return
	}
	if result.Noop {
		log.Debug("promotion found nothing to do")
	}
}
