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

// CheckInService records attendance and requests the completion badge.
type CheckInService struct {
	registrations RegistrationLedger
	notifier      Notifier
	badges        BadgeIssuer
	runner        Submitter
	policy        RetryPolicy
	clock         clock.Clock
	log           logrus.FieldLogger
}

// NewCheckInService constructs a CheckInService with its dependencies.
func NewCheckInService(
	registrations RegistrationLedger,
	notifier Notifier,
	badges BadgeIssuer,
	runner Submitter,
	policy RetryPolicy,
	clk clock.Clock,
	log logrus.FieldLogger,
) *CheckInService {
	return &CheckInService{
		registrations: registrations,
		notifier:      notifier,
		badges:        badges,
		runner:        runner,
		policy:        policy,
		clock:         clk,
		log:           log,
	}
}

// CheckIn marks a confirmed registration attended. Checking in an attended
// registration again succeeds without side effects; when two scans race only
// the winner emits the badge request and notification.
func (s *CheckInService) CheckIn(ctx context.Context, registrationID string) (*model.Registration, error) {
	registrationID = strings.TrimSpace(registrationID)
	if registrationID == "" {
		return nil, fmt.Errorf("%w: registration id is required", repository.ErrInvalidInput)
	}

	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	switch reg.Status {
	case model.StatusAttended:
		return reg, nil
	case model.StatusConfirmed:
	default:
		return nil, repository.ErrInvalidState
	}

	updated, err := s.registrations.Transition(ctx, registrationID, model.StatusConfirmed, model.StatusAttended, s.clock.Now())
	if errors.Is(err, repository.ErrStaleState) {
		fresh, err := s.registrations.GetByID(ctx, registrationID)
		if err != nil {
			return nil, err
		}
		if fresh.Status == model.StatusAttended {
			return fresh, nil
		}
		return nil, repository.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"registration_id": updated.ID,
		"event_id":        updated.EventID,
		"participant_id":  updated.ParticipantID,
	}).Info("participant checked in")
	s.requestBadge(*updated)
	s.notifier.CheckInSuccess(*updated)
	return updated, nil
}

func (s *CheckInService) requestBadge(reg model.Registration) {
	s.runner.Submit("badge:"+reg.ID, func(ctx context.Context) {
		log := s.log.WithFields(logrus.Fields{
			"participant_id": reg.ParticipantID,
			"event_id":       reg.EventID,
		})
		err := s.policy.run(ctx, log, func(ctx context.Context) error {
			return s.badges.NotifyCheckIn(ctx, reg.ParticipantID, reg.EventID)
		})
		if err != nil {
			log.WithError(err).Warn("badge request dropped")
		}
	})
}
