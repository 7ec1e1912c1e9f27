package service

import (
	"context"
	"encoding/json"
	"time"

	"app/internal/model"
	"app/internal/pubsub"

	"github.com/rs/zerolog"
)

// AlertService publishes operator-facing notifications. Permanent auth
// failures go to the alert topic; exhausted sync jobs go to the DLQ topic
// for replay. Publishing is best-effort: a lost alert must never fail the
// sync that produced it.
type AlertService interface {
	AuthFailure(ctx context.Context, userID string, kind model.AssetKind, apiErr *model.APIError)
	DeadLetter(ctx context.Context, userID string, kind model.AssetKind, trigger, detail string)
}

type alertService struct {
	publisher  pubsub.Publisher
	alertTopic string
	dlqTopic   string
	logger     zerolog.Logger
}

func NewAlertService(publisher pubsub.Publisher, alertTopic, dlqTopic string, logger zerolog.Logger) AlertService {
	return &alertService{
		publisher:  publisher,
		alertTopic: alertTopic,
		dlqTopic:   dlqTopic,
		logger:     logger.With().Str("service", "AlertService").Logger(),
	}
}

type authFailureAlert struct {
	Alert          string    `json:"alert"`
	UserID         string    `json:"user_id"`
	Kind           string    `json:"kind"`
	Classification string    `json:"classification"`
	Code           int       `json:"code"`
	Message        string    `json:"message"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func (s *alertService) AuthFailure(ctx context.Context, userID string, kind model.AssetKind, apiErr *model.APIError) {
	payload, err := json.Marshal(authFailureAlert{
		Alert:          "permanent_auth_failure",
		UserID:         userID,
		Kind:           string(kind),
		Classification: string(apiErr.Classification),
		Code:           apiErr.Code,
		Message:        apiErr.Message,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal auth failure alert")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.alertTopic, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", s.alertTopic).Msg("Failed to publish auth failure alert")
	}
}

type deadLetterJob struct {
	UserID     string    `json:"user_id"`
	Kind       string    `json:"kind"`
	Trigger    string    `json:"trigger"`
	Detail     string    `json:"detail"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *alertService) DeadLetter(ctx context.Context, userID string, kind model.AssetKind, trigger, detail string) {
	payload, err := json.Marshal(deadLetterJob{
		UserID:     userID,
		Kind:       string(kind),
		Trigger:    trigger,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to marshal dead letter job")
		return
	}
	if _, err := s.publisher.Publish(ctx, s.dlqTopic, payload); err != nil {
		s.logger.Error().Err(err).Str("topic", s.dlqTopic).Msg("Failed to publish dead letter job")
	}
}
