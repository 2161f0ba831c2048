// Package event publishes auth domain events to the storefront event bus.
// Email dispatch (welcome mail, reset links) is handled by the notification
// service consuming these events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/internal/domain"
	pkgkafka "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/kafka"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/logger"
)

const (
	topicUserEvents = "user.events"

	eventUserRegistered         = "user.registered"
	eventPasswordResetRequested = "user.password_reset_requested"
	eventPasswordChanged        = "user.password_changed"

	aggregateTypeUser = "user"
	source            = "auth-service"
)

// Producer publishes auth events.
type Producer struct {
	producer *pkgkafka.Producer
	logger   *slog.Logger
}

// NewProducer creates a new auth event producer.
func NewProducer(producer *pkgkafka.Producer, l *slog.Logger) *Producer {
	return &Producer{producer: producer, logger: l}
}

type userRegisteredPayload struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	FullName          string `json:"full_name"`
	Role              string `json:"role"`
	PreferredLanguage string `json:"preferred_language"`
}

type passwordResetRequestedPayload struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
	ExpiresIn  string `json:"expires_in"`
}

type passwordChangedPayload struct {
	UserID string `json:"user_id"`
}

// PublishUserRegistered announces a new account so downstream services can
// send the welcome email and provision default data.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	payload := userRegisteredPayload{
		UserID:            user.ID,
		Email:             user.Email,
		FullName:          user.FullName,
		Role:              user.Role,
		PreferredLanguage: user.PreferredLanguage,
	}
	return p.publish(ctx, eventUserRegistered, user.ID, payload)
}

// PublishPasswordResetRequested carries the reset token to the notification
// service, which emails the reset link.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, userID, email, resetToken, expiresIn string) error {
	payload := passwordResetRequestedPayload{
		UserID:     userID,
		Email:      email,
		ResetToken: resetToken,
		ExpiresIn:  expiresIn,
	}
	return p.publish(ctx, eventPasswordResetRequested, userID, payload)
}

// PublishPasswordChanged announces a completed password reset.
func (p *Producer) PublishPasswordChanged(ctx context.Context, userID string) error {
	return p.publish(ctx, eventPasswordChanged, userID, passwordChangedPayload{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, eventType, aggregateID string, payload any) error {
	evt, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateTypeUser, source, payload)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}

	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	return p.producer.Publish(ctx, topicUserEvents, evt)
}
