package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldops/installer-portal/internal/domain/model"
	"github.com/fieldops/installer-portal/internal/ports"
)

// PushSubscriptionServiceOptions groups dependencies for PushSubscriptionService.
type PushSubscriptionServiceOptions struct {
	Store  ports.PushSubscriptionStore // Required
	Logger *slog.Logger                // Optional
}

// PushSubscriptionService registers and removes Web Push subscriptions.
// Delivery is handled elsewhere.
type PushSubscriptionService struct {
	store  ports.PushSubscriptionStore
	logger *slog.Logger
}

// NewPushSubscriptionService constructs a PushSubscriptionService.
func NewPushSubscriptionService(opts PushSubscriptionServiceOptions) *PushSubscriptionService {
	if opts.Store == nil {
		panic("PushSubscriptionService requires a PushSubscriptionStore")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PushSubscriptionService{store: opts.Store, logger: logger.With("component", "push_subscriptions")}
}

// Subscribe validates req and upserts it for userID.
func (s *PushSubscriptionService) Subscribe(ctx context.Context, userID string, req model.SubscribeRequest) (model.PushSubscription, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return model.PushSubscription{}, err
	}

	sub, err := s.store.Upsert(ctx, req.ToSubscription(userID))
	if err != nil {
		s.logger.ErrorContext(ctx, "save push subscription failed", "user_id", userID, "error", err)
		return model.PushSubscription{}, fmt.Errorf("save subscription: %w", err)
	}
	return sub, nil
}

// Unsubscribe removes the subscription for (userID, endpoint). Removing an
// unknown subscription is not an error.
func (s *PushSubscriptionService) Unsubscribe(ctx context.Context, userID string, req model.UnsubscribeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID, req.Endpoint); err != nil {
		s.logger.ErrorContext(ctx, "delete push subscription failed", "user_id", userID, "error", err)
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
