package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/fieldops/installer-portal/internal/domain/model"
	"github.com/fieldops/installer-portal/internal/mocks"
)

func TestPushSubscriptionService_Subscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPushSubscriptionStore(ctrl)
	svc := NewPushSubscriptionService(PushSubscriptionServiceOptions{Store: store})
	ctx := context.Background()

	want := model.PushSubscription{UserID: "u1", Endpoint: "https://push.example/1", P256dh: "p", Auth: "a"}
	store.EXPECT().Upsert(ctx, want).Return(model.PushSubscription{ID: "s1", UserID: "u1", Endpoint: want.Endpoint}, nil)

	sub, err := svc.Subscribe(ctx, "u1", model.SubscribeRequest{
		Endpoint: " https://push.example/1 ",
		Keys:     &model.PushSubscriptionKeys{P256dh: "p", Auth: "a"},
	})

	require.NoError(t, err)
	assert.Equal(t, "s1", sub.ID)
}

func TestPushSubscriptionService_SubscribeInvalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPushSubscriptionStore(ctrl)
	svc := NewPushSubscriptionService(PushSubscriptionServiceOptions{Store: store})

	_, err := svc.Subscribe(context.Background(), "u1", model.SubscribeRequest{Endpoint: "https://push.example/1"})

	assert.ErrorIs(t, err, model.ErrInvalidSubscription)
}

func TestPushSubscriptionService_SubscribeStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPushSubscriptionStore(ctrl)
	svc := NewPushSubscriptionService(PushSubscriptionServiceOptions{Store: store})
	dbErr := errors.New("connection refused")

	store.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(model.PushSubscription{}, dbErr)

	_, err := svc.Subscribe(context.Background(), "u1", model.SubscribeRequest{
		Endpoint: "https://push.example/1",
		Keys:     &model.PushSubscriptionKeys{P256dh: "p", Auth: "a"},
	})

	assert.ErrorIs(t, err, dbErr)
}

func TestPushSubscriptionService_Unsubscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPushSubscriptionStore(ctrl)
	svc := NewPushSubscriptionService(PushSubscriptionServiceOptions{Store: store})
	ctx := context.Background()

	assert.ErrorIs(t, svc.Unsubscribe(ctx, "u1", model.UnsubscribeRequest{}), model.ErrInvalidUnsubscribe)

	store.EXPECT().Delete(ctx, "u1", "https://push.example/1").Return(nil)
	require.NoError(t, svc.Unsubscribe(ctx, "u1", model.UnsubscribeRequest{Endpoint: "https://push.example/1"}))

	store.EXPECT().Delete(ctx, "u1", "https://push.example/2").Return(errors.New("timeout"))
	assert.ErrorContains(t, svc.Unsubscribe(ctx, "u1", model.UnsubscribeRequest{Endpoint: "https://push.example/2"}), "delete subscription")
}
