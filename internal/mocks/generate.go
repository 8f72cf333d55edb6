// Package mocks provides mock implementations of the session core ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	provider := mocks.NewMockIdentityProvider(ctrl)
//	provider.EXPECT().GetUser(gomock.Any(), "access").Return(subject, nil)
package mocks

// Generate mock for IdentityProvider interface from internal/ports package.
// This creates MockIdentityProvider with methods: GetUser, Refresh
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/fieldops/installer-portal/internal/ports IdentityProvider

// Generate mock for UserStore interface from internal/ports package.
// This creates MockUserStore with methods: GetByID
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_store_mock.go github.com/fieldops/installer-portal/internal/ports UserStore

// Generate mock for PushSubscriptionStore interface from internal/ports package.
// This creates MockPushSubscriptionStore with methods: Upsert, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=push_subscription_store_mock.go github.com/fieldops/installer-portal/internal/ports PushSubscriptionStore
