//revive:disable-next-line:var-naming // legacy package name used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// PushSubscription is a browser Web Push subscription owned by a user.
// (user_id, endpoint) is unique.
type PushSubscription struct {
	ID        string    `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	Endpoint  string    `json:"endpoint"   db:"endpoint"`
	P256dh    string    `json:"p256dh"     db:"p256dh"`
	Auth      string    `json:"auth"       db:"auth"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PushSubscriptionKeys mirrors the keys object of the browser PushSubscription JSON.
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// SubscribeRequest is the body accepted by the subscribe endpoint.
type SubscribeRequest struct {
	Endpoint string                `json:"endpoint"`
	Keys     *PushSubscriptionKeys `json:"keys"`
}

// ErrInvalidSubscription is returned when a subscribe body is incomplete.
var ErrInvalidSubscription = errors.New("Invalid subscription data. Required: endpoint, keys.p256dh, keys.auth") //nolint:staticcheck // client-facing message

// ErrInvalidUnsubscribe is returned when an unsubscribe body has no endpoint.
var ErrInvalidUnsubscribe = errors.New("Invalid request. Required: endpoint") //nolint:staticcheck // client-facing message

// Normalize trims whitespace from all fields.
func (r *SubscribeRequest) Normalize() {
	r.Endpoint = strings.TrimSpace(r.Endpoint)
	if r.Keys != nil {
		r.Keys.P256dh = strings.TrimSpace(r.Keys.P256dh)
		r.Keys.Auth = strings.TrimSpace(r.Keys.Auth)
	}
}

// Validate ensures endpoint and both keys are present.
func (r *SubscribeRequest) Validate() error {
	if r.Endpoint == "" || r.Keys == nil || r.Keys.P256dh == "" || r.Keys.Auth == "" {
		return ErrInvalidSubscription
	}
	return nil
}

// ToSubscription builds the stored record for userID.
func (r *SubscribeRequest) ToSubscription(userID string) PushSubscription {
	sub := PushSubscription{UserID: userID, Endpoint: r.Endpoint}
	if r.Keys != nil {
		sub.P256dh = r.Keys.P256dh
		sub.Auth = r.Keys.Auth
	}
	return sub
}

// UnsubscribeRequest is the body accepted by the unsubscribe endpoint.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Validate ensures the endpoint is present.
func (r *UnsubscribeRequest) Validate() error {
	r.Endpoint = strings.TrimSpace(r.Endpoint)
	if r.Endpoint == "" {
		return ErrInvalidUnsubscribe
	}
	return nil
}
