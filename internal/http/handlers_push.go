package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
	"github.com/fieldops/installer-portal/internal/domain/session"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
)

// TokenAuthenticator validates the access-token cookie of API requests,
// which bypass the session gate.
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, accessToken string) (domainauth.Subject, error)
}

// PushServiceInterface registers and removes push subscriptions.
type PushServiceInterface interface {
	Subscribe(ctx context.Context, userID string, req model.SubscribeRequest) (model.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID string, req model.UnsubscribeRequest) error
}

// PushHandlers serves the Web Push subscription endpoints.
type PushHandlers struct {
	Auth   TokenAuthenticator
	Svc    PushServiceInterface
	Logger *slog.Logger
}

func (h *PushHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type successResponse struct {
	Success bool `json:"success"`
}

// Subscribe upserts the caller's subscription. POST /api/push/subscribe.
func (h *PushHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req model.SubscribeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Message: model.ErrInvalidSubscription.Error()})
		return
	}

	if _, err := h.Svc.Subscribe(r.Context(), subject.UserID, req); err != nil {
		h.writeStoreError(w, storeFailure{err: err, invalid: model.ErrInvalidSubscription, message: "Failed to save subscription"})
		return
	}
	WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// Unsubscribe removes the caller's subscription. POST /api/push/unsubscribe.
func (h *PushHandlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req model.UnsubscribeRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Message: model.ErrInvalidUnsubscribe.Error()})
		return
	}

	if err := h.Svc.Unsubscribe(r.Context(), subject.UserID, req); err != nil {
		h.writeStoreError(w, storeFailure{err: err, invalid: model.ErrInvalidUnsubscribe, message: "Failed to delete subscription"})
		return
	}
	WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *PushHandlers) authenticate(w http.ResponseWriter, r *http.Request) (domainauth.Subject, bool) {
	var token string
	if ck, err := r.Cookie(session.CookieAccessToken); err == nil {
		token = ck.Value
	}
	subject, err := h.Auth.Authenticate(r.Context(), token)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, Message: "Unauthorized"})
		return domainauth.Subject{}, false
	}
	return subject, true
}

type storeFailure struct {
	err     error
	invalid error
	message string
}

// writeStoreError maps invalid bodies to 400. Store failures are always 5xx;
// 504 is kept for timeouts.
func (h *PushHandlers) writeStoreError(w http.ResponseWriter, f storeFailure) {
	if errors.Is(f.err, f.invalid) {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, Message: f.invalid.Error()})
		return
	}
	status := apperrors.HTTPStatus(f.err)
	if status < http.StatusInternalServerError {
		status = http.StatusInternalServerError
	}
	h.logger().Error("push subscription store failed", "status", status, "error", f.err)
	WriteError(w, ErrorParams{Code: status, Message: f.message, Details: f.err.Error()})
}
