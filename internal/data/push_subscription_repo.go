package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fieldops/installer-portal/internal/data/pgxutil"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

var _ ports.PushSubscriptionStore = (*PushSubscriptionRepo)(nil)

const pushSubscriptionColumns = `id::text AS id, user_id::text AS user_id, endpoint, p256dh, auth, created_at, updated_at`

// PushSubscriptionRepo persists Web Push subscriptions.
type PushSubscriptionRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewPushSubscriptionRepo creates a new PushSubscriptionRepo with real time provider.
func NewPushSubscriptionRepo(db *sql.DB) *PushSubscriptionRepo {
	return &PushSubscriptionRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewPushSubscriptionRepoWithTimeProvider creates a new PushSubscriptionRepo with a custom time provider.
func NewPushSubscriptionRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *PushSubscriptionRepo {
	return &PushSubscriptionRepo{DB: db, timeProvider: tp}
}

// Upsert inserts sub or refreshes the keys of the existing (user_id, endpoint) row.
// The id and created_at of an existing row are kept.
func (r *PushSubscriptionRepo) Upsert(ctx context.Context, sub model.PushSubscription) (model.PushSubscription, error) {
	now := r.timeProvider.Now().UTC()

	var out model.PushSubscription
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (user_id, endpoint) DO UPDATE SET
				p256dh = EXCLUDED.p256dh,
				auth = EXCLUDED.auth,
				updated_at = EXCLUDED.updated_at
			RETURNING `+pushSubscriptionColumns,
			sub.UserID, sub.Endpoint, sub.P256dh, sub.Auth, now,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.PushSubscription])
		return err
	}); err != nil {
		return model.PushSubscription{}, apperrors.MapDBError(err)
	}
	return out, nil
}

// Delete removes the (userID, endpoint) subscription. Missing rows are not an error.
func (r *PushSubscriptionRepo) Delete(ctx context.Context, userID, endpoint string) error {
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`,
			userID, endpoint)
		return err
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// ListByUser returns the subscriptions of userID, newest first.
func (r *PushSubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+pushSubscriptionColumns+` FROM push_subscriptions WHERE user_id = $1 ORDER BY created_at DESC`,
			userID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.PushSubscription])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
