package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/installer-portal/internal/data/pgxutil"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

var _ ports.MaterialStore = (*MaterialRepo)(nil)

const materialColumns = `id::text AS id, installation_id::text AS installation_id, description, created_at`

// MaterialRepo persists the materials used on installations.
type MaterialRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewMaterialRepo creates a new MaterialRepo with real time provider.
func NewMaterialRepo(db *sql.DB) *MaterialRepo {
	return &MaterialRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewMaterialRepoWithTimeProvider creates a new MaterialRepo with a custom time provider.
func NewMaterialRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *MaterialRepo {
	return &MaterialRepo{DB: db, timeProvider: tp}
}

// ListByInstallation returns the materials of installationID, oldest first.
func (r *MaterialRepo) ListByInstallation(ctx context.Context, installationID string) ([]model.Material, error) {
	if _, err := uuid.Parse(installationID); err != nil {
		return nil, nil
	}
	var out []model.Material
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+materialColumns+` FROM materials WHERE installation_id = $1 ORDER BY created_at ASC, id ASC`,
			installationID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Material])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list materials: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Add records a material against installationID. The request must already be validated.
// A missing installation surfaces as a ForeignKey error.
func (r *MaterialRepo) Add(ctx context.Context, installationID string, req model.AddMaterialRequest) (model.Material, error) {
	if _, err := uuid.Parse(installationID); err != nil {
		return model.Material{}, fmt.Errorf("%w: invalid id %q", ErrInstallationNotFound, installationID)
	}
	now := r.timeProvider.Now().UTC()

	var out model.Material
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO materials (installation_id, description, created_at)
			VALUES ($1, $2, $3)
			RETURNING `+materialColumns,
			installationID, req.Description, now,
		)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Material])
		return err
	}); err != nil {
		return model.Material{}, fmt.Errorf("add material: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// GetByID retrieves a material by ID.
func (r *MaterialRepo) GetByID(ctx context.Context, id string) (model.Material, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Material{}, fmt.Errorf("%w: invalid id %q", ErrMaterialNotFound, id)
	}
	var out model.Material
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Material])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Material{}, fmt.Errorf("%w: %s", ErrMaterialNotFound, id)
	}
	if err != nil {
		return model.Material{}, fmt.Errorf("get material: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Delete removes a material. Deleting a missing row reports ErrMaterialNotFound.
func (r *MaterialRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid id %q", ErrMaterialNotFound, id)
	}
	var affected int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM materials WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = ct.RowsAffected()
		return nil
	}); err != nil {
		return fmt.Errorf("delete material: %w", apperrors.MapDBError(err))
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrMaterialNotFound, id)
	}
	return nil
}
