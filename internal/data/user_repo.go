package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/installer-portal/internal/data/pgxutil"
	domainauth "github.com/fieldops/installer-portal/internal/domain/auth"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

var (
	_ ports.UserStore     = (*UserRepo)(nil)
	_ ports.UserDirectory = (*UserRepo)(nil)
)

const userColumns = `id::text AS id, email, full_name, role::text AS role, phone, created_at`

// userRow is the scan target for users queries.
type userRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	FullName  string    `db:"full_name"`
	Role      string    `db:"role"`
	Phone     *string   `db:"phone"`
	CreatedAt time.Time `db:"created_at"`
}

func (r userRow) identity() domainauth.Identity {
	id := domainauth.Identity{
		ID:        r.ID,
		Email:     r.Email,
		FullName:  r.FullName,
		Role:      domainauth.Role(r.Role),
		CreatedAt: r.CreatedAt,
	}
	if r.Phone != nil {
		id.Phone = *r.Phone
	}
	return id
}

// UserRepo reads and maintains rows of the users table.
type UserRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewUserRepo creates a new UserRepo with real time provider.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewUserRepoWithTimeProvider creates a new UserRepo with a custom time provider (useful for tests).
func NewUserRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *UserRepo {
	return &UserRepo{DB: db, timeProvider: tp}
}

// GetByID returns the identity whose id equals the provider subject.
// Ids that are not UUIDs cannot exist and report ErrUserNotFound without a query.
func (r *UserRepo) GetByID(ctx context.Context, id string) (domainauth.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: invalid id %q", ErrUserNotFound, id)
	}

	var row userRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.Identity{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("get user by id: %w", apperrors.MapDBError(err))
	}
	return row.identity(), nil
}

// ListByRole returns users with the given role ordered by full name.
func (r *UserRepo) ListByRole(ctx context.Context, role domainauth.Role) ([]domainauth.Identity, error) {
	if !role.Valid() {
		return nil, apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", role))
	}

	var rowsOut []userRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE role = $1::user_role ORDER BY full_name ASC, email ASC`,
			string(role))
		if err != nil {
			return err
		}
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[userRow])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list users: %w", apperrors.MapDBError(err))
	}

	out := make([]domainauth.Identity, len(rowsOut))
	for i := range rowsOut {
		out[i] = rowsOut[i].identity()
	}
	return out, nil
}

// Upsert inserts the user or updates email, name, role and phone of an existing row.
func (r *UserRepo) Upsert(ctx context.Context, in domainauth.Identity) (domainauth.Identity, error) {
	if _, err := uuid.Parse(in.ID); err != nil {
		return domainauth.Identity{}, apperrors.ValidationField("id", "id must be a UUID")
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return domainauth.Identity{}, apperrors.ValidationField("email", "email is required")
	}
	if !in.Role.Valid() {
		return domainauth.Identity{}, apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", in.Role))
	}
	var phone *string
	if p := strings.TrimSpace(in.Phone); p != "" {
		phone = &p
	}

	now := r.timeProvider.Now().UTC()
	var row userRow
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO users (id, email, full_name, role, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4::user_role, $5, $6, $6)
			ON CONFLICT (id) DO UPDATE SET
				email = EXCLUDED.email,
				full_name = EXCLUDED.full_name,
				role = EXCLUDED.role,
				phone = EXCLUDED.phone,
				updated_at = EXCLUDED.updated_at
			RETURNING `+userColumns,
			in.ID, email, strings.TrimSpace(in.FullName), string(in.Role), phone, now,
		)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	}); err != nil {
		return domainauth.Identity{}, fmt.Errorf("upsert user: %w", apperrors.MapDBError(err))
	}
	return row.identity(), nil
}

// ChangeRole sets the role of user id. Demoting the only remaining admin
// fails with ErrLastAdmin.
func (r *UserRepo) ChangeRole(ctx context.Context, id string, role domainauth.Role) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid id %q", ErrUserNotFound, id)
	}
	if !role.Valid() {
		return apperrors.ValidationField("role", fmt.Sprintf("unknown role %q", role))
	}

	now := r.timeProvider.Now().UTC()
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{Isolation: sql.LevelSerializable},
		Fn: func(tx pgx.Tx) error {
			var current string
			if err := tx.QueryRow(ctx,
				`SELECT role::text FROM users WHERE id = $1 FOR UPDATE`, id,
			).Scan(&current); err != nil {
				return err
			}
			if domainauth.Role(current) == role {
				return nil
			}
			if domainauth.Role(current) == domainauth.RoleAdmin {
				var admins int
				if err := tx.QueryRow(ctx,
					`SELECT count(*) FROM users WHERE role = 'admin'`,
				).Scan(&admins); err != nil {
					return err
				}
				if admins <= 1 {
					return ErrLastAdmin
				}
			}
			_, err := tx.Exec(ctx,
				`UPDATE users SET role = $2::user_role, updated_at = $3 WHERE id = $1`,
				id, string(role), now)
			return err
		},
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	case errors.Is(err, ErrLastAdmin):
		return err
	case err != nil:
		return fmt.Errorf("change role: %w", apperrors.MapDBError(err))
	}
	return nil
}

// UpdateProfile sets the name and phone fields present in req. The request
// must already be validated; an empty phone clears it.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, req model.UpdateProfileRequest) (domainauth.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domainauth.Identity{}, fmt.Errorf("%w: invalid id %q", ErrUserNotFound, id)
	}

	setParts := make([]string, 0, 3)
	args := []any{id}
	if req.FullName != nil {
		args = append(args, strings.TrimSpace(*req.FullName))
		setParts = append(setParts, fmt.Sprintf("full_name = $%d", len(args)))
	}
	if req.Phone != nil {
		args = append(args, nullIfBlank(*req.Phone))
		setParts = append(setParts, fmt.Sprintf("phone = $%d", len(args)))
	}
	args = append(args, r.timeProvider.Now().UTC())
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", len(args)))

	var row userRow
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`UPDATE users SET `+strings.Join(setParts, ", ")+` WHERE id = $1 RETURNING `+userColumns,
			args...)
		if err != nil {
			return err
		}
		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domainauth.Identity{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("update profile: %w", apperrors.MapDBError(err))
	}
	return row.identity(), nil
}

// CountByRole returns how many admins and installers exist.
func (r *UserRepo) CountByRole(ctx context.Context) (model.UserCounts, error) {
	var out model.UserCounts
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT count(*) FILTER (WHERE role = 'admin') AS admins,
			       count(*) FILTER (WHERE role = 'installer') AS installers
			FROM users`)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.UserCounts])
		return err
	}); err != nil {
		return model.UserCounts{}, fmt.Errorf("count users: %w", apperrors.MapDBError(err))
	}
	return out, nil
}
