package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/installer-portal/internal/data/pgxutil"
	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
	"github.com/fieldops/installer-portal/internal/ports"
)

var _ ports.InstallationStore = (*InstallationRepo)(nil)

const (
	defaultInstallationListLimit = 200
	maxInstallationListLimit     = 500
)

// SQL fragments shared by every installation read. Writes return through a
// CTE named i so the assignee join is the same everywhere.
const (
	installationSelect = `
		SELECT i.id::text AS id, i.client_name, i.client_email, i.client_phone, i.address,
		       i.scheduled_date, i.status::text AS status, i.assigned_to::text AS assigned_to,
		       u.full_name AS installer_name, u.email AS installer_email,
		       i.notes, i.archived_at, i.created_at, i.updated_at`
	installationFrom = `
		FROM installations i
		LEFT JOIN users u ON u.id = i.assigned_to`
	installationFromCTE = `
		FROM i
		LEFT JOIN users u ON u.id = i.assigned_to`
)

// InstallationRepo persists installations.
type InstallationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewInstallationRepo creates a new InstallationRepo with real time provider.
func NewInstallationRepo(db *sql.DB) *InstallationRepo {
	return &InstallationRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewInstallationRepoWithTimeProvider creates a new InstallationRepo with a custom time provider.
func NewInstallationRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *InstallationRepo {
	return &InstallationRepo{DB: db, timeProvider: tp}
}

// Create inserts a new installation. The request must already be validated.
func (r *InstallationRepo) Create(ctx context.Context, req model.CreateInstallationRequest) (model.Installation, error) {
	assignee, err := optionalUUID("assigned_to", req.AssignedTo)
	if err != nil {
		return model.Installation{}, err
	}
	status := req.Status
	if status == "" {
		status = model.InstallationPending
	}

	now := r.timeProvider.Now().UTC()
	q := `
		WITH i AS (
			INSERT INTO installations
				(client_name, client_email, client_phone, address, scheduled_date, status, assigned_to, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6::installation_status, $7::uuid, $8, $9, $9)
			RETURNING *
		)` + installationSelect + installationFromCTE

	out, err := r.queryOne(ctx, q,
		req.ClientName, nullIfBlank(req.ClientEmail), nullIfBlank(req.ClientPhone), req.Address,
		req.ScheduledDate, string(status), assignee, nullIfBlank(req.Notes), now,
	)
	if err != nil {
		return model.Installation{}, fmt.Errorf("create installation: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// GetByID retrieves an installation by ID, archived or not.
func (r *InstallationRepo) GetByID(ctx context.Context, id string) (model.Installation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Installation{}, fmt.Errorf("%w: invalid id %q", ErrInstallationNotFound, id)
	}
	out, err := r.queryOne(ctx, installationSelect+installationFrom+` WHERE i.id = $1`, id)
	return out, r.mapReadErr(err, id)
}

// List retrieves installations matching opts.
func (r *InstallationRepo) List(ctx context.Context, opts model.InstallationListOptions) ([]model.Installation, error) {
	where, args, err := buildInstallationFilter(opts)
	if err != nil {
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultInstallationListLimit
	}
	limit = min(limit, maxInstallationListLimit)
	args = append(args, limit)

	q := installationSelect + installationFrom + where +
		` ORDER BY ` + installationOrder(opts.Sort) +
		` LIMIT $` + strconv.Itoa(len(args))

	var rowsOut []model.Installation
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		rowsOut, qerr = pgx.CollectRows(rows, pgx.RowToStructByName[model.Installation])
		return qerr
	}); err != nil {
		return nil, fmt.Errorf("list installations: %w", apperrors.MapDBError(err))
	}
	return rowsOut, nil
}

// Update changes the fields set in req. The request must already be validated.
func (r *InstallationRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateInstallationRequest,
) (model.Installation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Installation{}, fmt.Errorf("%w: invalid id %q", ErrInstallationNotFound, id)
	}
	setClause, args, err := r.buildUpdateClause(req)
	if err != nil {
		return model.Installation{}, err
	}
	args = append(args, id)
	q := `WITH i AS (UPDATE installations SET ` + setClause +
		` WHERE id = $` + strconv.Itoa(len(args)) + ` RETURNING *)` +
		installationSelect + installationFromCTE

	out, err := r.queryOne(ctx, q, args...)
	return out, r.mapReadErr(err, id)
}

// buildUpdateClause builds the SQL SET clause and args for updating an installation.
// updated_at is always set.
func (r *InstallationRepo) buildUpdateClause(req model.UpdateInstallationRequest) (string, []any, error) {
	setParts := make([]string, 0, 9)
	args := make([]any, 0, 10)
	set := func(column string, v any) {
		args = append(args, v)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.ClientName != nil {
		set("client_name", strings.TrimSpace(*req.ClientName))
	}
	if req.ClientEmail != nil {
		set("client_email", nullIfBlank(*req.ClientEmail))
	}
	if req.ClientPhone != nil {
		set("client_phone", nullIfBlank(*req.ClientPhone))
	}
	if req.Address != nil {
		set("address", strings.TrimSpace(*req.Address))
	}
	if req.ScheduledDate != nil {
		if req.ScheduledDate.IsZero() {
			setParts = append(setParts, "scheduled_date = NULL")
		} else {
			set("scheduled_date", req.ScheduledDate.UTC())
		}
	}
	if req.Status != nil {
		args = append(args, string(*req.Status))
		setParts = append(setParts, fmt.Sprintf("status = $%d::installation_status", len(args)))
	}
	if req.AssignedTo != nil {
		assignee, err := optionalUUID("assigned_to", *req.AssignedTo)
		if err != nil {
			return "", nil, err
		}
		if assignee == nil {
			setParts = append(setParts, "assigned_to = NULL")
		} else {
			set("assigned_to", *assignee)
		}
	}
	if req.Notes != nil {
		set("notes", nullIfBlank(*req.Notes))
	}
	set("updated_at", r.timeProvider.Now().UTC())

	return strings.Join(setParts, ", "), args, nil
}

// SetArchived stamps or clears archived_at.
func (r *InstallationRepo) SetArchived(ctx context.Context, id string, archived bool) (model.Installation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Installation{}, fmt.Errorf("%w: invalid id %q", ErrInstallationNotFound, id)
	}
	now := r.timeProvider.Now().UTC()
	var archivedAt any
	if archived {
		archivedAt = now
	}
	q := `WITH i AS (
			UPDATE installations SET archived_at = $2, updated_at = $3 WHERE id = $1 RETURNING *
		)` + installationSelect + installationFromCTE

	out, err := r.queryOne(ctx, q, id, archivedAt, now)
	return out, r.mapReadErr(err, id)
}

// Stats counts non-archived installations by status, for one installer when
// installerID is set.
func (r *InstallationRepo) Stats(ctx context.Context, installerID string) (model.InstallationStats, error) {
	q := `
		SELECT count(*) AS total,
		       count(*) FILTER (WHERE status = 'pending') AS pending,
		       count(*) FILTER (WHERE status = 'in_progress') AS in_progress,
		       count(*) FILTER (WHERE status = 'completed') AS completed,
		       count(*) FILTER (WHERE status = 'cancelled') AS cancelled
		FROM installations
		WHERE archived_at IS NULL`
	var args []any
	if installerID != "" {
		if _, err := uuid.Parse(installerID); err != nil {
			return model.InstallationStats{}, nil
		}
		q += ` AND assigned_to = $1`
		args = append(args, installerID)
	}

	var out model.InstallationStats
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.InstallationStats])
		return err
	}); err != nil {
		return model.InstallationStats{}, fmt.Errorf("installation stats: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// Workloads returns open and completed counts for every installer, ordered by name.
func (r *InstallationRepo) Workloads(ctx context.Context) ([]model.InstallerWorkload, error) {
	const q = `
		SELECT u.id::text AS id, u.full_name, u.email,
		       count(i.id) FILTER (WHERE i.status IN ('pending', 'in_progress')) AS active,
		       count(i.id) FILTER (WHERE i.status = 'completed') AS completed
		FROM users u
		LEFT JOIN installations i ON i.assigned_to = u.id AND i.archived_at IS NULL
		WHERE u.role = 'installer'
		GROUP BY u.id, u.full_name, u.email
		ORDER BY u.full_name ASC, u.email ASC`

	var out []model.InstallerWorkload
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.InstallerWorkload])
		return err
	}); err != nil {
		return nil, fmt.Errorf("installer workloads: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// --- helpers ---

// queryOne runs q and scans exactly one installation.
func (r *InstallationRepo) queryOne(ctx context.Context, q string, args ...any) (model.Installation, error) {
	var out model.Installation
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Installation])
		return err
	})
	return out, err
}

func (r *InstallationRepo) mapReadErr(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %s", ErrInstallationNotFound, id)
	default:
		return fmt.Errorf("installation %s: %w", id, apperrors.MapDBError(err))
	}
}

// buildInstallationFilter renders the WHERE clause for opts. Placeholders
// start at $1.
func buildInstallationFilter(opts model.InstallationListOptions) (string, []any, error) {
	var conds []string
	var args []any
	add := func(format string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if !opts.IncludeArchived {
		conds = append(conds, "i.archived_at IS NULL")
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, len(opts.Statuses))
		for i, s := range opts.Statuses {
			statuses[i] = string(s)
		}
		add("i.status::text = ANY($%d)", statuses)
	}
	if opts.InstallerID != "" {
		if _, err := uuid.Parse(opts.InstallerID); err != nil {
			return "", nil, apperrors.ValidationField("installer", "Instalador no válido")
		}
		add("i.assigned_to = $%d", opts.InstallerID)
	}
	if opts.ScheduledFrom != nil {
		if opts.IncludeUnscheduled {
			add("(i.scheduled_date IS NULL OR i.scheduled_date >= $%d)", opts.ScheduledFrom.UTC())
		} else {
			add("i.scheduled_date >= $%d", opts.ScheduledFrom.UTC())
		}
	}
	if opts.ScheduledTo != nil {
		add("i.scheduled_date <= $%d", opts.ScheduledTo.UTC())
	}
	if opts.ScheduledBefore != nil {
		add("i.scheduled_date < $%d", opts.ScheduledBefore.UTC())
	}
	if q := strings.TrimSpace(opts.Search); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(i.client_name ILIKE $%d OR i.client_email ILIKE $%d OR i.address ILIKE $%d)", n, n, n))
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// installationOrder maps a sort option to a safe ORDER BY clause.
func installationOrder(sort string) string {
	switch strings.TrimSpace(sort) {
	case model.InstallationSortScheduled:
		return "i.scheduled_date ASC NULLS LAST, i.created_at DESC"
	case model.InstallationSortScheduledDesc:
		return "i.scheduled_date DESC NULLS LAST, i.created_at DESC"
	default:
		return "i.created_at DESC"
	}
}

// escapeLike makes % and _ in user input match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullIfBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// optionalUUID returns nil for a blank value and rejects anything that is not a UUID.
func optionalUUID(field, v string) (*string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil //nolint:nilnil // blank means unassigned
	}
	if _, err := uuid.Parse(v); err != nil {
		return nil, apperrors.ValidationField(field, "Identificador no válido")
	}
	return &v, nil
}
