package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/installer-portal/internal/domain/model"
	apperrors "github.com/fieldops/installer-portal/internal/errors"
)

var madridWinter = time.FixedZone("CET", 3600)

func newFieldWork(f workFixture) *FieldWorkService {
	return NewFieldWorkService(FieldWorkServiceOptions{
		Stores:   f.stores(),
		Calendar: WorkCalendar{Clock: fixedClock{now: workNow}, Location: madridWinter},
	})
}

func TestNewFieldWorkService_RequiresClock(t *testing.T) {
	assert.Panics(t, func() {
		NewFieldWorkService(FieldWorkServiceOptions{Stores: newWorkFixture().stores()})
	})
}

func TestFieldWorkService_DashboardUsesLocalDay(t *testing.T) {
	f := newWorkFixture()
	// 00:30 local on the current day, still the previous day in UTC.
	f.seed("Early", model.InstallationPending, installerA.ID, at(-9*time.Hour-30*time.Minute))
	f.seed("Noon", model.InstallationCompleted, installerA.ID, at(3*time.Hour))
	// 00:30 local tomorrow, still today in UTC.
	f.seed("Tomorrow", model.InstallationPending, installerA.ID, at(14*time.Hour+30*time.Minute))
	f.seed("Unscheduled", model.InstallationInProgress, installerA.ID, nil)
	f.seed("Finished later", model.InstallationCompleted, installerA.ID, at(48*time.Hour))
	f.seed("Someone else", model.InstallationPending, installerB.ID, at(time.Hour))

	got, err := newFieldWork(f).Dashboard(context.Background(), installerA.ID)

	require.NoError(t, err)
	assert.Equal(t, model.InstallationStats{Total: 5, Pending: 2, InProgress: 1, Completed: 2}, got.Stats)
	require.Len(t, got.Today, 2)
	assert.Equal(t, "Early", got.Today[0].ClientName)
	assert.Equal(t, "Noon", got.Today[1].ClientName)
	require.Len(t, got.Upcoming, 2)
	assert.Equal(t, "Tomorrow", got.Upcoming[0].ClientName)
	assert.Equal(t, "Unscheduled", got.Upcoming[1].ClientName)
}

func TestFieldWorkService_AssignedNewestScheduleFirst(t *testing.T) {
	f := newWorkFixture()
	f.seed("First", model.InstallationPending, installerA.ID, at(time.Hour))
	f.seed("Second", model.InstallationPending, installerA.ID, at(24*time.Hour))
	f.seed("Other", model.InstallationPending, installerB.ID, at(2*time.Hour))
	archived := f.seed("Archived", model.InstallationPending, installerA.ID, at(3*time.Hour))
	_, err := f.installations.SetArchived(context.Background(), archived.ID, true)
	require.NoError(t, err)

	rows, err := newFieldWork(f).Assigned(context.Background(), installerA.ID, model.InstallationListOptions{
		InstallerID:     installerB.ID,
		IncludeArchived: true,
	})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Second", rows[0].ClientName)
	assert.Equal(t, "First", rows[1].ClientName)
}

func TestFieldWorkService_DetailHidesOtherWork(t *testing.T) {
	f := newWorkFixture()
	mine := f.seed("Mine", model.InstallationPending, installerA.ID, nil)
	theirs := f.seed("Theirs", model.InstallationPending, installerB.ID, nil)
	svc := newFieldWork(f)
	ctx := context.Background()

	detail, err := svc.Detail(ctx, installerA.ID, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.ID, detail.Installation.ID)

	_, err = svc.Detail(ctx, installerA.ID, theirs.ID)
	assert.ErrorIs(t, err, ErrInstallationNotFound)

	_, err = f.installations.SetArchived(ctx, mine.ID, true)
	require.NoError(t, err)
	_, err = svc.Detail(ctx, installerA.ID, mine.ID)
	assert.ErrorIs(t, err, ErrInstallationNotFound)
}

func TestFieldWorkService_UpdateStatus(t *testing.T) {
	f := newWorkFixture()
	mine := f.seed("Mine", model.InstallationPending, installerA.ID, nil)
	theirs := f.seed("Theirs", model.InstallationPending, installerB.ID, nil)
	svc := newFieldWork(f)
	ctx := context.Background()

	got, err := svc.UpdateStatus(ctx, installerA.ID, mine.ID, model.InstallationInProgress)
	require.NoError(t, err)
	assert.Equal(t, model.InstallationInProgress, got.Status)

	tests := []struct {
		name   string
		id     string
		status model.InstallationStatus
		want   error
		msg    string
	}{
		{"cancel", mine.ID, model.InstallationCancelled, ErrCancelNotAllowed, "No tienes permiso para cancelar instalaciones"},
		{"not assigned", theirs.ID, model.InstallationCompleted, ErrInstallationAccess, "No tienes acceso a esta instalación"},
		{"missing", "missing", model.InstallationCompleted, ErrInstallationNotFound, "Instalación no encontrada"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStatus(ctx, installerA.ID, tt.id, tt.status)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.msg, err.Error())
		})
	}

	_, err = svc.UpdateStatus(ctx, installerA.ID, mine.ID, "lost")
	assert.True(t, apperrors.IsValidation(err))

	unchanged, err := f.installations.GetByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InstallationPending, unchanged.Status)
}

func TestFieldWorkService_UpdateNotes(t *testing.T) {
	f := newWorkFixture()
	mine := f.seed("Mine", model.InstallationPending, installerA.ID, nil)
	theirs := f.seed("Theirs", model.InstallationPending, installerB.ID, nil)
	svc := newFieldWork(f)
	ctx := context.Background()

	got, err := svc.UpdateNotes(ctx, installerA.ID, mine.ID, "  Portero: 3B  ")
	require.NoError(t, err)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "Portero: 3B", *got.Notes)

	got, err = svc.UpdateNotes(ctx, installerA.ID, mine.ID, " ")
	require.NoError(t, err)
	assert.Nil(t, got.Notes)

	_, err = svc.UpdateNotes(ctx, installerA.ID, theirs.ID, "x")
	assert.ErrorIs(t, err, ErrInstallationAccess)
}

func TestFieldWorkService_Materials(t *testing.T) {
	f := newWorkFixture()
	mine := f.seed("Mine", model.InstallationPending, installerA.ID, nil)
	theirs := f.seed("Theirs", model.InstallationPending, installerB.ID, nil)
	svc := newFieldWork(f)
	ctx := context.Background()

	_, err := svc.AddMaterial(ctx, installerA.ID, mine.ID, model.AddMaterialRequest{Description: " "})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.AddMaterial(ctx, installerA.ID, theirs.ID, model.AddMaterialRequest{Description: "Router"})
	assert.ErrorIs(t, err, ErrInstallationAccess)

	mat, err := svc.AddMaterial(ctx, installerA.ID, mine.ID, model.AddMaterialRequest{Description: "Router"})
	require.NoError(t, err)
	assert.Equal(t, mine.ID, mat.InstallationID)

	other, err := f.materials.Add(ctx, theirs.ID, model.AddMaterialRequest{Description: "Cable"})
	require.NoError(t, err)

	err = svc.DeleteMaterial(ctx, installerA.ID, other.ID)
	assert.ErrorIs(t, err, ErrMaterialAccess)
	assert.Equal(t, "No tienes acceso a este material", err.Error())

	require.NoError(t, svc.DeleteMaterial(ctx, installerA.ID, mat.ID))
	err = svc.DeleteMaterial(ctx, installerA.ID, mat.ID)
	assert.ErrorIs(t, err, ErrMaterialNotFound)
	assert.Equal(t, "Material no encontrado", err.Error())

	left, err := f.materials.ListByInstallation(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
