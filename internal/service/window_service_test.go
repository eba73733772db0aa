package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

func requireAppError(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

type windowFixture struct {
	years    *memoryYears
	statuses *memoryStatuses
	events   *memoryEvents
	audit    *auditRecorder
	cache    *cacheRepoStub
	svc      *WindowService
}

func newWindowFixture() *windowFixture {
	years := newMemoryYears()
	statuses := newMemoryStatuses(years)
	events := newMemoryEvents()
	audit := &auditRecorder{}
	cacheRepo := newCacheRepoStub()
	return &windowFixture{
		years:    years,
		statuses: statuses,
		events:   events,
		audit:    audit,
		cache:    cacheRepo,
		svc:      NewWindowService(years, events, statuses, audit, NewCacheService(cacheRepo, nil, time.Minute, nil, true), nil, nil),
	}
}

func TestWindowServiceCanEdit(t *testing.T) {
	svc := newWindowFixture().svc
	open := &models.InstitutionYear{InstitutionID: 42, IsOpenForEditing: true}
	closed := &models.InstitutionYear{InstitutionID: 42}

	allowed, override := svc.CanEdit(editorOf(42), open)
	assert.True(t, allowed)
	assert.False(t, override)

	allowed, _ = svc.CanEdit(editorOf(42), closed)
	assert.False(t, allowed)

	allowed, _ = svc.CanEdit(editorOf(7), open)
	assert.False(t, allowed, "editors are scoped to their own institution")

	allowed, override = svc.CanEdit(superAdmin(), closed)
	assert.True(t, allowed)
	assert.True(t, override)

	allowed, override = svc.CanEdit(superAdmin(), open)
	assert.True(t, allowed)
	assert.False(t, override, "an open window needs no override")
}

func TestWindowServiceGet(t *testing.T) {
	f := newWindowFixture()
	f.years.add(42, 2025, false)

	iy, err := f.svc.Get(context.Background(), editorOf(42), 42, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, iy.Year)

	_, err = f.svc.Get(context.Background(), editorOf(42), 42, 2030)
	requireAppError(t, err, appErrors.ErrNotFound.Code)
	assert.Len(t, f.years.rows, 1, "get must never create rows")

	_, err = f.svc.Get(context.Background(), editorOf(7), 42, 2025)
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestWindowServiceState(t *testing.T) {
	f := newWindowFixture()
	f.years.add(42, 2025, false)

	state, err := f.svc.State(context.Background(), superAdmin(), 42, 2025)
	require.NoError(t, err)
	assert.False(t, state.Open)
	assert.True(t, state.CanEdit)
	assert.True(t, state.Override)
}

func TestWindowServiceOpenAllCompletesPendingOpeningEvent(t *testing.T) {
	f := newWindowFixture()
	f.years.add(1, 2025, false)
	f.years.add(2, 2025, false)
	event := &models.ScheduledEvent{EventType: models.EventTypeFormOpening, Year: 2025, Status: models.EventStatusPending}
	require.NoError(t, f.events.Create(context.Background(), event))

	resp, err := f.svc.Open(context.Background(), superAdmin(), 2025, dto.WindowRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Affected)
	assert.True(t, f.years.rows[yearKey(1, 2025)].IsOpenForEditing)
	assert.Equal(t, models.EventStatusCompleted, f.events.status(event.ID))

	last := f.audit.last()
	require.NotNil(t, last)
	assert.Equal(t, models.AuditActionWindowOpen, last.Action)
	assert.True(t, last.Success)
}

func TestWindowServiceScopedCloseLeavesEventsAlone(t *testing.T) {
	f := newWindowFixture()
	f.years.add(1, 2025, true)
	f.years.add(2, 2025, true)
	event := &models.ScheduledEvent{EventType: models.EventTypeFormClosing, Year: 2025, Status: models.EventStatusPending}
	require.NoError(t, f.events.Create(context.Background(), event))

	resp, err := f.svc.Close(context.Background(), superAdmin(), 2025, dto.WindowRequest{InstitutionIDs: []int64{2}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Affected)
	assert.True(t, f.years.rows[yearKey(1, 2025)].IsOpenForEditing)
	assert.False(t, f.years.rows[yearKey(2, 2025)].IsOpenForEditing)
	assert.Equal(t, models.EventStatusPending, f.events.status(event.ID))
}

func TestWindowServiceOpenRequiresSuperAdmin(t *testing.T) {
	f := newWindowFixture()
	_, err := f.svc.Open(context.Background(), editorOf(42), 2025, dto.WindowRequest{})
	requireAppError(t, err, appErrors.ErrForbidden.Code)
	assert.Zero(t, f.years.setOpenCalls)

	last := f.audit.last()
	require.NotNil(t, last)
	assert.False(t, last.Success)
}

func TestWindowServiceCreateYearIsIdempotent(t *testing.T) {
	f := newWindowFixture()
	f.years.active = []int64{1, 2}
	f.years.add(1, 2026, false)

	resp, err := f.svc.CreateYear(context.Background(), superAdmin(), dto.CreateYearRequest{Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 1, resp.Skipped)

	resp, err = f.svc.CreateYear(context.Background(), superAdmin(), dto.CreateYearRequest{Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Created)
	assert.Equal(t, 2, resp.Skipped)
}

func TestWindowServiceCreateYearValidation(t *testing.T) {
	f := newWindowFixture()
	_, err := f.svc.CreateYear(context.Background(), superAdmin(), dto.CreateYearRequest{Year: 1850})
	requireAppError(t, err, appErrors.ErrValidation.Code)
}

func TestWindowServiceDeleteYear(t *testing.T) {
	t.Run("published year refused", func(t *testing.T) {
		f := newWindowFixture()
		iy := f.years.add(1, 2024, false)
		require.NoError(t, f.statuses.MarkComplete(context.Background(), iy.ID, models.CategorySerials))
		_, err := f.statuses.PublishYear(context.Background(), 2024, f.svc.now())
		require.NoError(t, err)

		_, err = f.svc.DeleteYear(context.Background(), superAdmin(), 2024)
		requireAppError(t, err, appErrors.ErrPreconditionFailed.Code)
		assert.Len(t, f.years.rows, 1)
		assert.Empty(t, f.cache.invalidated)
	})

	t.Run("unpublished year deleted", func(t *testing.T) {
		f := newWindowFixture()
		f.years.add(1, 2024, false)
		f.years.add(2, 2024, false)

		f.cache.values[CacheKey(aggregateCachePrefix, 2024, models.CategorySerials)] = []byte(`{}`)
		f.cache.values[CacheKey(aggregateCachePrefix, 2023, models.CategorySerials)] = []byte(`{}`)

		resp, err := f.svc.DeleteYear(context.Background(), superAdmin(), 2024)
		require.NoError(t, err)
		assert.Equal(t, int64(2), resp.Deleted)
		assert.Empty(t, f.years.rows)
		assert.NotContains(t, f.cache.values, CacheKey(aggregateCachePrefix, 2024, models.CategorySerials))
		assert.Contains(t, f.cache.values, CacheKey(aggregateCachePrefix, 2023, models.CategorySerials))
	})

	t.Run("editor forbidden", func(t *testing.T) {
		f := newWindowFixture()
		_, err := f.svc.DeleteYear(context.Background(), editorOf(1), 2024)
		requireAppError(t, err, appErrors.ErrForbidden.Code)
	})
}
