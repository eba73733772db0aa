package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/internal/repository"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

func superAdmin() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Roles: []string{string(models.RoleSuperAdmin)}}
}

func editorOf(institutionID int64) *models.JWTClaims {
	id := institutionID
	return &models.JWTClaims{UserID: fmt.Sprintf("editor-%d", institutionID), InstitutionID: &id, Roles: []string{string(models.RoleInstitutionEditor)}}
}

type auditRecorder struct {
	mu   sync.Mutex
	logs []*models.AuditLog
	err  error
}

func (a *auditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return a.err
}

func (a *auditRecorder) last() *models.AuditLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.logs) == 0 {
		return nil
	}
	return a.logs[len(a.logs)-1]
}

// memoryYears is an in-memory institution_years table.
type memoryYears struct {
	rows         map[string]*models.InstitutionYear
	active       []int64
	nextID       int64
	setOpenCalls int
	err          error
}

func newMemoryYears() *memoryYears {
	return &memoryYears{rows: map[string]*models.InstitutionYear{}, nextID: 1}
}

func yearKey(institutionID int64, year int) string {
	return fmt.Sprintf("%d:%d", institutionID, year)
}

func (m *memoryYears) add(institutionID int64, year int, open bool) *models.InstitutionYear {
	iy := &models.InstitutionYear{ID: m.nextID, InstitutionID: institutionID, Year: year, IsOpenForEditing: open}
	m.nextID++
	m.rows[yearKey(institutionID, year)] = iy
	return iy
}

func (m *memoryYears) byID(id int64) *models.InstitutionYear {
	for _, iy := range m.rows {
		if iy.ID == id {
			return iy
		}
	}
	return nil
}

func (m *memoryYears) Get(_ context.Context, institutionID int64, year int) (*models.InstitutionYear, error) {
	if m.err != nil {
		return nil, m.err
	}
	iy, ok := m.rows[yearKey(institutionID, year)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *iy
	return &copied, nil
}

func (m *memoryYears) ListByYear(_ context.Context, year int) ([]models.InstitutionYear, error) {
	var out []models.InstitutionYear
	for _, iy := range m.rows {
		if iy.Year == year {
			out = append(out, *iy)
		}
	}
	return out, nil
}

func (m *memoryYears) SetOpen(_ context.Context, year int, open bool, scope models.WindowScope) (int64, error) {
	m.setOpenCalls++
	if m.err != nil {
		return 0, m.err
	}
	allowed := map[int64]bool{}
	for _, id := range scope.InstitutionIDs {
		allowed[id] = true
	}
	var affected int64
	for _, iy := range m.rows {
		if iy.Year != year || (!scope.All() && !allowed[iy.InstitutionID]) {
			continue
		}
		iy.IsOpenForEditing = open
		affected++
	}
	return affected, nil
}

func (m *memoryYears) CreateForActiveInstitutions(_ context.Context, params models.NewYearParams) ([]models.YearCreationResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	results := make([]models.YearCreationResult, 0, len(m.active))
	for _, id := range m.active {
		if _, ok := m.rows[yearKey(id, params.Year)]; ok {
			results = append(results, models.YearCreationResult{InstitutionID: id, Outcome: models.YearSkipped})
			continue
		}
		m.add(id, params.Year, false)
		results = append(results, models.YearCreationResult{InstitutionID: id, Outcome: models.YearCreated})
	}
	return results, nil
}

func (m *memoryYears) DeleteYear(_ context.Context, year int) (int64, int64, error) {
	if m.err != nil {
		return 0, 0, m.err
	}
	var deleted int64
	for key, iy := range m.rows {
		if iy.Year == year {
			delete(m.rows, key)
			deleted++
		}
	}
	return deleted, 0, nil
}

// memoryStatuses is an in-memory entry_statuses table.
type memoryStatuses struct {
	years *memoryYears
	rows  map[int64]*models.EntryStatus
	err   error
}

func newMemoryStatuses(years *memoryYears) *memoryStatuses {
	return &memoryStatuses{years: years, rows: map[int64]*models.EntryStatus{}}
}

func (m *memoryStatuses) MarkComplete(_ context.Context, institutionYearID int64, category models.Category) error {
	if m.err != nil {
		return m.err
	}
	status, ok := m.rows[institutionYearID]
	if !ok {
		status = &models.EntryStatus{ID: int64(len(m.rows) + 1), InstitutionYearID: institutionYearID}
		m.rows[institutionYearID] = status
	}
	return setFlag(status, category)
}

func (m *memoryStatuses) Get(_ context.Context, institutionYearID int64) (*models.EntryStatus, error) {
	status, ok := m.rows[institutionYearID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *status
	return &copied, nil
}

func (m *memoryStatuses) ListByYear(_ context.Context, year int) ([]models.EntryStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.EntryStatus
	for iyID, status := range m.rows {
		if iy := m.years.byID(iyID); iy != nil && iy.Year == year {
			out = append(out, *status)
		}
	}
	return out, nil
}

func (m *memoryStatuses) AnyPublished(ctx context.Context, year int) (bool, error) {
	statuses, err := m.ListByYear(ctx, year)
	if err != nil {
		return false, err
	}
	for _, status := range statuses {
		if status.Published {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStatuses) PublishYear(_ context.Context, year int, at time.Time) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	var published int64
	for iyID, status := range m.rows {
		if iy := m.years.byID(iyID); iy != nil && iy.Year == year {
			status.Published = true
			published++
			stamp := at
			iy.PublicationDate = &stamp
		}
	}
	return published, nil
}

func setFlag(status *models.EntryStatus, category models.Category) error {
	switch category {
	case models.CategoryMonographicAcquisitions:
		status.MonographicAcquisitions = true
	case models.CategoryVolumeHoldings:
		status.VolumeHoldings = true
	case models.CategorySerials:
		status.Serials = true
	case models.CategoryOtherHoldings:
		status.OtherHoldings = true
	case models.CategoryUnprocessedBacklog:
		status.UnprocessedBacklog = true
	case models.CategoryFiscalSupport:
		status.FiscalSupport = true
	case models.CategoryPersonnelSupport:
		status.PersonnelSupport = true
	case models.CategoryPublicServices:
		status.PublicServices = true
	case models.CategoryElectronic:
		status.Electronic = true
	case models.CategoryElectronicBooks:
		status.ElectronicBooks = true
	default:
		return fmt.Errorf("unknown category %s", category)
	}
	return nil
}

// memoryRecords is an in-memory category_records table whose Save mirrors the
// repository transaction: upsert, entry flag, activity flag, audit.
type memoryRecords struct {
	years    *memoryYears
	statuses *memoryStatuses
	audit    *auditRecorder
	rows     map[string]*models.CategoryRecord
	names    map[int64]string
	nextID   int64
	saveErr  error
	saved    []*models.Submission
}

func newMemoryRecords(years *memoryYears, statuses *memoryStatuses, audit *auditRecorder) *memoryRecords {
	return &memoryRecords{years: years, statuses: statuses, audit: audit, rows: map[string]*models.CategoryRecord{}, names: map[int64]string{}, nextID: 1}
}

func recordKey(institutionYearID int64, category models.Category) string {
	return fmt.Sprintf("%d:%s", institutionYearID, category)
}

func (m *memoryRecords) put(institutionYearID int64, category models.Category, values models.FieldValues) *models.CategoryRecord {
	record := &models.CategoryRecord{ID: m.nextID, InstitutionYearID: institutionYearID, Category: category, FieldValues: values}
	m.nextID++
	m.rows[recordKey(institutionYearID, category)] = record
	return record
}

func (m *memoryRecords) Get(_ context.Context, institutionYearID int64, category models.Category) (*models.CategoryRecord, error) {
	record, ok := m.rows[recordKey(institutionYearID, category)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	copied.FieldValues = record.FieldValues.Clone()
	return &copied, nil
}

func (m *memoryRecords) ListByYear(_ context.Context, year int, category models.Category) ([]models.YearCategoryRecord, error) {
	var out []models.YearCategoryRecord
	for _, record := range m.rows {
		iy := m.years.byID(record.InstitutionYearID)
		if iy == nil || iy.Year != year || record.Category != category {
			continue
		}
		out = append(out, models.YearCategoryRecord{
			CategoryRecord:  *record,
			InstitutionID:   iy.InstitutionID,
			InstitutionName: m.names[iy.InstitutionID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstitutionID < out[j].InstitutionID })
	return out, nil
}

func (m *memoryRecords) Save(ctx context.Context, submission *models.Submission) (*models.CategoryRecord, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.saved = append(m.saved, submission)
	record := submission.Record
	if existing, ok := m.rows[recordKey(record.InstitutionYearID, record.Category)]; ok {
		record.ID = existing.ID
	} else {
		record.ID = m.nextID
		m.nextID++
	}
	stored := record
	m.rows[recordKey(record.InstitutionYearID, record.Category)] = &stored
	if err := m.statuses.MarkComplete(ctx, record.InstitutionYearID, record.Category); err != nil {
		return nil, err
	}
	if submission.Activate {
		if iy := m.years.byID(record.InstitutionYearID); iy != nil {
			iy.IsActive = true
		}
	}
	audit := submission.Audit
	if err := m.audit.CreateAuditLog(ctx, &audit); err != nil {
		return nil, err
	}
	return &record, nil
}

// memoryEvents is an in-memory scheduled_events table honouring the
// one-pending-per-(type, year) index.
type memoryEvents struct {
	mu     sync.Mutex
	rows   map[int64]*models.ScheduledEvent
	nextID int64
	err    error
}

func newMemoryEvents() *memoryEvents {
	return &memoryEvents{rows: map[int64]*models.ScheduledEvent{}, nextID: 1}
}

func (m *memoryEvents) Create(_ context.Context, event *models.ScheduledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.rows {
		if existing.Status == models.EventStatusPending && existing.EventType == event.EventType && existing.Year == event.Year {
			return repository.ErrDuplicatePendingEvent
		}
	}
	event.ID = m.nextID
	m.nextID++
	event.CreatedAt = time.Now().UTC()
	copied := *event
	m.rows[event.ID] = &copied
	return nil
}

func (m *memoryEvents) FindByID(_ context.Context, id int64) (*models.ScheduledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *event
	return &copied, nil
}

func (m *memoryEvents) FindPending(_ context.Context, eventType models.EventType, year int) (*models.ScheduledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, event := range m.rows {
		if event.Status == models.EventStatusPending && event.EventType == eventType && event.Year == year {
			copied := *event
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryEvents) List(_ context.Context, filter models.ScheduledEventFilter) ([]models.ScheduledEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledEvent
	for _, event := range m.rows {
		if filter.Status != nil && event.Status != *filter.Status {
			continue
		}
		if filter.EventType != nil && event.EventType != *filter.EventType {
			continue
		}
		if filter.Year != nil && event.Year != *filter.Year {
			continue
		}
		out = append(out, *event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryEvents) ListDue(_ context.Context, now time.Time, limit int) ([]models.ScheduledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScheduledEvent
	for _, event := range m.rows {
		if event.Status == models.EventStatusPending && !event.ScheduledDate.After(now) {
			out = append(out, *event)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledDate.Before(out[j].ScheduledDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryEvents) Transition(_ context.Context, id int64, from, to models.EventStatus, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	event, ok := m.rows[id]
	if !ok || event.Status != from {
		return false, nil
	}
	event.Status = to
	event.CompletedAt, event.CancelledAt = nil, nil
	stamp := at
	switch to {
	case models.EventStatusCompleted:
		event.CompletedAt = &stamp
	case models.EventStatusCancelled:
		event.CancelledAt = &stamp
	}
	return true, nil
}

func (m *memoryEvents) CompletePending(_ context.Context, eventType models.EventType, year int, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for _, event := range m.rows {
		if event.Status == models.EventStatusPending && event.EventType == eventType && event.Year == year {
			event.Status = models.EventStatusCompleted
			stamp := at
			event.CompletedAt = &stamp
			affected++
		}
	}
	return affected, nil
}

func (m *memoryEvents) status(id int64) models.EventStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

type broadcasterStub struct {
	calls  int
	err    error
	onSend func(event *models.ScheduledEvent)
}

func (b *broadcasterStub) Broadcast(_ context.Context, event *models.ScheduledEvent) error {
	b.calls++
	if b.onSend != nil {
		b.onSend(event)
	}
	return b.err
}

type cacheRepoStub struct {
	values      map[string][]byte
	invalidated []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{values: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *cacheRepoStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = payload
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.values {
		if strings.HasPrefix(key, prefix) {
			delete(c.values, key)
		}
	}
	return nil
}
