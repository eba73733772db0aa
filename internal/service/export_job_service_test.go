package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
	"github.com/noah-isme/libstats-api/pkg/jobs"
)

type exportRepoStub struct {
	jobs map[string]*models.ExportJob
}

func newExportRepoStub() *exportRepoStub {
	return &exportRepoStub{jobs: map[string]*models.ExportJob{}}
}

func (r *exportRepoStub) Create(_ context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *exportRepoStub) GetByID(_ context.Context, id string) (*models.ExportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (r *exportRepoStub) Update(_ context.Context, id string, params models.ExportJobUpdate) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != "" {
		job.Status = params.Status
	}
	if params.StorageKey != nil {
		job.StorageKey = params.StorageKey
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *exportRepoStub) ListQueued(context.Context, int) ([]models.ExportJob, error) {
	var queued []models.ExportJob
	for _, job := range r.jobs {
		if job.Status == models.ExportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *exportRepoStub) ListFinishedBefore(_ context.Context, cutoff time.Time, _ int) ([]models.ExportJob, error) {
	var finished []models.ExportJob
	for _, job := range r.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	return finished, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(context.Context, *models.ExportJob) (*ExportResult, error) {
	return nil, g.err
}

func TestExportJobLifecycle(t *testing.T) {
	exporter, _ := newExportServiceForTest(t)
	repo := newExportRepoStub()
	queue := &queueStub{}
	audit := &auditRecorder{}
	svc := NewExportJobService(repo, queue, exporter, audit, nil, nil, ExportJobServiceConfig{ResultTTL: time.Hour})
	worker := NewExportWorker(repo, exporter, NewMetricsService(), nil)

	created, err := svc.Request(context.Background(), superAdmin(), dto.ExportRequest{Category: "fiscal_support", Year: 2024, Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, created.Status)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.AuditActionExportRequest, audit.last().Action)

	require.NoError(t, worker.Handle(context.Background(), queue.jobs[0]))

	status, err := svc.Status(context.Background(), superAdmin(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusFinished, status.Status)
	require.NotNil(t, status.ResultURL)
	assert.Nil(t, status.Error)

	token := (*status.ResultURL)[len("/api/v1/export/"):]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.Body.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	content, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Beta Library")

	_, err = svc.ResolveDownload(context.Background(), token+"0")
	requireAppError(t, err, appErrors.ErrForbidden.Code)
}

func TestExportJobRequestValidation(t *testing.T) {
	svc := NewExportJobService(newExportRepoStub(), &queueStub{}, nil, nil, nil, nil, ExportJobServiceConfig{})

	_, err := svc.Request(context.Background(), superAdmin(), dto.ExportRequest{Category: "serials", Year: 2024, Format: "xlsx"})
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Request(context.Background(), superAdmin(), dto.ExportRequest{Category: "nope", Year: 2024, Format: "csv"})
	requireAppError(t, err, appErrors.ErrValidation.Code)

	_, err = svc.Request(context.Background(), editorOf(1), dto.ExportRequest{Category: "serials", Year: 2024, Format: "csv"})
	requireAppError(t, err, appErrors.ErrForbidden.Code)

	_, err = svc.Status(context.Background(), superAdmin(), "missing")
	requireAppError(t, err, appErrors.ErrNotFound.Code)
}

func TestExportJobEnqueueFailureMarksFailed(t *testing.T) {
	repo := newExportRepoStub()
	svc := NewExportJobService(repo, &queueStub{err: jobs.ErrQueueStopped}, nil, nil, nil, nil, ExportJobServiceConfig{})

	_, err := svc.Request(context.Background(), superAdmin(), dto.ExportRequest{Category: "serials", Year: 2024, Format: "pdf"})
	requireAppError(t, err, appErrors.ErrInternal.Code)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestExportWorkerRetryThenExhausted(t *testing.T) {
	repo := newExportRepoStub()
	job := &models.ExportJob{Category: models.CategorySerials, Year: 2024, Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))
	worker := NewExportWorker(repo, failingGenerator{err: errors.New("render failed")}, nil, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: job.ID})
	require.Error(t, err)
	assert.Equal(t, models.ExportStatusQueued, repo.jobs[job.ID].Status)
	assert.Equal(t, "render failed", *repo.jobs[job.ID].ErrorMessage)

	worker.Exhausted(context.Background(), jobs.Job{ID: job.ID, Attempt: 4}, err)
	assert.Equal(t, models.ExportStatusFailed, repo.jobs[job.ID].Status)
	assert.NotNil(t, repo.jobs[job.ID].FinishedAt)
}

func TestExportJobRecoverAndCleanup(t *testing.T) {
	exporter, _ := newExportServiceForTest(t)
	repo := newExportRepoStub()
	queue := &queueStub{}
	svc := NewExportJobService(repo, queue, exporter, nil, nil, nil, ExportJobServiceConfig{ResultTTL: time.Hour})

	queued := &models.ExportJob{Category: models.CategoryFiscalSupport, Year: 2024, Format: models.ExportFormatCSV, Status: models.ExportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), queued))
	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, queued.ID, queue.jobs[0].ID)

	result, err := exporter.Generate(context.Background(), queued)
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, repo.Update(context.Background(), queued.ID, models.ExportJobUpdate{
		Status:     models.ExportStatusFinished,
		StorageKey: &result.Key,
		ResultURL:  &result.URL,
		FinishedAt: &old,
	}))

	svc.CleanupExpired(context.Background())
	_, err = exporter.Open(context.Background(), result.Key)
	assert.Error(t, err)
}
