package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/pkg/export"
	"github.com/noah-isme/libstats-api/pkg/storage"
)

type aggregateCompiler interface {
	compile(ctx context.Context, year int, def models.CategoryDefinition) (*models.Aggregate, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	Key       string
	Token     string
	URL       string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService renders aggregate datasets and persists them in the configured store.
type ExportService struct {
	aggregates aggregateCompiler
	store      storage.Store
	signer     *storage.URLSigner
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(aggregates *AggregateService, store storage.Store, signer *storage.URLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		aggregates: aggregates,
		store:      store,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Generate renders the job's aggregate, stores it and signs a download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	def, ok := models.LookupCategory(string(job.Category))
	if !ok {
		return nil, fmt.Errorf("unknown category %s", job.Category)
	}
	format, err := export.ParseFormat(string(job.Format))
	if err != nil {
		return nil, err
	}
	renderer, err := export.RendererFor(format)
	if err != nil {
		return nil, err
	}

	aggregate, err := s.aggregates.compile(ctx, job.Year, def)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(BuildDataset(def, aggregate))
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", format, err)
	}

	key, err := s.store.Save(ctx, s.buildFilename(job, renderer.Extension()), payload, renderer.ContentType())
	if err != nil {
		return nil, fmt.Errorf("store export: %w", err)
	}
	token, grant, err := s.signer.Sign(job.ID, key)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Key:       key,
		Token:     token,
		URL:       s.downloadURL(token),
		Format:    job.Format,
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Verify validates a download token.
func (s *ExportService) Verify(token string) (storage.Grant, error) {
	return s.signer.Verify(token)
}

// Open returns a reader for a stored export.
func (s *ExportService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.store.Open(ctx, key)
}

// Delete removes a stored export.
func (s *ExportService) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.store.CleanupOlderThan(ctx, ttl)
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/export/%s", prefix, token)
}

func (s *ExportService) buildFilename(job *models.ExportJob, extension string) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%d_%s_%s.%s", job.Category, job.Year, timestamp, sanitizeFilename(job.ID), extension)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// BuildDataset lays out an aggregate as one row per eligible institution followed by a total row.
func BuildDataset(def models.CategoryDefinition, aggregate *models.Aggregate) export.Dataset {
	fields := def.OutputFields()
	columns := make([]export.Column, 0, len(fields)+1)
	columns = append(columns, export.Column{Key: "institution", Label: "Institution"})
	for _, field := range fields {
		columns = append(columns, export.Column{Key: field, Label: field, Numeric: true})
	}

	rows := make([]map[string]string, 0, len(aggregate.Institutions)+1)
	for _, inst := range aggregate.Institutions {
		row := map[string]string{"institution": inst.InstitutionName}
		for _, field := range fields {
			row[field] = formatValue(inst.Fields.Get(field), def.Monetary)
		}
		rows = append(rows, row)
	}
	total := map[string]string{"institution": fmt.Sprintf("Total (%d participants)", aggregate.Participants)}
	for _, field := range fields {
		total[field] = formatValue(aggregate.Fields.Get(field), def.Monetary)
	}
	rows = append(rows, total)

	return export.Dataset{
		Title:   fmt.Sprintf("%s %d", def.Label, aggregate.Year),
		Columns: columns,
		Rows:    rows,
	}
}

// formatValue renders nil as an empty cell so "not reported" stays distinct from zero.
func formatValue(value *float64, monetary bool) string {
	if value == nil {
		return ""
	}
	if monetary {
		return strconv.FormatFloat(*value, 'f', 2, 64)
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}
