package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
	"github.com/noah-isme/libstats-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T) (*ExportService, *submissionFixture) {
	t.Helper()
	f := newSubmissionFixture()
	a := f.years.add(1, 2024, true)
	b := f.years.add(2, 2024, true)
	f.records.names = map[int64]string{1: "Alpha Library", 2: "Beta Library"}
	f.records.put(a.ID, models.CategoryFiscalSupport, models.FieldValues{"grand_total": fp(1250.5)})
	f.records.put(b.ID, models.CategoryFiscalSupport, models.FieldValues{"grand_total": fp(99.25)})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewURLSigner("secret", time.Hour)
	aggregates := NewAggregateService(f.records, f.statuses, nil, 0, nil)
	svc := NewExportService(aggregates, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
	return svc, f
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-1", Category: models.CategoryFiscalSupport, Year: 2024, Format: models.ExportFormatCSV}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.True(t, strings.HasSuffix(result.Key, ".csv"))

	grant, err := svc.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "job-1", grant.JobID)
	assert.Equal(t, result.Key, grant.Key)

	body, err := svc.Open(context.Background(), result.Key)
	require.NoError(t, err)
	defer body.Close()
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	text := string(content)
	assert.Contains(t, text, "Institution,")
	assert.Contains(t, text, "Alpha Library")
	assert.Contains(t, text, "1250.50")
	assert.Contains(t, text, "Total (2 participants)")
	assert.Contains(t, text, "1349.75")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	job := &models.ExportJob{ID: "job-2", Category: models.CategoryFiscalSupport, Year: 2024, Format: models.ExportFormatPDF}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	body, err := svc.Open(context.Background(), result.Key)
	require.NoError(t, err)
	defer body.Close()
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "%PDF"))
}

func TestExportServiceGenerateRejectsUnknownInputs(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "x", Category: "bogus", Year: 2024, Format: models.ExportFormatCSV})
	assert.Error(t, err)
	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "x", Category: models.CategorySerials, Year: 2024, Format: "xlsx"})
	assert.Error(t, err)
}

func TestBuildDatasetLeavesUnreportedCellsEmpty(t *testing.T) {
	def, _ := models.LookupCategory(string(models.CategorySerials))
	dataset := BuildDataset(def, &models.Aggregate{
		Year:         2024,
		Participants: 1,
		Fields:       models.FieldValues{"grand_total": fp(3)},
		Institutions: []models.AggregateRow{{InstitutionName: "Alpha", Fields: models.FieldValues{"grand_total": fp(3)}}},
	})
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "", dataset.Rows[0][dataset.Columns[1].Key])
	assert.Equal(t, "3", dataset.Rows[0]["grand_total"])
	assert.Equal(t, "Institution", dataset.Columns[0].Label)
	assert.True(t, dataset.Columns[1].Numeric)
}
