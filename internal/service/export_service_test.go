package service

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/jobs"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/storage"
)

type exportAppsStub struct {
	applications []models.Application
}

func (s exportAppsStub) ListAll(ctx context.Context) ([]models.Application, error) {
	return s.applications, nil
}

func (s exportAppsStub) ListByPostingIDs(ctx context.Context, postingIDs []string) ([]models.Application, error) {
	var out []models.Application
	for _, a := range s.applications {
		for _, id := range postingIDs {
			if a.JobID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

type exportPostingsStub struct {
	byID map[string]*models.Posting
}

func (s exportPostingsStub) FindByID(ctx context.Context, id string) (*models.Posting, error) {
	posting, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return posting, nil
}

func newExportServiceForTest(t *testing.T, postings exportPostingsStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	apps := exportAppsStub{applications: []models.Application{
		{ID: "a1", JobID: "p1", Name: "Kid", Email: "kid@example.com", Age: 16, Phone: "555-0100", Address: "1 Main St", Skills: "Friendly", Answers: []string{"I love coffee", "Weekends"}, AppliedAt: time.Now()},
		{ID: "a2", JobID: "p2", Name: "Other", Email: "other@example.com", Age: 17, Phone: "555-0101", Address: "2 Main St", Skills: "Prompt", Answers: []string{"Because"}, Status: models.ApplicationStatusAccepted, AppliedAt: time.Now()},
	}}
	svc := NewExportService(apps, postings, store, signer, &mockAuditLog{}, validator.New(), zap.NewNop(), ExportServiceConfig{
		APIPrefix:         "/api/v1",
		SignedURLTTL:      time.Hour,
		WorkerConcurrency: 1,
		WorkerRetries:     1,
	})
	return svc, store
}

func TestExportServiceCSVRoundTrip(t *testing.T) {
	postings := exportPostingsStub{byID: map[string]*models.Posting{"p1": {ID: "p1", Title: "Barista"}}}
	svc, _ := newExportServiceForTest(t, postings)

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	job, err := svc.Request(ctx, ExportRequest{Format: models.ExportFormatCSV}, "admin1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)

	require.Eventually(t, func() bool {
		current, err := svc.Get(job.ID)
		return err == nil && current.Status == models.ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	current, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Contains(t, current.DownloadURL, "/api/v1/exports/download?token=")
	assert.NotEmpty(t, current.Token)

	path, err := svc.ResolveDownload(current.Token)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceCSVCarriesAnswersAndJobTitle(t *testing.T) {
	postings := exportPostingsStub{byID: map[string]*models.Posting{"p1": {ID: "p1", Title: "Barista"}}}
	svc, store := newExportServiceForTest(t, postings)

	ctx := context.Background()
	svc.mu.Lock()
	svc.byID["job-1"] = &models.ExportJob{ID: "job-1", Format: models.ExportFormatCSV, Status: models.ExportStatusQueued, RequestedBy: "admin1", CreatedAt: time.Now().UTC()}
	svc.mu.Unlock()

	require.NoError(t, svc.process(ctx, jobs.Job{ID: "job-1", Type: "applications_export"}))
	job, err := svc.Get("job-1")
	require.NoError(t, err)

	data, err := os.ReadFile(store.Path(job.FilePath))
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, "Job")
	assert.Contains(t, body, "Answers")
	assert.Contains(t, body, "I love coffee | Weekends")
	assert.Contains(t, body, "Barista")

	// The p2 application survived its posting; its Job cell stays blank.
	assert.Contains(t, body, ",2 Main St,Prompt,,Because,accepted,")
}

func TestExportServicePDFSinglePosting(t *testing.T) {
	postings := exportPostingsStub{byID: map[string]*models.Posting{"p1": {ID: "p1", Title: "Barista"}}}
	svc, store := newExportServiceForTest(t, postings)

	ctx := context.Background()
	postingID := "p1"
	svc.mu.Lock()
	svc.byID["job-1"] = &models.ExportJob{ID: "job-1", PostingID: &postingID, Format: models.ExportFormatPDF, Status: models.ExportStatusQueued, RequestedBy: "admin1", CreatedAt: time.Now().UTC()}
	svc.mu.Unlock()

	err := svc.process(ctx, jobs.Job{ID: "job-1", Type: "applications_export"})
	require.NoError(t, err)

	job, err := svc.Get("job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusCompleted, job.Status)

	info, err := os.Stat(store.Path(job.FilePath))
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestExportServiceRequestUnknownPosting(t *testing.T) {
	svc, _ := newExportServiceForTest(t, exportPostingsStub{byID: map[string]*models.Posting{}})

	ctx := context.Background()
	svc.Start(ctx)
	defer svc.Stop()

	ghost := "ghost"
	_, err := svc.Request(ctx, ExportRequest{PostingID: &ghost, Format: models.ExportFormatCSV}, "admin1", models.LoginRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestExportServiceResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _ := newExportServiceForTest(t, exportPostingsStub{byID: map[string]*models.Posting{}})

	_, err := svc.ResolveDownload("not-a-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExportServiceSweepRemovesExpiredFiles(t *testing.T) {
	postings := exportPostingsStub{byID: map[string]*models.Posting{"p1": {ID: "p1", Title: "Barista"}}}
	svc, store := newExportServiceForTest(t, postings)
	svc.cfg.RetentionTTL = time.Hour

	ctx := context.Background()
	postingID := "p1"
	svc.mu.Lock()
	svc.byID["job-1"] = &models.ExportJob{ID: "job-1", PostingID: &postingID, Format: models.ExportFormatCSV, Status: models.ExportStatusQueued, RequestedBy: "admin1", CreatedAt: time.Now().UTC()}
	svc.mu.Unlock()

	require.NoError(t, svc.process(ctx, jobs.Job{ID: "job-1", Type: "applications_export"}))
	job, err := svc.Get("job-1")
	require.NoError(t, err)

	path := store.Path(job.FilePath)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	svc.sweepExpired()

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = svc.Get("job-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
