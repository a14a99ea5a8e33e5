package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/export"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/jobs"
	"github.com/ShouryaBatra/homestead-careers-api/pkg/storage"
)

type exportApplicationReader interface {
	ListAll(ctx context.Context) ([]models.Application, error)
	ListByPostingIDs(ctx context.Context, postingIDs []string) ([]models.Application, error)
}

type exportPostingReader interface {
	FindByID(ctx context.Context, id string) (*models.Posting, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportRequest queues an export of applications, optionally narrowed to a
// single posting.
type ExportRequest struct {
	PostingID *string             `json:"posting_id,omitempty"`
	Format    models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportServiceConfig tunes export behaviour. RetentionTTL of zero disables
// the background file sweep.
type ExportServiceConfig struct {
	APIPrefix         string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	RetentionTTL      time.Duration
}

// ExportService renders application exports asynchronously on a worker
// queue and hands out signed download tokens. Jobs live in memory only; a
// restart forgets them, which matches the throwaway nature of the files.
type ExportService struct {
	applications exportApplicationReader
	postings     exportPostingReader
	storage      exportFileStorage
	signer       *storage.SignedURLSigner
	audit        auditWriter
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          ExportServiceConfig

	queue *jobs.Queue

	mu    sync.RWMutex
	byID  map[string]*models.ExportJob
	csv   csvRenderer
	pdf   pdfRenderer
}

// NewExportService constructs an ExportService with its own worker queue.
func NewExportService(applications exportApplicationReader, postings exportPostingReader, fileStorage exportFileStorage, signer *storage.SignedURLSigner, audit auditWriter, validate *validator.Validate, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &ExportService{
		applications: applications,
		postings:     postings,
		storage:      fileStorage,
		signer:       signer,
		audit:        audit,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		byID:         make(map[string]*models.ExportJob),
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
	}
	s.queue = jobs.NewQueue("exports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start begins background processing and, when retention is configured, a
// periodic sweep of expired export files.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.cfg.RetentionTTL > 0 {
		go s.sweepLoop(ctx)
	}
}

// Stop drains the worker queue.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request validates and queues a new export job.
func (s *ExportService) Request(ctx context.Context, req ExportRequest, actorID string, meta models.LoginRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	if req.PostingID != nil {
		if _, err := s.postings.FindByID(ctx, *req.PostingID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "posting not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load posting")
		}
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		PostingID:   req.PostingID,
		Format:      req.Format,
		Status:      models.ExportStatusQueued,
		RequestedBy: actorID,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.byID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "applications_export"}); err != nil {
		s.mu.Lock()
		delete(s.byID, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionExportRequest,
			Resource:   "exports",
			ResourceID: &job.ID,
			NewValues:  []byte(fmt.Sprintf(`{"format":%q}`, job.Format)),
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record export audit log", zap.Error(err))
		}
	}

	return s.snapshot(job.ID), nil
}

// Get returns the current state of an export job.
func (s *ExportService) Get(id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	return job, nil
}

// ResolveDownload validates a signed token and returns the stored file path.
func (s *ExportService) ResolveDownload(token string) (string, error) {
	exportID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}

	job := s.snapshot(exportID)
	if job == nil || job.Status != models.ExportStatusCompleted || job.FilePath != relPath {
		return "", appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}

	return s.storage.Path(relPath), nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	s.setStatus(job.ID, models.ExportStatusProcessing, "")

	stored := s.snapshot(job.ID)
	if stored == nil {
		return fmt.Errorf("export %s unknown", job.ID)
	}

	dataset, title, err := s.buildDataset(ctx, stored)
	if err != nil {
		s.setStatus(job.ID, models.ExportStatusFailed, err.Error())
		return err
	}

	var payload []byte
	switch stored.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", stored.Format)
	}
	if err != nil {
		s.setStatus(job.ID, models.ExportStatusFailed, err.Error())
		return err
	}

	filename := fmt.Sprintf("applications/%s-%s.%s", time.Now().UTC().Format("20060102-150405"), job.ID[:min(8, len(job.ID))], stored.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.setStatus(job.ID, models.ExportStatusFailed, err.Error())
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.setStatus(job.ID, models.ExportStatusFailed, err.Error())
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if j, ok := s.byID[job.ID]; ok {
		j.Status = models.ExportStatusCompleted
		j.FilePath = relPath
		j.Token = token
		j.DownloadURL = fmt.Sprintf("%s/exports/download?token=%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
		j.CompletedAt = &now
		j.ExpiresAt = &expiresAt
		j.Error = ""
	}
	s.mu.Unlock()

	return nil
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	var applications []models.Application
	var err error
	title := "All applications"
	titles := make(map[string]string)

	if job.PostingID != nil {
		posting, perr := s.postings.FindByID(ctx, *job.PostingID)
		if perr != nil {
			return export.Dataset{}, "", fmt.Errorf("load posting: %w", perr)
		}
		title = fmt.Sprintf("Applications for %s", posting.Title)
		titles[posting.ID] = posting.Title
		applications, err = s.applications.ListByPostingIDs(ctx, []string{posting.ID})
	} else {
		applications, err = s.applications.ListAll(ctx)
	}
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load applications: %w", err)
	}

	// Titles for the Job column. Orphaned applications keep a blank cell,
	// matching the enrichment read-model.
	for _, application := range applications {
		if _, seen := titles[application.JobID]; seen {
			continue
		}
		posting, perr := s.postings.FindByID(ctx, application.JobID)
		if perr != nil {
			if errors.Is(perr, sql.ErrNoRows) {
				titles[application.JobID] = ""
				continue
			}
			return export.Dataset{}, "", fmt.Errorf("load posting %s: %w", application.JobID, perr)
		}
		titles[application.JobID] = posting.Title
	}

	dataset := export.Dataset{
		Headers: []string{"Applicant", "Email", "Age", "Phone", "Address", "Skills", "Job", "Answers", "Status", "Applied At"},
	}
	for _, application := range applications {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Applicant":  application.Name,
			"Email":      application.Email,
			"Age":        strconv.Itoa(application.Age),
			"Phone":      application.Phone,
			"Address":    application.Address,
			"Skills":     application.Skills,
			"Job":        titles[application.JobID],
			"Answers":    strings.Join(application.Answers, " | "),
			"Status":     application.StatusLabel(),
			"Applied At": application.AppliedAt.Format(time.RFC3339),
		})
	}

	return dataset, title, nil
}

func (s *ExportService) sweepLoop(ctx context.Context) {
	interval := s.cfg.RetentionTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

// sweepExpired deletes export files past the retention window and drops
// their job records so stale download tokens stop resolving.
func (s *ExportService) sweepExpired() {
	deleted, err := s.storage.CleanupOlderThan(s.cfg.RetentionTTL)
	if err != nil {
		s.logger.Warn("export retention sweep failed", zap.Error(err))
		return
	}
	if len(deleted) == 0 {
		return
	}

	removed := make(map[string]struct{}, len(deleted))
	for _, rel := range deleted {
		removed[rel] = struct{}{}
	}

	s.mu.Lock()
	for id, job := range s.byID {
		if _, gone := removed[job.FilePath]; gone && job.FilePath != "" {
			delete(s.byID, id)
		}
	}
	s.mu.Unlock()

	s.logger.Info("export retention sweep removed files", zap.Int("count", len(deleted)))
}

func (s *ExportService) setStatus(id string, status models.ExportStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.byID[id]; ok {
		job.Status = status
		job.Error = errMsg
	}
}

func (s *ExportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.byID[id]
	if !ok {
		return nil
	}
	clone := *job
	return &clone
}
