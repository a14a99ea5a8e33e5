package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
)

const approvedPostingsCacheKey = "postings:approved"

type postingRepository interface {
	Create(ctx context.Context, posting *models.Posting) error
	FindByID(ctx context.Context, id string) (*models.Posting, error)
	ListApproved(ctx context.Context) ([]models.Posting, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]models.Posting, error)
	ListAll(ctx context.Context, filter models.PostingFilter) ([]models.Posting, error)
	Approve(ctx context.Context, id string, ts time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type postingsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type boardMetrics interface {
	RecordCacheOperation(hit bool)
	ObserveDBQuery(query string, duration time.Duration)
}

// CreatePostingRequest is the employer/admin payload for a new listing.
type CreatePostingRequest struct {
	Title            string   `json:"title" validate:"required"`
	Description      string   `json:"description" validate:"required"`
	Salary           *float64 `json:"salary" validate:"required"`
	Responsibilities []string `json:"responsibilities"`
	Skills           []string `json:"skills"`
	Questions        []string `json:"questions"`
}

// PostingService owns the posting lifecycle: creation behind the approval
// gate, role-scoped listings, admin approval and deletion.
type PostingService struct {
	repo      postingRepository
	cache     postingsCache
	audit     auditWriter
	metrics   boardMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewPostingService creates an instance of PostingService. Cache and metrics
// may be nil.
func NewPostingService(repo postingRepository, cache postingsCache, audit auditWriter, metrics boardMetrics, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *PostingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &PostingService{repo: repo, cache: cache, audit: audit, metrics: metrics, validator: validate, logger: logger, cacheTTL: cacheTTL}
}

// Create validates and persists a new posting owned by the caller. The
// posting starts unapproved and blank list entries are stripped before the
// write. Validation failures block before any store call.
func (s *PostingService) Create(ctx context.Context, ownerUserID string, req CreatePostingRequest, meta models.LoginRequest) (*models.Posting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid posting payload")
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and description must not be blank")
	}
	if *req.Salary < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "salary must be a non-negative number")
	}

	posting := &models.Posting{
		Title:            strings.TrimSpace(req.Title),
		Description:      strings.TrimSpace(req.Description),
		Salary:           *req.Salary,
		Responsibilities: stripBlank(req.Responsibilities),
		Skills:           stripBlank(req.Skills),
		Questions:        stripBlank(req.Questions),
		Approved:         false,
		OwnerUserID:      ownerUserID,
	}

	if err := s.repo.Create(ctx, posting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create posting")
	}

	s.invalidateBoard(ctx)
	s.writeAudit(ctx, ownerUserID, models.AuditActionPostingCreate, posting.ID, map[string]interface{}{"title": posting.Title}, meta)

	return posting, nil
}

// Get returns a posting. Unapproved postings are only visible to their
// owner or an admin; everyone else sees not-found rather than forbidden so
// pending listings do not leak their existence.
func (s *PostingService) Get(ctx context.Context, id string, viewer *models.JWTClaims) (*models.Posting, error) {
	posting, err := s.findPosting(ctx, id)
	if err != nil {
		return nil, err
	}

	if !posting.Approved {
		if viewer == nil || (viewer.Role != models.RoleAdmin && viewer.UserID != posting.OwnerUserID) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "posting not found")
		}
	}

	return posting, nil
}

// ListApproved returns the public board, served from cache when warm. Cache
// failures fall through to the database and never fail the request.
func (s *PostingService) ListApproved(ctx context.Context) ([]models.Posting, error) {
	if s.cache != nil {
		var cached []models.Posting
		if err := s.cache.Get(ctx, approvedPostingsCacheKey, &cached); err == nil {
			s.recordCache(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("approved postings cache read failed", zap.Error(err))
		}
		s.recordCache(false)
	}

	start := time.Now()
	postings, err := s.repo.ListApproved(ctx)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("postings_list_approved", time.Since(start))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved postings")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, approvedPostingsCacheKey, postings, s.cacheTTL); err != nil {
			s.logger.Warn("approved postings cache write failed", zap.Error(err))
		}
	}

	return postings, nil
}

// ListByOwner returns the caller's postings in every approval state.
func (s *PostingService) ListByOwner(ctx context.Context, ownerUserID string) ([]models.Posting, error) {
	postings, err := s.repo.ListByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list postings by owner")
	}
	return postings, nil
}

// ListAll returns every posting, optionally narrowed to pending or approved.
func (s *PostingService) ListAll(ctx context.Context, filter models.PostingFilter) ([]models.Posting, error) {
	postings, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list postings")
	}
	return postings, nil
}

// Approve opens the approval gate. Approving an already-approved posting is
// a successful no-op.
func (s *PostingService) Approve(ctx context.Context, id string, actorID string, meta models.LoginRequest) (*models.Posting, error) {
	posting, err := s.findPosting(ctx, id)
	if err != nil {
		return nil, err
	}

	if !posting.Approved {
		if _, err := s.repo.Approve(ctx, id, time.Now().UTC()); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve posting")
		}
		posting.Approved = true
		s.invalidateBoard(ctx)
		s.writeAudit(ctx, actorID, models.AuditActionPostingApprove, id, map[string]interface{}{"approved": true}, meta)
	}

	return posting, nil
}

// Delete removes a posting. Applications pointing at it are left orphaned;
// read models treat the dangling job id as missing.
func (s *PostingService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	posting, err := s.findPosting(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete posting")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "posting not found")
	}

	s.invalidateBoard(ctx)
	s.writeAudit(ctx, actorID, models.AuditActionPostingDelete, id, map[string]interface{}{"title": posting.Title}, meta)

	return nil
}

func (s *PostingService) findPosting(ctx context.Context, id string) (*models.Posting, error) {
	posting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load posting")
	}
	return posting, nil
}

func (s *PostingService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit)
	}
}

func (s *PostingService) invalidateBoard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, approvedPostingsCacheKey); err != nil {
		s.logger.Warn("failed to invalidate approved postings cache", zap.Error(err))
	}
}

func (s *PostingService) writeAudit(ctx context.Context, actorID, action, resourceID string, payload map[string]interface{}, meta models.LoginRequest) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "postings",
		ResourceID: &resourceID,
		NewValues:  body,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record posting audit log", zap.Error(err))
	}
}

func stripBlank(values []string) []string {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
