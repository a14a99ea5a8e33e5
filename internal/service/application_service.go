package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
	appErrors "github.com/ShouryaBatra/homestead-careers-api/pkg/errors"
)

type applicationRepository interface {
	Create(ctx context.Context, application *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ListByApplicant(ctx context.Context, userID string) ([]models.Application, error)
	ListByPostingIDs(ctx context.Context, postingIDs []string) ([]models.Application, error)
	ListAll(ctx context.Context) ([]models.Application, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error
}

type applicationPostingReader interface {
	FindByID(ctx context.Context, id string) (*models.Posting, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]models.Posting, error)
}

// SubmitApplicationRequest is the student payload for applying to a posting.
type SubmitApplicationRequest struct {
	JobID   string   `json:"job_id" validate:"required"`
	Name    string   `json:"name" validate:"required"`
	Email   string   `json:"email" validate:"required,email"`
	Age     int      `json:"age" validate:"required,gt=0"`
	Address string   `json:"address" validate:"required"`
	Phone   string   `json:"phone" validate:"required"`
	Skills  string   `json:"skills" validate:"required"`
	Answers []string `json:"answers"`
}

// SetStatusRequest accepts or rejects an application.
type SetStatusRequest struct {
	Status models.ApplicationStatus `json:"status" validate:"required,oneof=accepted rejected"`
}

// ApplicationService owns the application lifecycle: submission against an
// existing posting, the per-role read models, and review decisions.
type ApplicationService struct {
	repo      applicationRepository
	postings  applicationPostingReader
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicationService creates an instance of ApplicationService.
func NewApplicationService(repo applicationRepository, postings applicationPostingReader, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApplicationService{repo: repo, postings: postings, audit: audit, validator: validate, logger: logger}
}

// Submit validates and persists a student application. The referenced
// posting must exist, every personal field and every answer must be
// non-blank, and the answer count must match the posting's question count.
// Nothing stops a student applying to the same posting twice; reviewers
// see every submission.
func (s *ApplicationService) Submit(ctx context.Context, applicantID string, req SubmitApplicationRequest, meta models.LoginRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if err := validatePersonalInfo(req); err != nil {
		return nil, err
	}

	posting, err := s.postings.FindByID(ctx, req.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "posting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load posting")
	}

	if len(req.Answers) != len(posting.Questions) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("expected %d answers, got %d", len(posting.Questions), len(req.Answers)))
	}
	for i, answer := range req.Answers {
		if strings.TrimSpace(answer) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("answer %d must not be blank", i+1))
		}
	}

	application := &models.Application{
		JobID:           posting.ID,
		ApplicantUserID: applicantID,
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Age:             req.Age,
		Address:         strings.TrimSpace(req.Address),
		Phone:           strings.TrimSpace(req.Phone),
		Skills:          strings.TrimSpace(req.Skills),
		Answers:         append([]string(nil), req.Answers...),
		Status:          models.ApplicationStatusWaiting,
	}

	if err := s.repo.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	s.writeAudit(ctx, applicantID, models.AuditActionApplicationSubmit, application.ID, map[string]interface{}{"job_id": posting.ID}, meta)

	return application, nil
}

// ListByApplicant returns the caller's applications, each carrying the
// referenced posting's title. A deleted posting leaves the title empty
// instead of failing the whole list.
func (s *ApplicationService) ListByApplicant(ctx context.Context, applicantID string) ([]models.ApplicationWithJob, error) {
	applications, err := s.repo.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return s.enrichWithTitles(ctx, applications), nil
}

// ListForReviewer returns the applications a reviewer may see: everything
// for an admin, and only applications against owned postings for an
// employer. An employer with no postings gets an empty result without the
// store ever seeing an empty id set.
func (s *ApplicationService) ListForReviewer(ctx context.Context, reviewer *models.JWTClaims) ([]models.ApplicationWithJob, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}

	var applications []models.Application
	var err error

	switch reviewer.Role {
	case models.RoleAdmin:
		applications, err = s.repo.ListAll(ctx)
	case models.RoleEmployer:
		var postings []models.Posting
		postings, err = s.postings.ListByOwner(ctx, reviewer.UserID)
		if err != nil {
			break
		}
		if len(postings) == 0 {
			return []models.ApplicationWithJob{}, nil
		}
		ids := make([]string, len(postings))
		for i, p := range postings {
			ids[i] = p.ID
		}
		applications, err = s.repo.ListByPostingIDs(ctx, ids)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role may not review applications")
	}

	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications for review")
	}

	return s.enrichWithTitles(ctx, applications), nil
}

// SetStatus records an accept/reject decision. Employers may only decide on
// applications targeting postings they own; admins may decide on any,
// including orphans whose posting has been deleted. The write overwrites
// whatever status came before.
func (s *ApplicationService) SetStatus(ctx context.Context, id string, req SetStatusRequest, reviewer *models.JWTClaims, meta models.LoginRequest) (*models.Application, error) {
	if reviewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be accepted or rejected")
	}

	application, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	if reviewer.Role != models.RoleAdmin {
		posting, err := s.postings.FindByID(ctx, application.JobID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "posting no longer exists")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load posting")
		}
		if posting.OwnerUserID != reviewer.UserID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "application targets another employer's posting")
		}
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}
	application.Status = req.Status

	s.writeAudit(ctx, reviewer.UserID, models.AuditActionApplicationStatus, id, map[string]interface{}{"status": req.Status}, meta)

	return application, nil
}

// enrichWithTitles attaches the referenced posting's title to each
// application. A missing posting skips enrichment for that one record.
func (s *ApplicationService) enrichWithTitles(ctx context.Context, applications []models.Application) []models.ApplicationWithJob {
	enriched := make([]models.ApplicationWithJob, 0, len(applications))
	titles := make(map[string]string)

	for _, application := range applications {
		item := models.ApplicationWithJob{Application: application}
		if title, ok := titles[application.JobID]; ok {
			item.JobTitle = title
		} else {
			posting, err := s.postings.FindByID(ctx, application.JobID)
			if err != nil {
				if !errors.Is(err, sql.ErrNoRows) {
					s.logger.Warn("failed to resolve posting title", zap.String("job_id", application.JobID), zap.Error(err))
				}
				titles[application.JobID] = ""
			} else {
				titles[application.JobID] = posting.Title
				item.JobTitle = posting.Title
			}
		}
		enriched = append(enriched, item)
	}

	return enriched
}

func (s *ApplicationService) writeAudit(ctx context.Context, actorID, action, resourceID string, payload map[string]interface{}, meta models.LoginRequest) {
	if s.audit == nil {
		return
	}
	body, _ := json.Marshal(payload)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "applications",
		ResourceID: &resourceID,
		NewValues:  body,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record application audit log", zap.Error(err))
	}
}

func validatePersonalInfo(req SubmitApplicationRequest) error {
	fields := map[string]string{
		"name":    req.Name,
		"email":   req.Email,
		"address": req.Address,
		"phone":   req.Phone,
		"skills":  req.Skills,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return appErrors.Clone(appErrors.ErrValidation, name+" must not be blank")
		}
	}
	return nil
}
