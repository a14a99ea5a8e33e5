package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
)

const applicationColumns = `id, job_id, applicant_user_id, name, email, age, address, phone, skills, answers, status, applied_at`

// ApplicationRepository provides database access for job applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository creates a new instance of ApplicationRepository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a new application. Status is persisted as the empty string
// so a fresh submission reads back as waiting.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	if application.AppliedAt.IsZero() {
		application.AppliedAt = time.Now().UTC()
	}

	const query = `INSERT INTO applications (id, job_id, applicant_user_id, name, email, age, address, phone, skills, answers, status, applied_at) VALUES (:id, :job_id, :applicant_user_id, :name, :email, :age, :address, :phone, :skills, :answers, :status, :applied_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// FindByID returns an application by identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1 LIMIT 1`, applicationColumns)
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find application by id: %w", err)
	}
	return &application, nil
}

// ListByApplicant returns all applications submitted by a user.
func (r *ApplicationRepository) ListByApplicant(ctx context.Context, userID string) ([]models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE applicant_user_id = $1 ORDER BY applied_at`, applicationColumns)
	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, userID); err != nil {
		return nil, fmt.Errorf("list applications by applicant: %w", err)
	}
	return applications, nil
}

// ListByPostingIDs returns all applications against the given posting id
// set. Callers must not pass an empty set; the service short-circuits that
// case before reaching the database.
func (r *ApplicationRepository) ListByPostingIDs(ctx context.Context, postingIDs []string) ([]models.Application, error) {
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM applications WHERE job_id IN (?) ORDER BY applied_at`, applicationColumns), postingIDs)
	if err != nil {
		return nil, fmt.Errorf("build posting id query: %w", err)
	}
	query = r.db.Rebind(query)

	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, fmt.Errorf("list applications by posting ids: %w", err)
	}
	return applications, nil
}

// ListAll returns every application on the board.
func (r *ApplicationRepository) ListAll(ctx context.Context) ([]models.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications ORDER BY applied_at`, applicationColumns)
	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return applications, nil
}

// UpdateStatus overwrites the review status. Last write wins; no history is
// kept.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	return nil
}
