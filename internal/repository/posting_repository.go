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

const postingColumns = `id, title, description, salary, responsibilities, skills, questions, approved, owner_user_id, created_at, updated_at`

// PostingRepository provides database access for job postings.
type PostingRepository struct {
	db *sqlx.DB
}

// NewPostingRepository creates a new instance of PostingRepository.
func NewPostingRepository(db *sqlx.DB) *PostingRepository {
	return &PostingRepository{db: db}
}

// Create inserts a new posting.
func (r *PostingRepository) Create(ctx context.Context, posting *models.Posting) error {
	if posting.ID == "" {
		posting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if posting.CreatedAt.IsZero() {
		posting.CreatedAt = now
	}
	posting.UpdatedAt = now

	const query = `INSERT INTO postings (id, title, description, salary, responsibilities, skills, questions, approved, owner_user_id, created_at, updated_at) VALUES (:id, :title, :description, :salary, :responsibilities, :skills, :questions, :approved, :owner_user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, posting); err != nil {
		return fmt.Errorf("create posting: %w", err)
	}
	return nil
}

// FindByID returns a posting by identifier.
func (r *PostingRepository) FindByID(ctx context.Context, id string) (*models.Posting, error) {
	query := fmt.Sprintf(`SELECT %s FROM postings WHERE id = $1 LIMIT 1`, postingColumns)
	var posting models.Posting
	if err := r.db.GetContext(ctx, &posting, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find posting by id: %w", err)
	}
	return &posting, nil
}

// ListApproved returns every posting visible on the public board.
func (r *PostingRepository) ListApproved(ctx context.Context) ([]models.Posting, error) {
	query := fmt.Sprintf(`SELECT %s FROM postings WHERE approved = TRUE ORDER BY created_at`, postingColumns)
	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, query); err != nil {
		return nil, fmt.Errorf("list approved postings: %w", err)
	}
	return postings, nil
}

// ListByOwner returns a user's postings regardless of approval state.
func (r *PostingRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]models.Posting, error) {
	query := fmt.Sprintf(`SELECT %s FROM postings WHERE owner_user_id = $1 ORDER BY created_at`, postingColumns)
	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, query, ownerUserID); err != nil {
		return nil, fmt.Errorf("list postings by owner: %w", err)
	}
	return postings, nil
}

// ListAll returns every posting, optionally narrowed by approval state.
func (r *PostingRepository) ListAll(ctx context.Context, filter models.PostingFilter) ([]models.Posting, error) {
	query := fmt.Sprintf(`SELECT %s FROM postings`, postingColumns)
	var args []interface{}
	if filter.Approved != nil {
		query += ` WHERE approved = $1`
		args = append(args, *filter.Approved)
	}
	query += ` ORDER BY created_at`

	var postings []models.Posting
	if err := r.db.SelectContext(ctx, &postings, query, args...); err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	return postings, nil
}

// Approve flips the approval gate. Re-approving is a plain no-op UPDATE.
func (r *PostingRepository) Approve(ctx context.Context, id string, ts time.Time) (bool, error) {
	const query = `UPDATE postings SET approved = TRUE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, ts)
	if err != nil {
		return false, fmt.Errorf("approve posting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve posting rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a posting. Applications referencing it are left in place.
func (r *PostingRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM postings WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete posting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete posting rows: %w", err)
	}
	return affected > 0, nil
}
