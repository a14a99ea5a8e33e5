package models

import (
	"time"

	"github.com/lib/pq"
)

// Posting is a job listing created by an employer or admin. It stays
// invisible to students until an admin flips Approved.
type Posting struct {
	ID               string         `db:"id" json:"id"`
	Title            string         `db:"title" json:"title"`
	Description      string         `db:"description" json:"description"`
	Salary           float64        `db:"salary" json:"salary"`
	Responsibilities pq.StringArray `db:"responsibilities" json:"responsibilities"`
	Skills           pq.StringArray `db:"skills" json:"skills"`
	Questions        pq.StringArray `db:"questions" json:"questions"`
	Approved         bool           `db:"approved" json:"approved"`
	OwnerUserID      string         `db:"owner_user_id" json:"owner_user_id"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// PostingFilter narrows admin listings by approval state.
type PostingFilter struct {
	Approved *bool
}
