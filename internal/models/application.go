package models

import (
	"time"

	"github.com/lib/pq"
)

// ApplicationStatus values. An empty status means the application is still
// waiting for review; the column defaults to '' so a fresh submission never
// carries a status.
type ApplicationStatus string

const (
	ApplicationStatusWaiting  ApplicationStatus = ""
	ApplicationStatusAccepted ApplicationStatus = "accepted"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Application ties a student to a posting with one answer per posting
// question. Applications are never deleted; deleting a posting leaves its
// applications in place without a matching job.
type Application struct {
	ID              string            `db:"id" json:"id"`
	JobID           string            `db:"job_id" json:"job_id"`
	ApplicantUserID string            `db:"applicant_user_id" json:"applicant_user_id"`
	Name            string            `db:"name" json:"name"`
	Email           string            `db:"email" json:"email"`
	Age             int               `db:"age" json:"age"`
	Address         string            `db:"address" json:"address"`
	Phone           string            `db:"phone" json:"phone"`
	Skills          string            `db:"skills" json:"skills"`
	Answers         pq.StringArray    `db:"answers" json:"answers"`
	Status          ApplicationStatus `db:"status" json:"status,omitempty"`
	AppliedAt       time.Time         `db:"applied_at" json:"applied_at"`
}

// StatusLabel renders the waiting default the way the board displays it.
func (a *Application) StatusLabel() string {
	if a.Status == ApplicationStatusWaiting {
		return "waiting"
	}
	return string(a.Status)
}

// ApplicationWithJob enriches an application with the referenced posting's
// title. JobTitle stays empty when the posting no longer exists.
type ApplicationWithJob struct {
	Application
	JobTitle string `json:"job_title,omitempty"`
}
