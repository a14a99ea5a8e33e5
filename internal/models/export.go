package models

import "time"

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus tracks an export job through the worker queue.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "queued"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// ExportJob captures an admin request to export applications. PostingID nil
// means all applications across the board.
type ExportJob struct {
	ID          string       `json:"id"`
	PostingID   *string      `json:"posting_id,omitempty"`
	Format      ExportFormat `json:"format"`
	Status      ExportStatus `json:"status"`
	RequestedBy string       `json:"requested_by"`
	FilePath    string       `json:"-"`
	Token       string       `json:"token,omitempty"`
	DownloadURL string       `json:"download_url,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}
