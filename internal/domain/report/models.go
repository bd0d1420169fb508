package report

import "time"

const TypeWeeklyDigest = "WEEKLY_DIGEST"

// Snapshot is the workspace-wide task status breakdown a digest or dashboard
// is built from.
type Snapshot struct {
	Pending   int `json:"pending"`
	DueSoon   int `json:"dueSoon"`
	Overdue   int `json:"overdue"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
}

// AtRiskTask is a pending task surfaced in the digest: overdue, or due within
// the look-ahead window.
type AtRiskTask struct {
	ComplianceID string     `json:"complianceId"`
	Title        string     `json:"title"`
	EntityName   string     `json:"entityName"`
	OwnerName    string     `json:"ownerName"`
	OwnerEmail   string     `json:"ownerEmail"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	Overdue      bool       `json:"overdue"`
}

type Run struct {
	ID          string    `json:"id"`
	ReportType  string    `json:"reportType"`
	Success     bool      `json:"success"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	ErrorMsg    *string   `json:"errorMsg,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ExportRow is one line of the task export (CSV and PDF share it).
type ExportRow struct {
	ComplianceID string
	Title        string
	EntityName   string
	Department   string
	Law          string
	OwnerEmail   string
	Status       string
	DueDate      *time.Time
}
