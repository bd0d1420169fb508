package importer

import "time"

const (
	ModePreview = "PREVIEW"
	ModeCommit  = "COMMIT"
)

const (
	JobStatusRunning   = "RUNNING"
	JobStatusPreview   = "PREVIEW"
	JobStatusCompleted = "COMPLETED"
)

type Job struct {
	ID          string    `json:"id"`
	UploadedBy  string    `json:"uploadedBy"`
	FileName    string    `json:"fileName"`
	TotalRows   int       `json:"totalRows"`
	SuccessRows int       `json:"successRows"`
	FailedRows  int       `json:"failedRows"`
	Status      string    `json:"status"`
	Mode        string    `json:"mode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RowResult is the per-row outcome persisted with the job.
type RowResult struct {
	RowNumber int               `json:"rowNumber"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Data      map[string]string `json:"data"`
}

// Result summarizes one import run. Rows carries at most the preview limit;
// the full per-row record lives with the job.
type Result struct {
	JobID     string      `json:"jobId"`
	Mode      string      `json:"mode"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Rows      []RowResult `json:"rows"`
	Truncated bool        `json:"truncated"`
}
