package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrJobNotFound = errors.New("import job not found")

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// CreateJob opens a job in RUNNING state; FinishJob stamps the terminal
// status once every row has been processed, so an interrupted import never
// masquerades as a finished one.
func (s *Store) CreateJob(ctx context.Context, workspaceID, uploadedBy, fileName, mode string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO csv_import_jobs (workspace_id, uploaded_by, file_name, status, mode)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		workspaceID, uploadedBy, fileName, JobStatusRunning, mode).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create import job: %w", err)
	}
	return id, nil
}

func (s *Store) FinishJob(ctx context.Context, jobID, mode string, total, succeeded, failed int) error {
	status := JobStatusPreview
	if mode == ModeCommit {
		status = JobStatusCompleted
	}
	_, err := s.Pool.Exec(ctx,
		`UPDATE csv_import_jobs SET status = $1, total_rows = $2, success_rows = $3, failed_rows = $4 WHERE id = $5`,
		status, total, succeeded, failed, jobID)
	if err != nil {
		return fmt.Errorf("finish import job: %w", err)
	}
	return nil
}

func (s *Store) AddRow(ctx context.Context, jobID string, row RowResult) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("encode row data: %w", err)
	}
	var errMsg *string
	if row.Error != "" {
		errMsg = &row.Error
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO csv_import_rows (job_id, row_number, success, error_msg, row_data)
		 VALUES ($1, $2, $3, $4, $5)`,
		jobID, row.RowNumber, row.Success, errMsg, data)
	if err != nil {
		return fmt.Errorf("record import row: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, workspaceID, jobID string) (Job, error) {
	var job Job
	err := s.Pool.QueryRow(ctx,
		`SELECT id, uploaded_by, file_name, total_rows, success_rows, failed_rows, status, mode, created_at
		 FROM csv_import_jobs WHERE workspace_id = $1 AND id = $2`,
		workspaceID, jobID).Scan(&job.ID, &job.UploadedBy, &job.FileName, &job.TotalRows,
		&job.SuccessRows, &job.FailedRows, &job.Status, &job.Mode, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, workspaceID string, limit, offset int) ([]Job, int, error) {
	var total int
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM csv_import_jobs WHERE workspace_id = $1", workspaceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import jobs: %w", err)
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT id, uploaded_by, file_name, total_rows, success_rows, failed_rows, status, mode, created_at
		 FROM csv_import_jobs WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		workspaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.UploadedBy, &job.FileName, &job.TotalRows,
			&job.SuccessRows, &job.FailedRows, &job.Status, &job.Mode, &job.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

func (s *Store) ListRows(ctx context.Context, workspaceID, jobID string, failedOnly bool) ([]RowResult, error) {
	if _, err := s.GetJob(ctx, workspaceID, jobID); err != nil {
		return nil, err
	}

	query := `SELECT row_number, success, error_msg, row_data FROM csv_import_rows WHERE job_id = $1`
	if failedOnly {
		query += " AND success = false"
	}
	query += " ORDER BY row_number"

	rows, err := s.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list import rows: %w", err)
	}
	defer rows.Close()

	results := make([]RowResult, 0)
	for rows.Next() {
		var row RowResult
		var errMsg *string
		var data []byte
		if err := rows.Scan(&row.RowNumber, &row.Success, &errMsg, &data); err != nil {
			return nil, fmt.Errorf("scan import row: %w", err)
		}
		if errMsg != nil {
			row.Error = *errMsg
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &row.Data); err != nil {
				return nil, fmt.Errorf("decode row data: %w", err)
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
