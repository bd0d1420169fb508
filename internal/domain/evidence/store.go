package evidence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// taskInfo is the slice of task state evidence operations need: ownership,
// lifecycle status, and the names that build the external folder path.
type taskInfo struct {
	OwnerID      string
	Status       string
	ComplianceID string
	EntityName   string
}

func (s *Store) taskInfo(ctx context.Context, workspaceID, taskID string) (taskInfo, error) {
	var info taskInfo
	err := s.Pool.QueryRow(ctx,
		`SELECT t.owner_id, t.status, t.compliance_id, e.name
		 FROM compliance_tasks t
		 JOIN entities e ON e.id = t.entity_id
		 WHERE t.workspace_id = $1 AND t.id = $2`,
		workspaceID, taskID).Scan(&info.OwnerID, &info.Status, &info.ComplianceID, &info.EntityName)
	if errors.Is(err, pgx.ErrNoRows) {
		return taskInfo{}, ErrTaskNotFound
	}
	if err != nil {
		return taskInfo{}, fmt.Errorf("load task for evidence: %w", err)
	}
	return info, nil
}

const fileColumns = "id, task_id, uploaded_by, item_id, web_url, name, size_bytes, mime_type, path, created_at"

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(&f.ID, &f.TaskID, &f.UploadedBy, &f.ItemID, &f.WebURL, &f.Name,
		&f.SizeBytes, &f.MimeType, &f.Path, &f.CreatedAt)
	return f, err
}

func (s *Store) List(ctx context.Context, workspaceID, taskID string) ([]File, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT "+fileColumns+" FROM evidence_files WHERE workspace_id = $1 AND task_id = $2 ORDER BY created_at ASC",
		workspaceID, taskID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	files := make([]File, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) Get(ctx context.Context, workspaceID, fileID string) (File, error) {
	row := s.Pool.QueryRow(ctx,
		"SELECT "+fileColumns+" FROM evidence_files WHERE workspace_id = $1 AND id = $2",
		workspaceID, fileID)
	f, err := scanFile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, ErrNotFound
	}
	if err != nil {
		return File{}, fmt.Errorf("get evidence: %w", err)
	}
	return f, nil
}

// Insert records a confirmed upload. Confirming the same item twice is a
// no-op: the first row wins and is returned either way.
func (s *Store) Insert(ctx context.Context, workspaceID string, f File, siteID, driveID string) (File, error) {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO evidence_files (workspace_id, task_id, uploaded_by, item_id, web_url, name,
			size_bytes, mime_type, site_id, drive_id, path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (task_id, item_id) DO NOTHING`,
		workspaceID, f.TaskID, f.UploadedBy, f.ItemID, f.WebURL, f.Name,
		f.SizeBytes, f.MimeType, siteID, driveID, f.Path)
	if err != nil {
		return File{}, fmt.Errorf("insert evidence: %w", err)
	}

	row := s.Pool.QueryRow(ctx,
		"SELECT "+fileColumns+" FROM evidence_files WHERE task_id = $1 AND item_id = $2",
		f.TaskID, f.ItemID)
	stored, err := scanFile(row)
	if err != nil {
		return File{}, fmt.Errorf("reload evidence: %w", err)
	}
	return stored, nil
}

func (s *Store) Delete(ctx context.Context, workspaceID, fileID string) error {
	tag, err := s.Pool.Exec(ctx,
		"DELETE FROM evidence_files WHERE workspace_id = $1 AND id = $2", workspaceID, fileID)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
