package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dueSoonWindow = 7 * 24 * time.Hour

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) Snapshot(ctx context.Context, workspaceID string, now time.Time) (Snapshot, error) {
	var snap Snapshot
	err := s.Pool.QueryRow(ctx, `
    SELECT
      count(*) FILTER (WHERE status = 'PENDING'),
      count(*) FILTER (WHERE status = 'PENDING' AND due_date >= $2 AND due_date < $3),
      count(*) FILTER (WHERE status = 'PENDING' AND due_date < $2),
      count(*) FILTER (WHERE status = 'COMPLETED'),
      count(*) FILTER (WHERE status = 'SKIPPED')
    FROM compliance_tasks WHERE workspace_id = $1
  `, workspaceID, now, now.Add(dueSoonWindow)).Scan(
		&snap.Pending, &snap.DueSoon, &snap.Overdue, &snap.Completed, &snap.Skipped)
	if err != nil {
		return Snapshot{}, fmt.Errorf("task snapshot: %w", err)
	}
	return snap, nil
}

// TopAtRisk returns up to limit pending tasks that are overdue or due within
// the next seven days, most urgent first.
func (s *Store) TopAtRisk(ctx context.Context, workspaceID string, now time.Time, limit int) ([]AtRiskTask, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT t.compliance_id, t.title, e.name, u.name, u.email, t.due_date, t.due_date < $2
    FROM compliance_tasks t
    JOIN entities e ON e.id = t.entity_id
    JOIN users u ON u.id = t.owner_id
    WHERE t.workspace_id = $1 AND t.status = 'PENDING'
      AND t.due_date IS NOT NULL AND t.due_date < $3
    ORDER BY t.due_date ASC
    LIMIT $4
  `, workspaceID, now, now.Add(dueSoonWindow), limit)
	if err != nil {
		return nil, fmt.Errorf("at-risk tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]AtRiskTask, 0)
	for rows.Next() {
		var t AtRiskTask
		if err := rows.Scan(&t.ComplianceID, &t.Title, &t.EntityName, &t.OwnerName,
			&t.OwnerEmail, &t.DueDate, &t.Overdue); err != nil {
			return nil, fmt.Errorf("scan at-risk task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// HasSuccessfulRun reports whether a successful run of reportType already
// covers any part of the period. Used to keep scheduler restarts from
// double-sending digests.
func (s *Store) HasSuccessfulRun(ctx context.Context, workspaceID, reportType string, periodStart, periodEnd time.Time) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM report_runs
      WHERE workspace_id = $1 AND report_type = $2 AND success = true
        AND period_start < $4 AND period_end > $3
    )
  `, workspaceID, reportType, periodStart, periodEnd).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check report run: %w", err)
	}
	return exists, nil
}

func (s *Store) RecordRun(ctx context.Context, workspaceID, reportType string, success bool, periodStart, periodEnd time.Time, errMsg string) error {
	var msg *string
	if errMsg != "" {
		msg = &errMsg
	}
	_, err := s.Pool.Exec(ctx, `
    INSERT INTO report_runs (workspace_id, report_type, success, period_start, period_end, error_msg)
    VALUES ($1, $2, $3, $4, $5, $6)
  `, workspaceID, reportType, success, periodStart, periodEnd, msg)
	if err != nil {
		return fmt.Errorf("record report run: %w", err)
	}
	return nil
}

func (s *Store) ListRuns(ctx context.Context, workspaceID string, limit, offset int) ([]Run, int, error) {
	var total int
	if err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM report_runs WHERE workspace_id = $1", workspaceID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count report runs: %w", err)
	}

	rows, err := s.Pool.Query(ctx, `
    SELECT id, report_type, success, period_start, period_end, error_msg, created_at
    FROM report_runs WHERE workspace_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list report runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ReportType, &r.Success, &r.PeriodStart, &r.PeriodEnd,
			&r.ErrorMsg, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan report run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}

func (s *Store) ExportRows(ctx context.Context, workspaceID string) ([]ExportRow, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT t.compliance_id, t.title, e.name, d.name, l.name, u.email, t.status, t.due_date
    FROM compliance_tasks t
    JOIN entities e ON e.id = t.entity_id
    JOIN departments d ON d.id = t.department_id
    JOIN laws l ON l.id = t.law_id
    JOIN users u ON u.id = t.owner_id
    WHERE t.workspace_id = $1
    ORDER BY t.due_date ASC NULLS LAST, t.compliance_id ASC
  `, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("export tasks: %w", err)
	}
	defer rows.Close()

	export := make([]ExportRow, 0)
	for rows.Next() {
		var r ExportRow
		if err := rows.Scan(&r.ComplianceID, &r.Title, &r.EntityName, &r.Department,
			&r.Law, &r.OwnerEmail, &r.Status, &r.DueDate); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		export = append(export, r)
	}
	return export, rows.Err()
}
