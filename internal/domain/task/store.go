package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

const taskColumns = `id, compliance_id, title, description, law_id, department_id, entity_id,
	owner_id, reviewer_id, frequency, impact, status, due_date, completed_at,
	(status = 'PENDING' AND due_date IS NOT NULL AND due_date < now()) AS overdue,
	created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.ComplianceID, &t.Title, &t.Description, &t.LawID, &t.DepartmentID,
		&t.EntityID, &t.OwnerID, &t.ReviewerID, &t.Frequency, &t.Impact, &t.Status,
		&t.DueDate, &t.CompletedAt, &t.Overdue, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) List(ctx context.Context, workspaceID string, filter Filter, limit, offset int) ([]Task, int, error) {
	where := "workspace_id = $1"
	args := []any{workspaceID}
	idx := 2
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, filter.Status)
		idx++
	}
	if filter.EntityID != "" {
		where += fmt.Sprintf(" AND entity_id = $%d", idx)
		args = append(args, filter.EntityID)
		idx++
	}
	if filter.DepartmentID != "" {
		where += fmt.Sprintf(" AND department_id = $%d", idx)
		args = append(args, filter.DepartmentID)
		idx++
	}
	if filter.OwnerID != "" {
		where += fmt.Sprintf(" AND owner_id = $%d", idx)
		args = append(args, filter.OwnerID)
		idx++
	}
	if filter.OverdueOnly {
		where += " AND status = 'PENDING' AND due_date IS NOT NULL AND due_date < now()"
	}

	var total int
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM compliance_tasks WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM compliance_tasks WHERE %s
		ORDER BY due_date ASC NULLS LAST, compliance_id ASC
		LIMIT $%d OFFSET $%d`, taskColumns, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, total, rows.Err()
}

func (s *Store) Get(ctx context.Context, workspaceID, taskID string) (Task, error) {
	row := s.Pool.QueryRow(ctx,
		"SELECT "+taskColumns+" FROM compliance_tasks WHERE workspace_id = $1 AND id = $2",
		workspaceID, taskID)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ExistsForEntity reports whether a task already exists for the compliance id
// and entity pair.
func (s *Store) ExistsForEntity(ctx context.Context, workspaceID, complianceID, entityID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM compliance_tasks WHERE workspace_id = $1 AND compliance_id = $2 AND entity_id = $3)`,
		workspaceID, complianceID, entityID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check task exists: %w", err)
	}
	return exists, nil
}

func (s *Store) Create(ctx context.Context, workspaceID string, in CreateInput) (string, error) {
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	var id string
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO compliance_tasks (workspace_id, compliance_id, title, description, law_id,
			department_id, entity_id, owner_id, reviewer_id, frequency, impact, status, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		workspaceID, in.ComplianceID, in.Title, in.Description, in.LawID, in.DepartmentID,
		in.EntityID, in.OwnerID, in.ReviewerID, in.Frequency, in.Impact, status, in.DueDate).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, workspaceID, taskID string, in UpdateInput) error {
	dueExpr := "COALESCE($9, due_date)"
	if in.ClearDueDate {
		dueExpr = "NULL"
	}
	tag, err := s.Pool.Exec(ctx, fmt.Sprintf(
		`UPDATE compliance_tasks SET
			title = COALESCE($1, title),
			description = COALESCE($2, description),
			law_id = COALESCE($3, law_id),
			department_id = COALESCE($4, department_id),
			owner_id = COALESCE($5, owner_id),
			reviewer_id = COALESCE($6, reviewer_id),
			frequency = COALESCE($7, frequency),
			impact = COALESCE($8, impact),
			due_date = %s,
			updated_at = now()
		 WHERE workspace_id = $10 AND id = $11`, dueExpr),
		in.Title, in.Description, in.LawID, in.DepartmentID, in.OwnerID, in.ReviewerID,
		in.Frequency, in.Impact, in.DueDate, workspaceID, taskID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, workspaceID, taskID string) error {
	tag, err := s.Pool.Exec(ctx,
		"DELETE FROM compliance_tasks WHERE workspace_id = $1 AND id = $2", workspaceID, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Execute flips a pending task to its terminal status and records the
// execution in the same transaction. The row is locked so concurrent
// complete/skip calls serialize; the loser sees the flipped status.
func (s *Store) Execute(ctx context.Context, workspaceID, taskID, userID, action, status string, comment, remarks *string, executedAt time.Time) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin execute: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		"SELECT status FROM compliance_tasks WHERE workspace_id = $1 AND id = $2 FOR UPDATE",
		workspaceID, taskID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock task: %w", err)
	}
	if current != StatusPending {
		return ErrInvalidState
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO task_executions (workspace_id, task_id, user_id, action, comment, remarks, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		workspaceID, taskID, userID, action, comment, remarks, executedAt); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	var completedAt *time.Time
	if status == StatusCompleted {
		completedAt = &executedAt
	}
	if _, err := tx.Exec(ctx,
		`UPDATE compliance_tasks SET status = $1, completed_at = $2, updated_at = now()
		 WHERE workspace_id = $3 AND id = $4`,
		status, completedAt, workspaceID, taskID); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) ListExecutions(ctx context.Context, workspaceID, taskID string) ([]Execution, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT e.id, e.task_id, e.user_id, e.action, e.comment, e.remarks, e.executed_at
		 FROM task_executions e
		 JOIN compliance_tasks t ON t.id = e.task_id
		 WHERE t.workspace_id = $1 AND e.task_id = $2
		 ORDER BY e.executed_at DESC`,
		workspaceID, taskID)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	executions := make([]Execution, 0)
	for rows.Next() {
		var e Execution
		if err := rows.Scan(&e.ID, &e.TaskID, &e.UserID, &e.Action, &e.Comment, &e.Remarks, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// CountEvidence counts confirmed evidence rows for a task. A row only exists
// once the client confirmed its upload, so presence means uploaded.
func (s *Store) CountEvidence(ctx context.Context, taskID string) (int, error) {
	var n int
	err := s.Pool.QueryRow(ctx,
		"SELECT count(*) FROM evidence_files WHERE task_id = $1",
		taskID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count evidence: %w", err)
	}
	return n, nil
}
