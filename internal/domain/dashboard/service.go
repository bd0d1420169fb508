package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jackc/pgx/v5/pgxpool"

	"comply/internal/domain/auth"
	"comply/internal/domain/report"
)

type GroupCount struct {
	Name      string `json:"name"`
	Pending   int    `json:"pending"`
	Overdue   int    `json:"overdue"`
	Completed int    `json:"completed"`
}

type Activity struct {
	TaskID       string    `json:"taskId"`
	ComplianceID string    `json:"complianceId"`
	Title        string    `json:"title"`
	Action       string    `json:"action"`
	UserName     string    `json:"userName"`
	ExecutedAt   time.Time `json:"executedAt"`
}

// Summary is the single payload the dashboard screen renders from.
type Summary struct {
	Snapshot       report.Snapshot     `json:"snapshot"`
	CompletionRate float64             `json:"completionRate"`
	AtRisk         []report.AtRiskTask `json:"atRisk"`
	ByEntity       []GroupCount        `json:"byEntity"`
	ByDepartment   []GroupCount        `json:"byDepartment"`
	Recent         []Activity          `json:"recent"`
	MyPending      *int                `json:"myPending,omitempty"`
}

type Service struct {
	Pool    *pgxpool.Pool
	Reports *report.Store
}

func NewService(pool *pgxpool.Pool, reports *report.Store) *Service {
	return &Service{Pool: pool, Reports: reports}
}

// Summary fans the dashboard's queries out concurrently and folds the results
// into one payload. Task owners get their own pending count; reviewers get the
// pending count of tasks they review.
func (s *Service) Summary(ctx context.Context, user auth.UserContext) (Summary, error) {
	now := time.Now().UTC()

	var (
		snap         report.Snapshot
		atRisk       []report.AtRiskTask
		byEntity     []GroupCount
		byDepartment []GroupCount
		recent       []Activity
		myPending    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = s.Reports.Snapshot(gctx, user.WorkspaceID, now)
		return err
	})
	g.Go(func() error {
		var err error
		atRisk, err = s.Reports.TopAtRisk(gctx, user.WorkspaceID, now, 10)
		return err
	})
	g.Go(func() error {
		var err error
		byEntity, err = s.groupCounts(gctx, user.WorkspaceID, "entities", "entity_id", now)
		return err
	})
	g.Go(func() error {
		var err error
		byDepartment, err = s.groupCounts(gctx, user.WorkspaceID, "departments", "department_id", now)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.recentActivity(gctx, user.WorkspaceID, 10)
		return err
	})
	scopeColumn := ""
	switch user.Role {
	case auth.RoleTaskOwner:
		scopeColumn = "owner_id"
	case auth.RoleReviewer:
		scopeColumn = "reviewer_id"
	}
	if scopeColumn != "" {
		query := fmt.Sprintf(
			"SELECT count(*) FROM compliance_tasks WHERE workspace_id = $1 AND %s = $2 AND status = 'PENDING'",
			scopeColumn)
		g.Go(func() error {
			return s.Pool.QueryRow(gctx, query, user.WorkspaceID, user.UserID).Scan(&myPending)
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Fold(snap, atRisk, byEntity, byDepartment, recent)
	if scopeColumn != "" {
		summary.MyPending = &myPending
	}
	return summary, nil
}

// Fold assembles the fetched pieces and derives the completion rate over
// resolved tasks. Pure so the derivation is testable without a database.
func Fold(snap report.Snapshot, atRisk []report.AtRiskTask, byEntity, byDepartment []GroupCount, recent []Activity) Summary {
	resolved := snap.Completed + snap.Skipped
	total := resolved + snap.Pending
	rate := 0.0
	if total > 0 {
		rate = float64(snap.Completed) / float64(total)
	}
	return Summary{
		Snapshot:       snap,
		CompletionRate: rate,
		AtRisk:         atRisk,
		ByEntity:       byEntity,
		ByDepartment:   byDepartment,
		Recent:         recent,
	}
}

func (s *Service) groupCounts(ctx context.Context, workspaceID, table, column string, now time.Time) ([]GroupCount, error) {
	query := fmt.Sprintf(`
    SELECT g.name,
      count(*) FILTER (WHERE t.status = 'PENDING'),
      count(*) FILTER (WHERE t.status = 'PENDING' AND t.due_date < $2),
      count(*) FILTER (WHERE t.status = 'COMPLETED')
    FROM compliance_tasks t
    JOIN %s g ON g.id = t.%s
    WHERE t.workspace_id = $1
    GROUP BY g.name
    ORDER BY g.name
  `, table, column)

	rows, err := s.Pool.Query(ctx, query, workspaceID, now)
	if err != nil {
		return nil, fmt.Errorf("group counts by %s: %w", table, err)
	}
	defer rows.Close()

	counts := make([]GroupCount, 0)
	for rows.Next() {
		var c GroupCount
		if err := rows.Scan(&c.Name, &c.Pending, &c.Overdue, &c.Completed); err != nil {
			return nil, fmt.Errorf("scan group count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (s *Service) recentActivity(ctx context.Context, workspaceID string, limit int) ([]Activity, error) {
	rows, err := s.Pool.Query(ctx, `
    SELECT t.id, t.compliance_id, t.title, e.action, u.name, e.executed_at
    FROM task_executions e
    JOIN compliance_tasks t ON t.id = e.task_id
    JOIN users u ON u.id = e.user_id
    WHERE t.workspace_id = $1
    ORDER BY e.executed_at DESC
    LIMIT $2
  `, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	activity := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.TaskID, &a.ComplianceID, &a.Title, &a.Action, &a.UserName, &a.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}
