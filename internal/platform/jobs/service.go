package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"comply/internal/domain/report"
	"comply/internal/platform/config"
)

const JobWeeklyDigest = "weekly_digest"

type Service struct {
	DB      *pgxpool.Pool
	Cfg     config.Config
	Reports *report.Service
	queue   chan job
}

type job struct {
	Type        string
	WorkspaceID string
	Run         func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, reports *report.Service) *Service {
	return &Service{
		DB:      db,
		Cfg:     cfg,
		Reports: reports,
		queue:   make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.WeeklyDigestEvery > 0 {
		go s.scheduleDigests(ctx, s.Cfg.WeeklyDigestEvery)
	}
}

func (s *Service) Enqueue(jobType, workspaceID string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, WorkspaceID: workspaceID, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType, "workspaceId", workspaceID)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType, workspaceID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, WorkspaceID: workspaceID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "workspaceId", j.WorkspaceID, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (workspace_id, job_type, status)
    VALUES ($1,$2,$3)
    RETURNING id
  `, j.WorkspaceID, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

// scheduleDigests ticks on a short interval and lets the report-run ledger
// decide whether this week's digest still needs sending. Missed ticks from a
// restart are therefore caught up on the next tick.
func (s *Service) scheduleDigests(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			workspaces, err := s.listWorkspaces(ctx)
			if err != nil {
				slog.Warn("digest scheduler workspace lookup failed", "err", err)
				continue
			}
			for _, workspaceID := range workspaces {
				workspace := workspaceID
				s.Enqueue(JobWeeklyDigest, workspace, func(ctx context.Context) (any, error) {
					sent, err := s.Reports.SendWeeklyDigest(ctx, workspace, time.Now().UTC(), false)
					return map[string]any{"sent": sent}, err
				})
			}
		}
	}
}

func (s *Service) listWorkspaces(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT id FROM workspaces`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
