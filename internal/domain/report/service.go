package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"time"

	"comply/internal/domain/settings"
	"comply/internal/platform/metrics"
	"comply/internal/platform/webhook"
)

const atRiskLimit = 20

type Service struct {
	Store    *Store
	Settings *settings.Service
	Webhook  *webhook.Client
	Metrics  *metrics.Metrics
}

func NewService(store *Store, cfg *settings.Service, hook *webhook.Client, collector *metrics.Metrics) *Service {
	return &Service{Store: store, Settings: cfg, Webhook: hook, Metrics: collector}
}

func (s *Service) Snapshot(ctx context.Context, workspaceID string) (Snapshot, error) {
	return s.Store.Snapshot(ctx, workspaceID, time.Now().UTC())
}

func (s *Service) AtRisk(ctx context.Context, workspaceID string) ([]AtRiskTask, error) {
	return s.Store.TopAtRisk(ctx, workspaceID, time.Now().UTC(), atRiskLimit)
}

func (s *Service) ListRuns(ctx context.Context, workspaceID string, limit, offset int) ([]Run, int, error) {
	return s.Store.ListRuns(ctx, workspaceID, limit, offset)
}

func (s *Service) workspaceName(ctx context.Context, workspaceID string) string {
	var name string
	err := s.Store.Pool.QueryRow(ctx,
		"SELECT name FROM workspaces WHERE id = $1", workspaceID).Scan(&name)
	if err != nil {
		slog.Warn("workspace name lookup failed", "workspaceId", workspaceID, "error", err)
		return "workspace"
	}
	return name
}

// SendWeeklyDigest composes and posts the digest for the week containing now.
// Unless forced, a week that already has a successful run is skipped, so a
// restarted scheduler will not double-send. Returns whether a digest was
// posted.
func (s *Service) SendWeeklyDigest(ctx context.Context, workspaceID string, now time.Time, force bool) (bool, error) {
	periodStart, periodEnd := WeekOf(now)

	if !force {
		done, err := s.Store.HasSuccessfulRun(ctx, workspaceID, TypeWeeklyDigest, periodStart, periodEnd)
		if err != nil {
			return false, err
		}
		if done {
			return false, nil
		}
	}

	url, err := s.Settings.WebhookURL(ctx, workspaceID)
	if err != nil {
		return false, err
	}
	if url == "" {
		slog.Debug("weekly digest skipped, no webhook configured", "workspaceId", workspaceID)
		return false, nil
	}

	snap, err := s.Store.Snapshot(ctx, workspaceID, now)
	if err != nil {
		return false, err
	}
	atRisk, err := s.Store.TopAtRisk(ctx, workspaceID, now, atRiskLimit)
	if err != nil {
		return false, err
	}

	card := ComposeDigest(s.workspaceName(ctx, workspaceID), snap, atRisk, periodStart)
	postErr := s.Webhook.Post(ctx, url, card)

	errMsg := ""
	if postErr != nil {
		errMsg = postErr.Error()
	}
	if err := s.Store.RecordRun(ctx, workspaceID, TypeWeeklyDigest, postErr == nil, periodStart, periodEnd, errMsg); err != nil {
		slog.Warn("record digest run failed", "workspaceId", workspaceID, "error", err)
	}
	if s.Metrics != nil {
		outcome := "success"
		if postErr != nil {
			outcome = "failed"
		}
		s.Metrics.DigestSendsTotal.WithLabelValues(outcome).Inc()
	}

	if postErr != nil {
		return false, fmt.Errorf("post weekly digest: %w", postErr)
	}
	return true, nil
}

var exportHeader = []string{"Compliance Id", "Title", "Operating Unit", "Department", "Name of Law", "Owner", "Status", "Due Date"}

// WriteCSV streams the workspace's tasks as CSV in the upload template's
// column vocabulary.
func (s *Service) WriteCSV(ctx context.Context, workspaceID string, w io.Writer) error {
	rows, err := s.Store.ExportRows(ctx, workspaceID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		due := ""
		if r.DueDate != nil {
			due = r.DueDate.Format("2006-01-02")
		}
		record := []string{r.ComplianceID, r.Title, r.EntityName, r.Department, r.Law, r.OwnerEmail, r.Status, due}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
