package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"comply/internal/domain/directory"
	"comply/internal/domain/masterdata"
	"comply/internal/domain/task"
	"comply/internal/platform/metrics"
)

type Service struct {
	Store        *Store
	Tasks        *task.Store
	MasterData   *masterdata.Store
	Users        *directory.Store
	Metrics      *metrics.Metrics
	PreviewLimit int
}

func NewService(store *Store, tasks *task.Store, md *masterdata.Store, users *directory.Store, collector *metrics.Metrics, previewLimit int) *Service {
	if previewLimit <= 0 {
		previewLimit = 100
	}
	return &Service{Store: store, Tasks: tasks, MasterData: md, Users: users, Metrics: collector, PreviewLimit: previewLimit}
}

// Run imports a CSV in either mode. Preview runs the same per-row pipeline as
// commit, including the find-or-create of laws, departments, and operating
// units; only the task insert itself is withheld. Every row's outcome is
// persisted with the job regardless of mode.
func (s *Service) Run(ctx context.Context, workspaceID, userID, fileName string, reader io.Reader, mode string) (Result, error) {
	if mode != ModePreview && mode != ModeCommit {
		return Result{}, fmt.Errorf("unknown import mode %q", mode)
	}

	raws, err := Parse(reader)
	if err != nil {
		return Result{}, err
	}

	jobID, err := s.Store.CreateJob(ctx, workspaceID, userID, fileName, mode)
	if err != nil {
		return Result{}, err
	}

	result := Result{JobID: jobID, Mode: mode, Total: len(raws)}
	for _, raw := range raws {
		row := s.processRow(ctx, workspaceID, raw, mode == ModeCommit)
		if row.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		if s.Metrics != nil {
			s.Metrics.ImportRowsTotal.WithLabelValues(outcome(row.Success)).Inc()
		}
		if err := s.Store.AddRow(ctx, jobID, row); err != nil {
			return Result{}, err
		}
		if len(result.Rows) < s.PreviewLimit {
			result.Rows = append(result.Rows, row)
		} else {
			result.Truncated = true
		}
	}

	if err := s.Store.FinishJob(ctx, jobID, mode, result.Total, result.Succeeded, result.Failed); err != nil {
		return Result{}, err
	}
	return result, nil
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (s *Service) processRow(ctx context.Context, workspaceID string, raw RawRow, commit bool) RowResult {
	row := RowResult{RowNumber: raw.RowNumber, Data: snapshot(raw)}

	fail := func(format string, args ...any) RowResult {
		row.Success = false
		row.Error = fmt.Sprintf(format, args...)
		return row
	}

	complianceID := raw.Get(ColComplianceID)
	if complianceID == "" {
		return fail("compliance id is required")
	}
	title := raw.Get(ColTitle)
	if title == "" {
		return fail("title is required")
	}

	lawName := raw.Get(ColLaw)
	departmentName := raw.Get(ColDepartment)
	entityName := raw.Get(ColEntity)
	if lawName == "" || departmentName == "" || entityName == "" {
		return fail("name of law, department, and operating unit are required")
	}

	ownerEmail := strings.ToLower(raw.Get(ColOwner))
	reviewerEmail := strings.ToLower(raw.Get(ColReviewer))
	if ownerEmail == "" || reviewerEmail == "" {
		return fail("owner and reviewer are required")
	}

	owner, err := s.Users.GetByEmail(ctx, workspaceID, ownerEmail)
	if errors.Is(err, directory.ErrNotFound) {
		return fail("owner email not found: %s", ownerEmail)
	}
	if err != nil {
		return fail("look up owner: %v", err)
	}
	reviewer, err := s.Users.GetByEmail(ctx, workspaceID, reviewerEmail)
	if errors.Is(err, directory.ErrNotFound) {
		return fail("reviewer email not found: %s", reviewerEmail)
	}
	if err != nil {
		return fail("look up reviewer: %v", err)
	}

	dueDate, err := ParseDueDate(raw.Get(ColDueDate))
	if err != nil {
		return fail("current due date: %v", err)
	}

	lawID, err := s.MasterData.FindOrCreate(ctx, workspaceID, masterdata.KindLaw, lawName)
	if err != nil {
		return fail("resolve law: %v", err)
	}
	departmentID, err := s.MasterData.FindOrCreate(ctx, workspaceID, masterdata.KindDepartment, departmentName)
	if err != nil {
		return fail("resolve department: %v", err)
	}
	entityID, err := s.MasterData.FindOrCreate(ctx, workspaceID, masterdata.KindEntity, entityName)
	if err != nil {
		return fail("resolve operating unit: %v", err)
	}

	exists, err := s.Tasks.ExistsForEntity(ctx, workspaceID, complianceID, entityID)
	if err != nil {
		return fail("check for existing task: %v", err)
	}
	if exists {
		return fail("task %s already exists for %s", complianceID, entityName)
	}

	if commit {
		_, err := s.Tasks.Create(ctx, workspaceID, task.CreateInput{
			ComplianceID: complianceID,
			Title:        title,
			LawID:        lawID,
			DepartmentID: departmentID,
			EntityID:     entityID,
			OwnerID:      owner.ID,
			ReviewerID:   reviewer.ID,
			Frequency:    task.MapFrequency(raw.Get(ColFrequency)),
			Impact:       task.MapImpact(raw.Get(ColImpact)),
			Status:       task.MapStatus(raw.Get(ColStatus)),
			DueDate:      dueDate,
		})
		if errors.Is(err, task.ErrDuplicate) {
			return fail("task %s already exists for %s", complianceID, entityName)
		}
		if err != nil {
			return fail("create task: %v", err)
		}
	}

	row.Success = true
	return row
}

func snapshot(raw RawRow) map[string]string {
	data := make(map[string]string, len(requiredColumns))
	for _, column := range requiredColumns {
		data[column] = raw.Get(column)
	}
	return data
}

func (s *Service) GetJob(ctx context.Context, workspaceID, jobID string) (Job, error) {
	return s.Store.GetJob(ctx, workspaceID, jobID)
}

func (s *Service) ListJobs(ctx context.Context, workspaceID string, limit, offset int) ([]Job, int, error) {
	return s.Store.ListJobs(ctx, workspaceID, limit, offset)
}

func (s *Service) ListRows(ctx context.Context, workspaceID, jobID string, failedOnly bool) ([]RowResult, error) {
	return s.Store.ListRows(ctx, workspaceID, jobID, failedOnly)
}
