package task

import (
	"context"
	"errors"
	"time"

	"comply/internal/domain/auth"
	"comply/internal/domain/masterdata"
	"comply/internal/platform/metrics"
)

type Service struct {
	Store      *Store
	MasterData *masterdata.Store
	Metrics    *metrics.Metrics
}

func NewService(store *Store, md *masterdata.Store, collector *metrics.Metrics) *Service {
	return &Service{Store: store, MasterData: md, Metrics: collector}
}

// scope forces task owners down to their own tasks. Admins and reviewers see
// the whole workspace.
func scope(user auth.UserContext, filter Filter) Filter {
	if user.Role == auth.RoleTaskOwner {
		filter.OwnerID = user.UserID
	}
	return filter
}

func (s *Service) List(ctx context.Context, user auth.UserContext, filter Filter, limit, offset int) ([]Task, int, error) {
	return s.Store.List(ctx, user.WorkspaceID, scope(user, filter), limit, offset)
}

func (s *Service) Get(ctx context.Context, user auth.UserContext, taskID string) (Task, error) {
	t, err := s.Store.Get(ctx, user.WorkspaceID, taskID)
	if err != nil {
		return Task{}, err
	}
	if user.Role == auth.RoleTaskOwner && t.OwnerID != user.UserID {
		return Task{}, ErrForbidden
	}
	return t, nil
}

// Create inserts a task, filling gaps from the compliance master when one is
// registered for the compliance id.
func (s *Service) Create(ctx context.Context, workspaceID string, in CreateInput) (string, error) {
	master, err := s.MasterData.GetMasterByComplianceID(ctx, workspaceID, in.ComplianceID)
	if err == nil {
		if in.Title == "" {
			in.Title = master.Title
		}
		if in.Description == nil {
			in.Description = master.Description
		}
		if in.Frequency == nil {
			in.Frequency = master.Frequency
		}
		if in.Impact == nil {
			in.Impact = master.Impact
		}
	} else if !errors.Is(err, masterdata.ErrNotFound) {
		return "", err
	}

	exists, err := s.Store.ExistsForEntity(ctx, workspaceID, in.ComplianceID, in.EntityID)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrDuplicate
	}
	return s.Store.Create(ctx, workspaceID, in)
}

func (s *Service) Update(ctx context.Context, workspaceID, taskID string, in UpdateInput) error {
	return s.Store.Update(ctx, workspaceID, taskID, in)
}

func (s *Service) Delete(ctx context.Context, workspaceID, taskID string) error {
	return s.Store.Delete(ctx, workspaceID, taskID)
}

// Complete marks a pending task completed. Only the task's owner may complete
// it, and at least one evidence file must have finished uploading.
func (s *Service) Complete(ctx context.Context, user auth.UserContext, taskID string, comment *string) error {
	t, err := s.Store.Get(ctx, user.WorkspaceID, taskID)
	if err != nil {
		return err
	}
	if user.Role != auth.RoleTaskOwner || t.OwnerID != user.UserID {
		return ErrForbidden
	}
	if t.Status != StatusPending {
		return ErrInvalidState
	}

	count, err := s.Store.CountEvidence(ctx, taskID)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrEvidenceRequired
	}

	if err := s.Store.Execute(ctx, user.WorkspaceID, taskID, user.UserID,
		ActionComplete, StatusCompleted, comment, nil, time.Now().UTC()); err != nil {
		return err
	}
	if s.Metrics != nil {
		s.Metrics.TasksCompleted.Inc()
	}
	return nil
}

// Skip marks a pending task skipped. Only the owner may skip; remarks are
// mandatory, evidence is not.
func (s *Service) Skip(ctx context.Context, user auth.UserContext, taskID string, remarks string) error {
	t, err := s.Store.Get(ctx, user.WorkspaceID, taskID)
	if err != nil {
		return err
	}
	if user.Role != auth.RoleTaskOwner || t.OwnerID != user.UserID {
		return ErrForbidden
	}
	if t.Status != StatusPending {
		return ErrInvalidState
	}

	if err := s.Store.Execute(ctx, user.WorkspaceID, taskID, user.UserID,
		ActionSkip, StatusSkipped, nil, &remarks, time.Now().UTC()); err != nil {
		return err
	}
	if s.Metrics != nil {
		s.Metrics.TasksSkipped.Inc()
	}
	return nil
}

func (s *Service) Executions(ctx context.Context, user auth.UserContext, taskID string) ([]Execution, error) {
	if _, err := s.Get(ctx, user, taskID); err != nil {
		return nil, err
	}
	return s.Store.ListExecutions(ctx, user.WorkspaceID, taskID)
}
