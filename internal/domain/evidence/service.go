package evidence

import (
	"context"
	"log/slog"
	"time"

	"comply/internal/domain/auth"
	"comply/internal/domain/task"
	"comply/internal/platform/docstore"
)

// DriveResolver supplies the external store location for a workspace.
type DriveResolver interface {
	DriveLocation(ctx context.Context, workspaceID string) (siteID, driveID string, err error)
}

type Service struct {
	Store      *Store
	DocStore   *docstore.Client
	Drives     DriveResolver
	BaseFolder string
}

func NewService(store *Store, doc *docstore.Client, drives DriveResolver, baseFolder string) *Service {
	return &Service{Store: store, DocStore: doc, Drives: drives, BaseFolder: baseFolder}
}

func (s *Service) driveFor(ctx context.Context, workspaceID string) (string, string, error) {
	if !s.DocStore.Configured() {
		return "", "", ErrNotConfigured
	}
	siteID, driveID, err := s.Drives.DriveLocation(ctx, workspaceID)
	if err != nil {
		return "", "", err
	}
	if siteID == "" || driveID == "" {
		return "", "", ErrNotConfigured
	}
	return siteID, driveID, nil
}

func canTouchTask(user auth.UserContext, info taskInfo) bool {
	return user.Role == auth.RoleAdmin || info.OwnerID == user.UserID
}

// BeginUpload opens an upload session in the task's evidence folder. Only the
// task owner or an admin may attach evidence, and only while the task is
// still pending.
func (s *Service) BeginUpload(ctx context.Context, user auth.UserContext, taskID, fileName string) (UploadTicket, error) {
	info, err := s.Store.taskInfo(ctx, user.WorkspaceID, taskID)
	if err != nil {
		return UploadTicket{}, err
	}
	if !canTouchTask(user, info) {
		return UploadTicket{}, ErrForbidden
	}
	if info.Status != task.StatusPending {
		return UploadTicket{}, task.ErrInvalidState
	}

	siteID, driveID, err := s.driveFor(ctx, user.WorkspaceID)
	if err != nil {
		return UploadTicket{}, err
	}

	folder := docstore.FolderPath(s.BaseFolder, info.EntityName, info.ComplianceID, time.Now().UTC())
	session, err := s.DocStore.CreateUploadSession(ctx, siteID, driveID, folder, fileName)
	if err != nil {
		return UploadTicket{}, err
	}
	return UploadTicket{UploadURL: session.UploadURL, ItemPath: session.ItemPath}, nil
}

// ConfirmUpload records a finished upload. Confirming the same external item
// twice returns the already-stored row.
func (s *Service) ConfirmUpload(ctx context.Context, user auth.UserContext, taskID, itemID string) (File, error) {
	info, err := s.Store.taskInfo(ctx, user.WorkspaceID, taskID)
	if err != nil {
		return File{}, err
	}
	if !canTouchTask(user, info) {
		return File{}, ErrForbidden
	}

	siteID, driveID, err := s.driveFor(ctx, user.WorkspaceID)
	if err != nil {
		return File{}, err
	}

	meta, err := s.DocStore.GetItem(ctx, siteID, driveID, itemID)
	if err != nil {
		return File{}, err
	}

	return s.Store.Insert(ctx, user.WorkspaceID, File{
		TaskID:     taskID,
		UploadedBy: user.UserID,
		ItemID:     meta.ID,
		WebURL:     meta.WebURL,
		Name:       meta.Name,
		SizeBytes:  meta.Size,
		MimeType:   meta.MimeType,
		Path:       docstore.FolderPath(s.BaseFolder, info.EntityName, info.ComplianceID, time.Now().UTC()),
	}, siteID, driveID)
}

func (s *Service) List(ctx context.Context, user auth.UserContext, taskID string) ([]File, error) {
	info, err := s.Store.taskInfo(ctx, user.WorkspaceID, taskID)
	if err != nil {
		return nil, err
	}
	if user.Role == auth.RoleTaskOwner && info.OwnerID != user.UserID {
		return nil, ErrForbidden
	}
	return s.Store.List(ctx, user.WorkspaceID, taskID)
}

// Delete tries to remove the external file first, then removes the evidence
// row. Admins can always delete; the uploader can delete their own file while
// the task is still pending. The external delete is best effort: the local
// database is the source of truth for whether evidence exists, so a failure
// there is logged and the row is removed anyway.
func (s *Service) Delete(ctx context.Context, user auth.UserContext, fileID string) error {
	f, err := s.Store.Get(ctx, user.WorkspaceID, fileID)
	if err != nil {
		return err
	}

	if user.Role != auth.RoleAdmin {
		info, err := s.Store.taskInfo(ctx, user.WorkspaceID, f.TaskID)
		if err != nil {
			return err
		}
		if f.UploadedBy != user.UserID || info.Status != task.StatusPending {
			return ErrForbidden
		}
	}

	if s.DocStore.Configured() {
		siteID, driveID, err := s.Drives.DriveLocation(ctx, user.WorkspaceID)
		if err == nil && siteID != "" && driveID != "" {
			if err := s.DocStore.DeleteItem(ctx, siteID, driveID, f.ItemID); err != nil {
				slog.Warn("external evidence delete failed", "itemId", f.ItemID, "error", err)
			}
		}
	}

	return s.Store.Delete(ctx, user.WorkspaceID, fileID)
}
