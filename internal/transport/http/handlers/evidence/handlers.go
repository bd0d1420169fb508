package evidencehandler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/evidence"
	"comply/internal/domain/task"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

type Handler struct {
	Service *evidence.Service
	Audit   *audit.Service
}

func NewHandler(service *evidence.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	all := middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer, auth.RoleTaskOwner)
	uploader := middleware.RequireRole(auth.RoleAdmin, auth.RoleTaskOwner)

	r.Route("/tasks/{taskID}/evidence", func(r chi.Router) {
		r.With(all).Get("/", h.handleList)
		r.With(uploader).Post("/upload-session", h.handleBeginUpload)
		r.With(uploader).Post("/confirm", h.handleConfirmUpload)
	})
	r.With(uploader).Delete("/evidence/{fileID}", h.handleDelete)
}

func failEvidenceError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, evidence.ErrTaskNotFound):
		api.Fail(w, http.StatusNotFound, "task_not_found", "task not found", requestID)
	case errors.Is(err, evidence.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "evidence_not_found", "evidence file not found", requestID)
	case errors.Is(err, evidence.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "you do not have access to this evidence", requestID)
	case errors.Is(err, evidence.ErrNotConfigured):
		api.Fail(w, http.StatusServiceUnavailable, "docstore_unconfigured", "document storage is not configured for this workspace", requestID)
	case errors.Is(err, task.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "task is not pending", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "evidence_operation_failed", "evidence operation failed", requestID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	files, err := h.Service.List(r.Context(), user, chi.URLParam(r, "taskID"))
	if err != nil {
		failEvidenceError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, files, middleware.GetRequestID(r.Context()))
}

type beginUploadPayload struct {
	FileName string `json:"fileName"`
}

func (h *Handler) handleBeginUpload(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var payload beginUploadPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("fileName", payload.FileName, "file name is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	ticket, err := h.Service.BeginUpload(r.Context(), user, taskID, payload.FileName)
	if err != nil {
		failEvidenceError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, ticket, middleware.GetRequestID(r.Context()))
}

type confirmPayload struct {
	ItemID string `json:"itemId"`
}

func (h *Handler) handleConfirmUpload(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var payload confirmPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("itemId", payload.ItemID, "item id is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	file, err := h.Service.ConfirmUpload(r.Context(), user, taskID, payload.ItemID)
	if err != nil {
		failEvidenceError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "evidence.upload",
		EntityType: "evidence_file",
		EntityID:   file.ID,
		Changes:    map[string]string{"taskId": taskID, "name": file.Name},
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Created(w, file, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	fileID := chi.URLParam(r, "fileID")

	if err := h.Service.Delete(r.Context(), user, fileID); err != nil {
		failEvidenceError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "evidence.delete",
		EntityType: "evidence_file",
		EntityID:   fileID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
}
