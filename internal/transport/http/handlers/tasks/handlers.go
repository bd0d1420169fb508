package taskhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/task"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

type Handler struct {
	Service *task.Service
	Audit   *audit.Service
}

func NewHandler(service *task.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer, auth.RoleTaskOwner)).Get("/", h.handleList)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer, auth.RoleTaskOwner)).Get("/{taskID}", h.handleGet)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer)).Post("/", h.handleCreate)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer)).Patch("/{taskID}", h.handleUpdate)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Delete("/{taskID}", h.handleDelete)
		r.With(middleware.RequireRole(auth.RoleTaskOwner)).Post("/{taskID}/complete", h.handleComplete)
		r.With(middleware.RequireRole(auth.RoleTaskOwner)).Post("/{taskID}/skip", h.handleSkip)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer, auth.RoleTaskOwner)).Get("/{taskID}/executions", h.handleExecutions)
	})
}

func failTaskError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "task_not_found", "task not found", requestID)
	case errors.Is(err, task.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "you do not have access to this task", requestID)
	case errors.Is(err, task.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", "task is not pending", requestID)
	case errors.Is(err, task.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "duplicate_task", "a task already exists for this compliance id and operating unit", requestID)
	case errors.Is(err, task.ErrEvidenceRequired):
		api.Fail(w, http.StatusUnprocessableEntity, "evidence_required", "at least one evidence file must be uploaded before completing", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "task_operation_failed", "task operation failed", requestID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	filter := task.Filter{
		Status:       strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))),
		EntityID:     r.URL.Query().Get("entityId"),
		DepartmentID: r.URL.Query().Get("departmentId"),
		OwnerID:      r.URL.Query().Get("ownerId"),
		OverdueOnly:  r.URL.Query().Get("overdue") == "true",
	}

	tasks, total, err := h.Service.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "task_list_failed", "failed to list tasks", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": tasks, "total": total}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	t, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "taskID"))
	if err != nil {
		failTaskError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, t, middleware.GetRequestID(r.Context()))
}

type createPayload struct {
	ComplianceID string  `json:"complianceId"`
	Title        string  `json:"title"`
	Description  *string `json:"description"`
	LawID        string  `json:"lawId"`
	DepartmentID string  `json:"departmentId"`
	EntityID     string  `json:"entityId"`
	OwnerID      string  `json:"ownerId"`
	ReviewerID   string  `json:"reviewerId"`
	Frequency    *string `json:"frequency"`
	Impact       *string `json:"impact"`
	DueDate      *string `json:"dueDate"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("complianceId", payload.ComplianceID, "compliance id is required")
	v.Required("lawId", payload.LawID, "law is required")
	v.Required("departmentId", payload.DepartmentID, "department is required")
	v.Required("entityId", payload.EntityID, "operating unit is required")
	v.Required("ownerId", payload.OwnerID, "owner is required")
	v.Required("reviewerId", payload.ReviewerID, "reviewer is required")

	var dueDate *time.Time
	if payload.DueDate != nil && strings.TrimSpace(*payload.DueDate) != "" {
		if parsed, ok := v.Date("dueDate", *payload.DueDate); ok {
			dueDate = &parsed
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Service.Create(r.Context(), user.WorkspaceID, task.CreateInput{
		ComplianceID: strings.TrimSpace(payload.ComplianceID),
		Title:        strings.TrimSpace(payload.Title),
		Description:  payload.Description,
		LawID:        payload.LawID,
		DepartmentID: payload.DepartmentID,
		EntityID:     payload.EntityID,
		OwnerID:      payload.OwnerID,
		ReviewerID:   payload.ReviewerID,
		Frequency:    payload.Frequency,
		Impact:       payload.Impact,
		DueDate:      dueDate,
	})
	if err != nil {
		failTaskError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "task.create",
		EntityType: "task",
		EntityID:   id,
		Changes:    payload,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

type updatePayload struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	LawID        *string `json:"lawId"`
	DepartmentID *string `json:"departmentId"`
	OwnerID      *string `json:"ownerId"`
	ReviewerID   *string `json:"reviewerId"`
	Frequency    *string `json:"frequency"`
	Impact       *string `json:"impact"`
	DueDate      *string `json:"dueDate"`
	ClearDueDate bool    `json:"clearDueDate"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	var dueDate *time.Time
	if payload.DueDate != nil && strings.TrimSpace(*payload.DueDate) != "" {
		if parsed, ok := v.Date("dueDate", *payload.DueDate); ok {
			dueDate = &parsed
		}
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	err := h.Service.Update(r.Context(), user.WorkspaceID, taskID, task.UpdateInput{
		Title:        payload.Title,
		Description:  payload.Description,
		LawID:        payload.LawID,
		DepartmentID: payload.DepartmentID,
		OwnerID:      payload.OwnerID,
		ReviewerID:   payload.ReviewerID,
		Frequency:    payload.Frequency,
		Impact:       payload.Impact,
		DueDate:      dueDate,
		ClearDueDate: payload.ClearDueDate,
	})
	if err != nil {
		failTaskError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "task.update",
		EntityType: "task",
		EntityID:   taskID,
		Changes:    payload,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]bool{"updated": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")

	if err := h.Service.Delete(r.Context(), user.WorkspaceID, taskID); err != nil {
		failTaskError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "task.delete",
		EntityType: "task",
		EntityID:   taskID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
}

type completePayload struct {
	Comment *string `json:"comment"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var payload completePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Service.Complete(r.Context(), user, taskID, payload.Comment); err != nil {
		failTaskError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "task.complete",
		EntityType: "task",
		EntityID:   taskID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]string{"status": task.StatusCompleted}, middleware.GetRequestID(r.Context()))
}

type skipPayload struct {
	Remarks string `json:"remarks"`
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var payload skipPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("remarks", payload.Remarks, "remarks are required when skipping")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if err := h.Service.Skip(r.Context(), user, taskID, strings.TrimSpace(payload.Remarks)); err != nil {
		failTaskError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "task.skip",
		EntityType: "task",
		EntityID:   taskID,
		Changes:    payload,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]string{"status": task.StatusSkipped}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExecutions(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	executions, err := h.Service.Executions(r.Context(), user, chi.URLParam(r, "taskID"))
	if err != nil {
		failTaskError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, executions, middleware.GetRequestID(r.Context()))
}
