package userhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/directory"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

type Handler struct {
	Service *directory.Service
	Audit   *audit.Service
}

func NewHandler(service *directory.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer)).Get("/", h.handleList)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/", h.handleCreate)
		r.With(middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer)).Get("/{userID}", h.handleGet)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Patch("/{userID}", h.handleUpdate)
	})
}

func failUserError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", requestID)
	case errors.Is(err, directory.ErrDuplicateEmail):
		api.Fail(w, http.StatusConflict, "duplicate_email", "a user with this email already exists", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "user_operation_failed", "user operation failed", requestID)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	users, err := h.Service.List(r.Context(), user.WorkspaceID)
	if err != nil {
		failUserError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, users, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	out, err := h.Service.Get(r.Context(), user.WorkspaceID, chi.URLParam(r, "userID"))
	if err != nil {
		failUserError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

type createPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("email", payload.Email, "email is required")
	v.Required("name", payload.Name, "name is required")
	role, ok := auth.ParseRole(strings.ToLower(strings.TrimSpace(payload.Role)))
	if !ok {
		v.Add("role", "role must be admin, reviewer, or task_owner")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Service.Create(r.Context(), user.WorkspaceID,
		strings.ToLower(strings.TrimSpace(payload.Email)), strings.TrimSpace(payload.Name), role)
	if err != nil {
		failUserError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "user.create",
		EntityType: "user",
		EntityID:   id,
		Changes:    payload,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

type updatePayload struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	userID := chi.URLParam(r, "userID")

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	var role *auth.Role
	if payload.Role != nil {
		parsed, ok := auth.ParseRole(strings.ToLower(strings.TrimSpace(*payload.Role)))
		if !ok {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{
				{Field: "role", Reason: "role must be admin, reviewer, or task_owner"},
			})
			return
		}
		role = &parsed
	}

	// Admins cannot deactivate themselves; a workspace must keep at least
	// one working admin login.
	if userID == user.UserID && payload.IsActive != nil && !*payload.IsActive {
		api.Fail(w, http.StatusConflict, "self_deactivation", "you cannot deactivate your own account", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Service.Update(r.Context(), user.WorkspaceID, userID, payload.Name, role, payload.IsActive); err != nil {
		failUserError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "user.update",
		EntityType: "user",
		EntityID:   userID,
		Changes:    payload,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]bool{"updated": true}, middleware.GetRequestID(r.Context()))
}
