package settingshandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/settings"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

type Handler struct {
	Service *settings.Service
	Audit   *audit.Service
}

func NewHandler(service *settings.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequireRole(auth.RoleAdmin)
	r.Route("/settings", func(r chi.Router) {
		r.With(admin).Get("/", h.handleList)
		r.With(admin).Put("/{key}", h.handleSet)
		r.With(admin).Delete("/{key}", h.handleDelete)
		r.With(admin).Post("/webhook/test", h.handleWebhookTest)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	entries, err := h.Service.List(r.Context(), user.WorkspaceID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to list settings", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

type setPayload struct {
	Value string `json:"value"`
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	key := strings.TrimSpace(chi.URLParam(r, "key"))

	var payload setPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("key", key, "key is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if err := h.Service.Set(r.Context(), user.WorkspaceID, key, payload.Value); err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to store setting", middleware.GetRequestID(r.Context()))
		return
	}

	// Audit records the key only. Sensitive values never reach the audit
	// log in plaintext.
	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "settings.set",
		EntityType: "workspace_config",
		EntityID:   key,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]bool{"saved": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	key := chi.URLParam(r, "key")

	err := h.Service.Delete(r.Context(), user.WorkspaceID, key)
	if errors.Is(err, settings.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "setting_not_found", "setting not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "failed to delete setting", middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "settings.delete",
		EntityType: "workspace_config",
		EntityID:   key,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	if err := h.Service.TestWebhook(r.Context(), user.WorkspaceID); err != nil {
		api.Fail(w, http.StatusBadGateway, "webhook_test_failed", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]bool{"delivered": true}, middleware.GetRequestID(r.Context()))
}
