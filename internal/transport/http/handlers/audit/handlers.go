package audithandler

import (
	"encoding/csv"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

// exportLimit caps how many events one CSV download carries.
const exportLimit = 10000

type Handler struct {
	Service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequireRole(auth.RoleAdmin)
	r.With(admin).Get("/audit", h.handleList)
	r.With(admin).Get("/audit/export.csv", h.handleExport)
}

func parseFilter(r *http.Request) audit.Filter {
	filter := audit.Filter{
		Action:     r.URL.Query().Get("action"),
		EntityType: r.URL.Query().Get("entityType"),
		UserID:     r.URL.Query().Get("userId"),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := shared.ParseDate(raw); err == nil {
			filter.From = &parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := shared.ParseDate(raw); err == nil {
			// "to" is inclusive of the named day.
			end := parsed.Add(24 * time.Hour)
			filter.To = &end
		}
	}
	return filter
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 50, 200)

	events, total, err := h.Service.List(r.Context(), user.WorkspaceID, parseFilter(r), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": events, "total": total}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	events, _, err := h.Service.List(r.Context(), user.WorkspaceID, parseFilter(r), exportLimit, 0)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_export_failed", "failed to export audit events", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Timestamp", "User Id", "Action", "Entity Type", "Entity Id", "Request Id", "IP", "Changes"})
	for _, e := range events {
		userID := ""
		if e.UserID != nil {
			userID = *e.UserID
		}
		entityID := ""
		if e.EntityID != nil {
			entityID = *e.EntityID
		}
		_ = cw.Write([]string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			userID,
			e.Action,
			e.EntityType,
			entityID,
			e.RequestID,
			e.IP,
			string(e.Changes),
		})
	}
	cw.Flush()
}
