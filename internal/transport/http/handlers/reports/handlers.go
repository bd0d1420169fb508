package reporthandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/report"
	"comply/internal/platform/jobs"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

type Handler struct {
	Service *report.Service
	Jobs    *jobs.Service
	Audit   *audit.Service
}

func NewHandler(service *report.Service, jobsSvc *jobs.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Jobs: jobsSvc, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	review := middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer)
	r.Route("/reports", func(r chi.Router) {
		r.With(review).Get("/summary", h.handleSummary)
		r.With(review).Get("/at-risk", h.handleAtRisk)
		r.With(review).Get("/runs", h.handleRuns)
		r.With(review).Get("/export.csv", h.handleExportCSV)
		r.With(review).Get("/export.pdf", h.handleExportPDF)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/digest/run", h.handleRunDigest)
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	snap, err := h.Service.Snapshot(r.Context(), user.WorkspaceID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build summary", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, snap, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAtRisk(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	tasks, err := h.Service.AtRisk(r.Context(), user.WorkspaceID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to list at-risk tasks", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, tasks, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 20, 100)

	runs, total, err := h.Service.ListRuns(r.Context(), user.WorkspaceID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to list report runs", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": runs, "total": total}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="compliance-tasks.csv"`)
	if err := h.Service.WriteCSV(r.Context(), user.WorkspaceID, w); err != nil {
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export tasks", middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="compliance-tasks.pdf"`)
	if err := h.Service.WritePDF(r.Context(), user.WorkspaceID, w); err != nil {
		api.Fail(w, http.StatusInternalServerError, "export_failed", "failed to export tasks", middleware.GetRequestID(r.Context()))
	}
}

// handleRunDigest triggers this week's digest through the job runner, forcing
// a send even when one already went out.
func (h *Handler) handleRunDigest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	details, err := h.Jobs.RunNow(r.Context(), jobs.JobWeeklyDigest, user.WorkspaceID, func(ctx context.Context) (any, error) {
		sent, err := h.Service.SendWeeklyDigest(ctx, user.WorkspaceID, time.Now().UTC(), true)
		return map[string]any{"sent": sent}, err
	})
	if err != nil {
		api.Fail(w, http.StatusBadGateway, "digest_failed", "failed to send weekly digest", middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "report.digest.run",
		EntityType: "report_run",
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}
