package importhandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/importer"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

const maxImportMultipartBytes = 10 * 1024 * 1024

type Handler struct {
	Service *importer.Service
	Audit   *audit.Service
}

func NewHandler(service *importer.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequireRole(auth.RoleAdmin)
	r.Route("/imports", func(r chi.Router) {
		r.With(admin).Post("/", h.handleRun)
		r.With(admin).Get("/", h.handleListJobs)
		r.With(admin).Get("/{jobID}", h.handleGetJob)
		r.With(admin).Get("/{jobID}/rows", h.handleListRows)
	})
}

// handleRun accepts a multipart upload with a "file" part and a "mode" field
// of preview or commit.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	if err := r.ParseMultipartForm(maxImportMultipartBytes); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_upload", "expected a multipart upload with a csv file", middleware.GetRequestID(r.Context()))
		return
	}

	mode := strings.ToUpper(strings.TrimSpace(r.FormValue("mode")))
	if mode == "" {
		mode = importer.ModePreview
	}
	if mode != importer.ModePreview && mode != importer.ModeCommit {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{
			{Field: "mode", Reason: "mode must be preview or commit"},
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{
			{Field: "file", Reason: "a csv file is required"},
		})
		return
	}
	defer file.Close()

	result, err := h.Service.Run(r.Context(), user.WorkspaceID, user.UserID, header.Filename, file, mode)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "import_failed", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "import.run",
		EntityType: "csv_import_job",
		EntityID:   result.JobID,
		Changes: map[string]any{
			"mode":      result.Mode,
			"fileName":  header.Filename,
			"total":     result.Total,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		},
		RequestID: middleware.GetRequestID(r.Context()),
		IP:        shared.ClientIP(r),
	})
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	page := shared.ParsePagination(r, 20, 100)

	jobs, total, err := h.Service.ListJobs(r.Context(), user.WorkspaceID, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "import_list_failed", "failed to list import jobs", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"items": jobs, "total": total}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	job, err := h.Service.GetJob(r.Context(), user.WorkspaceID, chi.URLParam(r, "jobID"))
	if errors.Is(err, importer.ErrJobNotFound) {
		api.Fail(w, http.StatusNotFound, "import_not_found", "import job not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "import_get_failed", "failed to load import job", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, job, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRows(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	failedOnly := r.URL.Query().Get("failed") == "true"

	rows, err := h.Service.ListRows(r.Context(), user.WorkspaceID, chi.URLParam(r, "jobID"), failedOnly)
	if errors.Is(err, importer.ErrJobNotFound) {
		api.Fail(w, http.StatusNotFound, "import_not_found", "import job not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "import_rows_failed", "failed to load import rows", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rows, middleware.GetRequestID(r.Context()))
}
