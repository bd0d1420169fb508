package masterdatahandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/domain/masterdata"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

type Handler struct {
	Service *masterdata.Service
	Audit   *audit.Service
}

func NewHandler(service *masterdata.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequireRole(auth.RoleAdmin, auth.RoleReviewer, auth.RoleTaskOwner)
	write := middleware.RequireRole(auth.RoleAdmin)

	for _, ref := range []struct {
		path string
		kind masterdata.Kind
	}{
		{"/entities", masterdata.KindEntity},
		{"/departments", masterdata.KindDepartment},
		{"/laws", masterdata.KindLaw},
	} {
		ref := ref
		r.Route(ref.path, func(r chi.Router) {
			r.With(read).Get("/", h.listRef(ref.kind))
			r.With(write).Post("/", h.createRef(ref.kind))
			r.With(write).Delete("/{refID}", h.deleteRef(ref.kind))
		})
	}

	r.Route("/compliance-masters", func(r chi.Router) {
		r.With(read).Get("/", h.handleListMasters)
		r.With(write).Post("/", h.handleCreateMaster)
		r.With(write).Delete("/{masterID}", h.handleDeleteMaster)
	})
}

func failMasterDataError(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, masterdata.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "record not found", requestID)
	case errors.Is(err, masterdata.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "duplicate_name", "a record with this name already exists", requestID)
	case errors.Is(err, masterdata.ErrInUse):
		api.Fail(w, http.StatusConflict, "in_use", "record is referenced by existing tasks", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "master_data_failed", "master data operation failed", requestID)
	}
}

type namePayload struct {
	Name string `json:"name"`
}

func (h *Handler) listRef(kind masterdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())
		items, err := h.Service.List(r.Context(), user.WorkspaceID, kind)
		if err != nil {
			failMasterDataError(w, err, middleware.GetRequestID(r.Context()))
			return
		}
		api.Success(w, items, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) createRef(kind masterdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())

		var payload namePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
		v := shared.NewValidator()
		v.Required("name", payload.Name, "name is required")
		if v.Reject(w, middleware.GetRequestID(r.Context())) {
			return
		}

		id, err := h.Service.Create(r.Context(), user.WorkspaceID, kind, strings.TrimSpace(payload.Name))
		if err != nil {
			failMasterDataError(w, err, middleware.GetRequestID(r.Context()))
			return
		}

		h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
			UserID:     user.UserID,
			Action:     "masterdata.create",
			EntityType: string(kind),
			EntityID:   id,
			Changes:    payload,
			RequestID:  middleware.GetRequestID(r.Context()),
			IP:         shared.ClientIP(r),
		})
		api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) deleteRef(kind masterdata.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.GetUser(r.Context())
		refID := chi.URLParam(r, "refID")

		if err := h.Service.Delete(r.Context(), user.WorkspaceID, kind, refID); err != nil {
			failMasterDataError(w, err, middleware.GetRequestID(r.Context()))
			return
		}

		h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
			UserID:     user.UserID,
			Action:     "masterdata.delete",
			EntityType: string(kind),
			EntityID:   refID,
			RequestID:  middleware.GetRequestID(r.Context()),
			IP:         shared.ClientIP(r),
		})
		api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) handleListMasters(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	masters, err := h.Service.ListMasters(r.Context(), user.WorkspaceID)
	if err != nil {
		failMasterDataError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, masters, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateMaster(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())

	var payload masterdata.ComplianceMaster
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	v.Required("complianceId", payload.ComplianceID, "compliance id is required")
	v.Required("name", payload.Name, "name is required")
	v.Required("title", payload.Title, "title is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Service.CreateMaster(r.Context(), user.WorkspaceID, payload)
	if err != nil {
		failMasterDataError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "masterdata.master.create",
		EntityType: "compliance_master",
		EntityID:   id,
		Changes:    payload,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteMaster(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	masterID := chi.URLParam(r, "masterID")

	if err := h.Service.DeleteMaster(r.Context(), user.WorkspaceID, masterID); err != nil {
		failMasterDataError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.UserID,
		Action:     "masterdata.master.delete",
		EntityType: "compliance_master",
		EntityID:   masterID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, map[string]bool{"deleted": true}, middleware.GetRequestID(r.Context()))
}
