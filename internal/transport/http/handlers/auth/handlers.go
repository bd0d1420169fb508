package authhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"comply/internal/domain/audit"
	"comply/internal/domain/auth"
	"comply/internal/platform/config"
	"comply/internal/platform/identity"
	"comply/internal/transport/http/api"
	"comply/internal/transport/http/middleware"
	"comply/internal/transport/http/shared"
)

const oauthStateCookie = "comply_oauth_state"

type Handler struct {
	Service  *auth.Service
	Identity *identity.Client
	Audit    *audit.Service
	Cfg      config.Config
}

func NewHandler(service *auth.Service, idp *identity.Client, auditSvc *audit.Service, cfg config.Config) *Handler {
	return &Handler{Service: service, Identity: idp, Audit: auditSvc, Cfg: cfg}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLocalLogin)
		r.Get("/oauth/login", h.handleOAuthLogin)
		r.Get("/oauth/callback", h.handleOAuthCallback)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string    `json:"id"`
		Email string    `json:"email"`
		Name  string    `json:"name"`
		Role  auth.Role `json:"role"`
	} `json:"user"`
}

func (h *Handler) issueSession(w http.ResponseWriter, user auth.AuthUser) (sessionResponse, error) {
	token, err := auth.GenerateToken(h.Cfg.JWTSecret, auth.Claims{
		UserID:      user.ID,
		WorkspaceID: user.WorkspaceID,
		Role:        string(user.Role),
	}, h.Cfg.SessionTTL)
	if err != nil {
		return sessionResponse{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.Cfg.SessionTTL),
	})

	var resp sessionResponse
	resp.Token = token
	resp.User.ID = user.ID
	resp.User.Email = user.Email
	resp.User.Name = user.Name
	resp.User.Role = user.Role
	return resp, nil
}

func (h *Handler) handleLocalLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("email", payload.Email, "email is required")
	v.Required("password", payload.Password, "password is required")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	user, err := h.Service.LoginLocal(r.Context(), strings.ToLower(strings.TrimSpace(payload.Email)), payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserInactive) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to log in", middleware.GetRequestID(r.Context()))
		return
	}

	resp, err := h.issueSession(w, user)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "failed to issue session", middleware.GetRequestID(r.Context()))
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.ID,
		Action:     "auth.login",
		EntityType: "user",
		EntityID:   user.ID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	api.Success(w, resp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	if !h.Identity.Configured() {
		api.Fail(w, http.StatusServiceUnavailable, "oauth_unconfigured", "single sign-on is not configured", middleware.GetRequestID(r.Context()))
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	http.Redirect(w, r, h.Identity.LoginURL(state), http.StatusFound)
}

// handleOAuthCallback finishes the authorization-code flow. Errors redirect
// back to the frontend with an error code rather than rendering JSON, since
// the browser lands here directly.
func (h *Handler) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	fail := func(code string) {
		http.Redirect(w, r, h.Cfg.AppBaseURL+"/login?error="+url.QueryEscape(code), http.StatusFound)
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		fail(errParam)
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || cookie.Value != state {
		fail("state_mismatch")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		fail("missing_code")
		return
	}

	profile, err := h.Identity.Exchange(r.Context(), code)
	if err != nil {
		fail("exchange_failed")
		return
	}

	workspaceID, err := h.Service.Store.DefaultWorkspaceID(r.Context())
	if err != nil {
		fail("no_workspace")
		return
	}

	user, err := h.Service.UpsertOAuthUser(r.Context(), workspaceID, profile.Email, profile.Name, profile.OID)
	if errors.Is(err, auth.ErrUserInactive) {
		fail("account_disabled")
		return
	}
	if err != nil {
		fail("login_failed")
		return
	}

	if _, err := h.issueSession(w, user); err != nil {
		fail("login_failed")
		return
	}

	h.Audit.Record(r.Context(), user.WorkspaceID, audit.Entry{
		UserID:     user.ID,
		Action:     "auth.oauth.login",
		EntityType: "user",
		EntityID:   user.ID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	})
	http.Redirect(w, r, h.Cfg.AppBaseURL+"/", http.StatusFound)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	api.Success(w, map[string]bool{"loggedOut": true}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{
		"userId":      user.UserID,
		"workspaceId": user.WorkspaceID,
		"role":        user.Role,
	}, middleware.GetRequestID(r.Context()))
}
