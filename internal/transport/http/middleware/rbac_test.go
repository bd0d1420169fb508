package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"comply/internal/domain/auth"
)

func TestRequireRoleRejectsUnauthenticated(t *testing.T) {
	guarded := RequireRole(auth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRoleRejectsWrongRole(t *testing.T) {
	guarded := RequireRole(auth.RoleAdmin, auth.RoleReviewer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	userCtx := context.WithValue(context.Background(), ctxKeyUser, auth.UserContext{
		UserID:      "u1",
		WorkspaceID: "w1",
		Role:        auth.RoleTaskOwner,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil).WithContext(userCtx)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	guarded := RequireRole(auth.RoleTaskOwner)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	userCtx := context.WithValue(context.Background(), ctxKeyUser, auth.UserContext{
		UserID:      "u1",
		WorkspaceID: "w1",
		Role:        auth.RoleTaskOwner,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/t1/complete", nil).WithContext(userCtx)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}
