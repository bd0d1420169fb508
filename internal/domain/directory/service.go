package directory

import (
	"context"

	"comply/internal/domain/auth"
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

func (s *Service) List(ctx context.Context, workspaceID string) ([]User, error) {
	return s.Store.List(ctx, workspaceID)
}

func (s *Service) Get(ctx context.Context, workspaceID, userID string) (User, error) {
	return s.Store.Get(ctx, workspaceID, userID)
}

func (s *Service) GetByEmail(ctx context.Context, workspaceID, email string) (User, error) {
	return s.Store.GetByEmail(ctx, workspaceID, email)
}

func (s *Service) Create(ctx context.Context, workspaceID, email, name string, role auth.Role) (string, error) {
	return s.Store.Create(ctx, workspaceID, email, name, role)
}

func (s *Service) Update(ctx context.Context, workspaceID, userID string, name *string, role *auth.Role, isActive *bool) error {
	return s.Store.Update(ctx, workspaceID, userID, name, role, isActive)
}
