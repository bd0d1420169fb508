package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user inactive")
)

type Service struct {
	Store *Store
}

func NewService(store *Store) *Service {
	return &Service{Store: store}
}

// LoginLocal authenticates the seeded admin (or any user with a password
// hash) against a bcrypt hash. OAuth users have no password and cannot use
// this path.
func (s *Service) LoginLocal(ctx context.Context, email, password string) (AuthUser, error) {
	user, err := s.Store.FindUserByEmail(ctx, email)
	if err != nil {
		return AuthUser{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return AuthUser{}, ErrUserInactive
	}
	if user.PasswordHash == "" {
		return AuthUser{}, ErrInvalidCredentials
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return AuthUser{}, ErrInvalidCredentials
	}
	if err := s.Store.UpdateLastLogin(ctx, user.ID); err != nil {
		return AuthUser{}, err
	}
	return user, nil
}

// UpsertOAuthUser resolves the identity-provider profile to a workspace user
// keyed by (workspaceID, email), creating a task_owner account on first
// login and refreshing name/oid/last-login afterwards.
func (s *Service) UpsertOAuthUser(ctx context.Context, workspaceID, email, name, msOID string) (AuthUser, error) {
	user, err := s.Store.FindWorkspaceUserByEmail(ctx, workspaceID, email)
	if err != nil {
		created, createErr := s.Store.CreateOAuthUser(ctx, workspaceID, email, name, msOID)
		if createErr != nil {
			return AuthUser{}, createErr
		}
		if err := s.Store.UpdateLastLogin(ctx, created.ID); err != nil {
			return AuthUser{}, err
		}
		return created, nil
	}
	if !user.IsActive {
		return AuthUser{}, ErrUserInactive
	}
	if err := s.Store.UpdateOAuthIdentity(ctx, user.ID, name, msOID); err != nil {
		return AuthUser{}, err
	}
	return user, nil
}
