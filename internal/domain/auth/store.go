package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID           string
	WorkspaceID  string
	Email        string
	Name         string
	Role         Role
	IsActive     bool
	PasswordHash string
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	var out AuthUser
	var role string
	var passwordHash *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, workspace_id, email, name, role, is_active, password_hash
    FROM users
    WHERE email = $1
    ORDER BY created_at
    LIMIT 1
  `, email).Scan(&out.ID, &out.WorkspaceID, &out.Email, &out.Name, &role, &out.IsActive, &passwordHash)
	if err != nil {
		return AuthUser{}, err
	}
	out.Role = Role(role)
	if passwordHash != nil {
		out.PasswordHash = *passwordHash
	}
	return out, nil
}

func (s *Store) FindWorkspaceUserByEmail(ctx context.Context, workspaceID, email string) (AuthUser, error) {
	var out AuthUser
	var role string
	var passwordHash *string
	err := s.DB.QueryRow(ctx, `
    SELECT id, workspace_id, email, name, role, is_active, password_hash
    FROM users
    WHERE workspace_id = $1 AND email = $2
  `, workspaceID, email).Scan(&out.ID, &out.WorkspaceID, &out.Email, &out.Name, &role, &out.IsActive, &passwordHash)
	if err != nil {
		return AuthUser{}, err
	}
	out.Role = Role(role)
	if passwordHash != nil {
		out.PasswordHash = *passwordHash
	}
	return out, nil
}

func (s *Store) DefaultWorkspaceID(ctx context.Context) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, "SELECT id FROM workspaces ORDER BY created_at LIMIT 1").Scan(&id)
	return id, err
}

func (s *Store) CreateOAuthUser(ctx context.Context, workspaceID, email, name, msOID string) (AuthUser, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (workspace_id, email, name, role, is_active, ms_oid)
    VALUES ($1,$2,$3,$4,true,$5)
    RETURNING id
  `, workspaceID, email, name, string(RoleTaskOwner), msOID).Scan(&id)
	if err != nil {
		return AuthUser{}, err
	}
	return AuthUser{ID: id, WorkspaceID: workspaceID, Email: email, Name: name, Role: RoleTaskOwner, IsActive: true}, nil
}

func (s *Store) UpdateOAuthIdentity(ctx context.Context, userID, name, msOID string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE users SET name = COALESCE(NULLIF($1,''), name), ms_oid = $2, last_login_at = now()
    WHERE id = $3
  `, name, msOID, userID)
	return err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login_at = now() WHERE id = $1", userID)
	return err
}
