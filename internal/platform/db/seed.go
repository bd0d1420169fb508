package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"comply/internal/domain/auth"
	"comply/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	workspaceID, err := ensureWorkspace(ctx, pool, cfg.SeedWorkspaceName)
	if err != nil {
		return err
	}

	if cfg.SeedAdminEmail != "" {
		if err := ensureAdminUser(ctx, pool, workspaceID, cfg.SeedAdminEmail, cfg.SeedAdminName, cfg.SeedAdminPassword); err != nil {
			return err
		}
	}

	return nil
}

func ensureWorkspace(ctx context.Context, pool *pgxpool.Pool, name string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, "SELECT id FROM workspaces WHERE name = $1", name).Scan(&id)
	if err == nil {
		return id, nil
	}

	err = pool.QueryRow(ctx, "INSERT INTO workspaces (name) VALUES ($1) RETURNING id", name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func ensureAdminUser(ctx context.Context, pool *pgxpool.Pool, workspaceID, email, name, password string) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE workspace_id = $1 AND email = $2", workspaceID, email).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var passwordHash *string
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		value := string(hashed)
		passwordHash = &value
	}

	_, err := pool.Exec(ctx, `
    INSERT INTO users (workspace_id, email, name, role, is_active, password_hash)
    VALUES ($1,$2,$3,$4,true,$5)
  `, workspaceID, email, name, string(auth.RoleAdmin), passwordHash)
	return err
}
