package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"comply/internal/domain/auth"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

const pgUniqueViolation = "23505"

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const userColumns = "id, email, name, role, is_active, ms_oid, last_login_at, created_at"

func scanUser(row pgx.Row) (User, error) {
	var out User
	var role string
	if err := row.Scan(&out.ID, &out.Email, &out.Name, &role, &out.IsActive, &out.MsOID, &out.LastLoginAt, &out.CreatedAt); err != nil {
		return User{}, err
	}
	out.Role = auth.Role(role)
	return out, nil
}

func (s *Store) List(ctx context.Context, workspaceID string) ([]User, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE workspace_id = $1
    ORDER BY email
  `, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, workspaceID, userID string) (User, error) {
	user, err := scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE workspace_id = $1 AND id = $2
  `, workspaceID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (s *Store) GetByEmail(ctx context.Context, workspaceID, email string) (User, error) {
	user, err := scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE workspace_id = $1 AND email = $2
  `, workspaceID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (s *Store) Create(ctx context.Context, workspaceID, email, name string, role auth.Role) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (workspace_id, email, name, role, is_active)
    VALUES ($1,$2,$3,$4,true)
    RETURNING id
  `, workspaceID, email, name, string(role)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", ErrDuplicateEmail
		}
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, workspaceID, userID string, name *string, role *auth.Role, isActive *bool) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE users
    SET name = COALESCE($1, name),
        role = COALESCE($2, role),
        is_active = COALESCE($3, is_active)
    WHERE workspace_id = $4 AND id = $5
  `, name, roleValue(role), isActive, workspaceID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func roleValue(role *auth.Role) *string {
	if role == nil {
		return nil
	}
	value := string(*role)
	return &value
}
