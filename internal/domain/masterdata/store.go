package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate name")
	ErrInUse     = errors.New("in use")
	ErrBadKind   = errors.New("unknown reference kind")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) List(ctx context.Context, workspaceID string, kind Kind) ([]RefEntity, error) {
	table := kind.table()
	if table == "" {
		return nil, ErrBadKind
	}
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`
    SELECT id, name, created_at
    FROM %s
    WHERE workspace_id = $1
    ORDER BY name
  `, table), workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RefEntity
	for rows.Next() {
		var row RefEntity
		if err := rows.Scan(&row.ID, &row.Name, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, workspaceID string, kind Kind, name string) (string, error) {
	table := kind.table()
	if table == "" {
		return "", ErrBadKind
	}
	var id string
	err := s.DB.QueryRow(ctx, fmt.Sprintf(`
    INSERT INTO %s (workspace_id, name)
    VALUES ($1,$2)
    RETURNING id
  `, table), workspaceID, name).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", ErrDuplicate
		}
		return "", err
	}
	return id, nil
}

// FindOrCreate resolves a reference row by exact name match, creating it when
// absent. Matching is case sensitive on purpose: the importer relies on it.
func (s *Store) FindOrCreate(ctx context.Context, workspaceID string, kind Kind, name string) (string, error) {
	table := kind.table()
	if table == "" {
		return "", ErrBadKind
	}
	var id string
	err := s.DB.QueryRow(ctx, fmt.Sprintf("SELECT id FROM %s WHERE workspace_id = $1 AND name = $2", table), workspaceID, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}

	err = s.DB.QueryRow(ctx, fmt.Sprintf(`
    INSERT INTO %s (workspace_id, name)
    VALUES ($1,$2)
    ON CONFLICT (workspace_id, name) DO UPDATE SET name = EXCLUDED.name
    RETURNING id
  `, table), workspaceID, name).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Delete removes a reference row. Rows referenced by a task fail the
// foreign-key check and surface as ErrInUse.
func (s *Store) Delete(ctx context.Context, workspaceID string, kind Kind, id string) error {
	table := kind.table()
	if table == "" {
		return ErrBadKind
	}
	tag, err := s.DB.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE workspace_id = $1 AND id = $2", table), workspaceID, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListMasters(ctx context.Context, workspaceID string) ([]ComplianceMaster, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, compliance_id, name, title, description, law_id, department_id, frequency, impact, created_at
    FROM compliance_masters
    WHERE workspace_id = $1
    ORDER BY compliance_id
  `, workspaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComplianceMaster
	for rows.Next() {
		var row ComplianceMaster
		if err := rows.Scan(&row.ID, &row.ComplianceID, &row.Name, &row.Title, &row.Description, &row.LawID, &row.DepartmentID, &row.Frequency, &row.Impact, &row.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) GetMasterByComplianceID(ctx context.Context, workspaceID, complianceID string) (ComplianceMaster, error) {
	var row ComplianceMaster
	err := s.DB.QueryRow(ctx, `
    SELECT id, compliance_id, name, title, description, law_id, department_id, frequency, impact, created_at
    FROM compliance_masters
    WHERE workspace_id = $1 AND compliance_id = $2
  `, workspaceID, complianceID).Scan(&row.ID, &row.ComplianceID, &row.Name, &row.Title, &row.Description, &row.LawID, &row.DepartmentID, &row.Frequency, &row.Impact, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ComplianceMaster{}, ErrNotFound
	}
	if err != nil {
		return ComplianceMaster{}, err
	}
	return row, nil
}

func (s *Store) CreateMaster(ctx context.Context, workspaceID string, payload ComplianceMaster) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO compliance_masters (workspace_id, compliance_id, name, title, description, law_id, department_id, frequency, impact)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING id
  `, workspaceID, payload.ComplianceID, payload.Name, payload.Title, payload.Description, payload.LawID, payload.DepartmentID, payload.Frequency, payload.Impact).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return "", ErrDuplicate
		}
		return "", err
	}
	return id, nil
}

func (s *Store) DeleteMaster(ctx context.Context, workspaceID, id string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM compliance_masters WHERE workspace_id = $1 AND id = $2", workspaceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
