package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("config key not found")

type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

type record struct {
	Key       string
	Value     *string
	ValueEnc  []byte
	Encrypted bool
	UpdatedAt time.Time
}

func (s *Store) get(ctx context.Context, workspaceID, key string) (record, error) {
	var rec record
	err := s.Pool.QueryRow(ctx,
		`SELECT key, value, value_enc, is_encrypted, updated_at
		 FROM workspace_config WHERE workspace_id = $1 AND key = $2`,
		workspaceID, key).Scan(&rec.Key, &rec.Value, &rec.ValueEnc, &rec.Encrypted, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return record{}, ErrNotFound
	}
	if err != nil {
		return record{}, fmt.Errorf("get config %s: %w", key, err)
	}
	return rec, nil
}

func (s *Store) list(ctx context.Context, workspaceID string) ([]record, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT key, value, value_enc, is_encrypted, updated_at
		 FROM workspace_config WHERE workspace_id = $1 ORDER BY key`,
		workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list config: %w", err)
	}
	defer rows.Close()

	records := make([]record, 0)
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.Key, &rec.Value, &rec.ValueEnc, &rec.Encrypted, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) setPlain(ctx context.Context, workspaceID, key, value string) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO workspace_config (workspace_id, key, value, value_enc, is_encrypted, updated_at)
		 VALUES ($1, $2, $3, NULL, false, now())
		 ON CONFLICT (workspace_id, key)
		 DO UPDATE SET value = $3, value_enc = NULL, is_encrypted = false, updated_at = now()`,
		workspaceID, key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

func (s *Store) setEncrypted(ctx context.Context, workspaceID, key string, ciphertext []byte) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO workspace_config (workspace_id, key, value, value_enc, is_encrypted, updated_at)
		 VALUES ($1, $2, NULL, $3, true, now())
		 ON CONFLICT (workspace_id, key)
		 DO UPDATE SET value = NULL, value_enc = $3, is_encrypted = true, updated_at = now()`,
		workspaceID, key, ciphertext)
	if err != nil {
		return fmt.Errorf("set encrypted config %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, workspaceID, key string) error {
	tag, err := s.Pool.Exec(ctx,
		"DELETE FROM workspace_config WHERE workspace_id = $1 AND key = $2", workspaceID, key)
	if err != nil {
		return fmt.Errorf("delete config %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
