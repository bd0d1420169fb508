package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event is one append-only audit row. Events are never updated or deleted.
type Event struct {
	ID         string          `json:"id"`
	UserID     *string         `json:"userId,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   *string         `json:"entityId,omitempty"`
	Changes    json.RawMessage `json:"changes,omitempty"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Entry is what callers hand to Record.
type Entry struct {
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	Changes    any
	RequestID  string
	IP         string
}

// Filter narrows audit listings. Zero values mean no constraint.
type Filter struct {
	Action     string
	EntityType string
	UserID     string
	From       *time.Time
	To         *time.Time
}

type Service struct {
	Pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{Pool: pool}
}

// Record appends an audit event. Auditing never fails the operation being
// audited: errors are logged and dropped.
func (s *Service) Record(ctx context.Context, workspaceID string, entry Entry) {
	var changes []byte
	if entry.Changes != nil {
		encoded, err := json.Marshal(entry.Changes)
		if err != nil {
			slog.Warn("audit changes encode failed", "action", entry.Action, "error", err)
		} else {
			changes = encoded
		}
	}

	var userID *string
	if entry.UserID != "" {
		userID = &entry.UserID
	}
	var entityID *string
	if entry.EntityID != "" {
		entityID = &entry.EntityID
	}

	_, err := s.Pool.Exec(ctx,
		`INSERT INTO audit_events (workspace_id, user_id, action, entity_type, entity_id, changes, request_id, ip)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		workspaceID, userID, entry.Action, entry.EntityType, entityID, changes, entry.RequestID, entry.IP)
	if err != nil {
		slog.Warn("audit record failed", "action", entry.Action, "entityType", entry.EntityType, "error", err)
	}
}

func buildWhere(workspaceID string, filter Filter) (string, []any) {
	where := "workspace_id = $1"
	args := []any{workspaceID}
	idx := 2
	if filter.Action != "" {
		where += fmt.Sprintf(" AND action = $%d", idx)
		args = append(args, filter.Action)
		idx++
	}
	if filter.EntityType != "" {
		where += fmt.Sprintf(" AND entity_type = $%d", idx)
		args = append(args, filter.EntityType)
		idx++
	}
	if filter.UserID != "" {
		where += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, filter.UserID)
		idx++
	}
	if filter.From != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		where += fmt.Sprintf(" AND created_at < $%d", idx)
		args = append(args, *filter.To)
	}
	return where, args
}

func (s *Service) List(ctx context.Context, workspaceID string, filter Filter, limit, offset int) ([]Event, int, error) {
	where, args := buildWhere(workspaceID, filter)

	var total int
	if err := s.Pool.QueryRow(ctx, "SELECT count(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, user_id, action, entity_type, entity_id, changes, request_id, ip, created_at
		 FROM audit_events WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID,
			&e.Changes, &e.RequestID, &e.IP, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}
