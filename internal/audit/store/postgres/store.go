package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"docverify/internal/audit"
	id "docverify/pkg/domain"
	txcontext "docverify/pkg/platform/tx"
)

// AggregateType tags outbox rows written by the ledger.
const AggregateType = "verification_request"

// Store implements audit.Store with the transactional outbox pattern. Each
// Append writes the audit_logs row and an outbox row through the transaction
// carried in ctx, so both commit or roll back with the lifecycle mutation.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OutboxPayload is the JSON published to Kafka for each entry.
type OutboxPayload struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id,omitempty"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Metadata  audit.Metadata `json:"metadata"`
	Timestamp string         `json:"timestamp"`
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	var requestID *uuid.UUID
	aggregateID := entry.ID.String()
	if entry.RequestID != nil {
		rid := uuid.UUID(*entry.RequestID)
		requestID = &rid
		aggregateID = rid.String()
	}

	exec := txcontext.Pick(ctx, s.db)
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_logs (id, request_id, actor_id, action, metadata, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(entry.ID), requestID, uuid.UUID(entry.ActorID), entry.Action.String(), metadataJSON, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	payload := OutboxPayload{
		ID:        entry.ID.String(),
		ActorID:   entry.ActorID.String(),
		Action:    entry.Action.String(),
		Metadata:  entry.Metadata,
		Timestamp: entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if requestID != nil {
		payload.RequestID = requestID.String()
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), AggregateType, aggregateID, entry.Action.String(), payloadJSON, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// List returns matching entries newest first.
func (s *Store) List(ctx context.Context, filter audit.ListFilter) ([]audit.Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.RequestID != nil {
		args = append(args, uuid.UUID(*filter.RequestID))
		where = append(where, fmt.Sprintf("request_id = $%d", len(args)))
	}
	if filter.ActorID != nil {
		args = append(args, uuid.UUID(*filter.ActorID))
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action.String())
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}

	query := `SELECT id, request_id, actor_id, action, metadata, timestamp FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var (
			entry        audit.Entry
			entryID      uuid.UUID
			requestID    uuid.NullUUID
			actorID      uuid.UUID
			action       string
			metadataJSON []byte
		)
		if err := rows.Scan(&entryID, &requestID, &actorID, &action, &metadataJSON, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("decode audit metadata: %w", err)
		}
		entry.ID = id.AuditEntryID(entryID)
		entry.ActorID = id.UserID(actorID)
		entry.Action = audit.Action(action)
		if requestID.Valid {
			rid := id.RequestID(requestID.UUID)
			entry.RequestID = &rid
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// FetchUnpublished returns up to limit unpublished rows, oldest first. Inside
// a transaction the rows stay locked until commit and concurrent relays skip them.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxMessage, error) {
	rows, err := txcontext.Pick(ctx, s.db).QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []audit.OutboxMessage
	for rows.Next() {
		var m audit.OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateID, &m.EventType, &m.Payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

// MarkPublished stamps the given outbox rows as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, u := range ids {
		raw[i] = u.String()
	}
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE outbox SET published_at = $2
		WHERE id = ANY($1::uuid[]) AND published_at IS NULL
	`, pq.Array(raw), at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
