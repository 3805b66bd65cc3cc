package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/trustlens/internal/model"
)

// Append stores entry with a fresh ID and the current timestamp and returns
// the stored entry. Caller-supplied ID and Timestamp are ignored.
func (s *Store) Append(ctx context.Context, entry model.AuditLogEntry) (model.AuditLogEntry, error) {
	entry.ID = s.ids.Generate()
	entry.Timestamp = s.sched.Now().UTC().Format(time.RFC3339)
	if err := s.insert(ctx, entry); err != nil {
		return model.AuditLogEntry{}, fmt.Errorf("append audit entry: %w", err)
	}
	return entry, nil
}

// Seed stores fixture entries as given, in order. Missing IDs are generated.
func (s *Store) Seed(ctx context.Context, entries []model.AuditLogEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			e.ID = s.ids.Generate()
		}
		if err := s.insert(ctx, e); err != nil {
			return fmt.Errorf("seed audit entry %s: %w", e.ID, err)
		}
	}
	return nil
}

func (s *Store) insert(ctx context.Context, e model.AuditLogEntry) error {
	before, err := marshalState(e.BeforeState)
	if err != nil {
		return fmt.Errorf("before state: %w", err)
	}
	after, err := marshalState(e.AfterState)
	if err != nil {
		return fmt.Errorf("after state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, timestamp, actor, role, action, object_type, object_id, reason, before_state, after_state, request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Timestamp,
		e.Actor,
		e.Role,
		e.Action,
		e.ObjectType,
		e.ObjectID,
		e.Reason,
		before,
		after,
		e.RequestID,
	)
	return err
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Actor      string
	Action     string
	ObjectType string
	ObjectID   string
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]model.AuditLogEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, v string) {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	add("actor", f.Actor)
	add("action", f.Action)
	add("object_type", f.ObjectType)
	add("object_id", f.ObjectID)

	q := `
		SELECT id, timestamp, actor, role, action, object_type, object_id, reason, before_state, after_state, request_id
		FROM audit_log`
	if len(where) > 0 {
		q += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	q += "\n\t\tORDER BY seq DESC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditLogEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit log: %w", err)
	}
	return n, nil
}

// Reset drops every entry by recreating the table.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS audit_log"); err != nil {
		return fmt.Errorf("reset audit log: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("reset audit log: %w", err)
	}
	return migrateToV1(s.db)
}

func scanEntry(rows *sql.Rows) (model.AuditLogEntry, error) {
	var (
		e             model.AuditLogEntry
		before, after sql.NullString
	)
	err := rows.Scan(
		&e.ID,
		&e.Timestamp,
		&e.Actor,
		&e.Role,
		&e.Action,
		&e.ObjectType,
		&e.ObjectID,
		&e.Reason,
		&before,
		&after,
		&e.RequestID,
	)
	if err != nil {
		return model.AuditLogEntry{}, fmt.Errorf("scan audit entry: %w", err)
	}

	if e.BeforeState, err = unmarshalState(before); err != nil {
		return model.AuditLogEntry{}, fmt.Errorf("audit entry %s before state: %w", e.ID, err)
	}
	if e.AfterState, err = unmarshalState(after); err != nil {
		return model.AuditLogEntry{}, fmt.Errorf("audit entry %s after state: %w", e.ID, err)
	}
	return e, nil
}

func marshalState(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalState(ns sql.NullString) (any, error) {
	if !ns.Valid {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, err
	}
	return v, nil
}
