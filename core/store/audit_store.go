package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Audit entries are append-only: this store exposes no update or delete.
// Tamper evidence comes from the trail being immutable once recorded.

const (
	AuditScopeUser         = "user"
	AuditScopeOrganization = "organization"
	AuditScopeIncident     = "incident"
)

type FieldChange struct {
	Key  string `json:"key"`
	From string `json:"from"`
	To   string `json:"to"`
}

type AuditEntry struct {
	ID        string        `json:"id"`
	Scope     string        `json:"scope"`
	TargetID  string        `json:"target_id,omitempty"`
	ActorID   string        `json:"actor_id,omitempty"`
	Action    string        `json:"action"`
	Changes   []FieldChange `json:"changes,omitempty"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type AuditFilter struct {
	Scope    string
	TargetID string
	ActorID  string
	Action   string
	From     time.Time
	To       time.Time
	Limit    int
	Cursor   string
}

type AuditStore interface {
	Record(ctx context.Context, entry *AuditEntry) (string, error)
	// Query returns entries newest first plus a continuation cursor;
	// an empty cursor means the sequence is exhausted.
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, string, error)
}

type auditStore struct {
	db *DB
}

func NewAuditStore(db *DB) AuditStore {
	return &auditStore{db: db}
}

func (s *auditStore) Record(ctx context.Context, entry *AuditEntry) (string, error) {
	if entry == nil || strings.TrimSpace(entry.Action) == "" {
		return "", errors.New("audit: action is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.Must(uuid.NewV4()).String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	changes := "[]"
	if len(entry.Changes) > 0 {
		raw, err := json.Marshal(entry.Changes)
		if err != nil {
			return "", err
		}
		changes = string(raw)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log(id, scope, target_id, actor_id, action, changes, note, created_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		entry.ID, strings.ToLower(strings.TrimSpace(entry.Scope)), entry.TargetID, entry.ActorID,
		entry.Action, changes, entry.Note, entry.CreatedAt)
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (s *auditStore) Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, string, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := `SELECT id, scope, target_id, actor_id, action, changes, note, created_at FROM audit_log`
	var clauses []string
	var args []any
	if filter.Scope != "" {
		clauses = append(clauses, "scope=?")
		args = append(args, strings.ToLower(filter.Scope))
	}
	if filter.TargetID != "" {
		clauses = append(clauses, "target_id=?")
		args = append(args, filter.TargetID)
	}
	if filter.ActorID != "" {
		clauses = append(clauses, "actor_id=?")
		args = append(args, filter.ActorID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, filter.Action)
	}
	if !filter.From.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		clauses = append(clauses, "created_at < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Cursor != "" {
		at, id, err := decodeAuditCursor(filter.Cursor)
		if err != nil {
			return nil, "", err
		}
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, at, at, id)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit+1)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var changes string
		if err := rows.Scan(&e.ID, &e.Scope, &e.TargetID, &e.ActorID, &e.Action, &changes, &e.Note, &e.CreatedAt); err != nil {
			return nil, "", err
		}
		if changes != "" && changes != "[]" {
			_ = json.Unmarshal([]byte(changes), &e.Changes)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		last := out[len(out)-1]
		next = encodeAuditCursor(last.CreatedAt, last.ID)
	}
	return out, next, nil
}

func encodeAuditCursor(at time.Time, id string) string {
	raw := fmt.Sprintf("%s|%s", at.UTC().Format(time.RFC3339Nano), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeAuditCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", errors.New("invalid cursor")
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", errors.New("invalid cursor")
	}
	at, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", errors.New("invalid cursor")
	}
	return at.UTC(), parts[1], nil
}
