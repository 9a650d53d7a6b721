package store

import (
	"context"
	"testing"
	"time"
)

func seedAuditEntries(t *testing.T, s AuditStore, n int) []string {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.Record(context.Background(), &AuditEntry{
			Scope:     AuditScopeIncident,
			TargetID:  "inc-1",
			ActorID:   "u-1",
			Action:    "status_change",
			Changes:   []FieldChange{{Key: "status", From: "draft", To: "review"}},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestAuditRecordRequiresAction(t *testing.T) {
	db := newTestDB(t)
	s := NewAuditStore(db)
	if _, err := s.Record(context.Background(), &AuditEntry{Scope: AuditScopeUser}); err == nil {
		t.Error("blank action must be rejected")
	}
	if _, err := s.Record(context.Background(), nil); err == nil {
		t.Error("nil entry must be rejected")
	}
}

func TestAuditQueryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	s := NewAuditStore(db)
	seedAuditEntries(t, s, 5)
	items, next, err := s.Query(context.Background(), AuditFilter{Scope: AuditScopeIncident, Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if next != "" {
		t.Errorf("unexpected continuation cursor %q", next)
	}
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].CreatedAt.After(items[i-1].CreatedAt) {
			t.Fatalf("items out of order at %d: %v after %v", i, items[i].CreatedAt, items[i-1].CreatedAt)
		}
	}
	if len(items[0].Changes) != 1 || items[0].Changes[0].Key != "status" {
		t.Errorf("changes round-trip failed: %+v", items[0].Changes)
	}
}

func TestAuditQueryCursorPagination(t *testing.T) {
	db := newTestDB(t)
	s := NewAuditStore(db)
	seedAuditEntries(t, s, 7)
	ctx := context.Background()

	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		items, next, err := s.Query(ctx, AuditFilter{Scope: AuditScopeIncident, Limit: 3, Cursor: cursor})
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		for _, e := range items {
			if seen[e.ID] {
				t.Fatalf("entry %s returned twice", e.ID)
			}
			seen[e.ID] = true
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
	}
	if len(seen) != 7 {
		t.Errorf("paged through %d entries, want 7", len(seen))
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
}

func TestAuditQueryInvalidCursor(t *testing.T) {
	db := newTestDB(t)
	s := NewAuditStore(db)
	if _, _, err := s.Query(context.Background(), AuditFilter{Cursor: "not base64!"}); err == nil {
		t.Error("invalid cursor must be rejected")
	}
}

func TestAuditQueryFilters(t *testing.T) {
	db := newTestDB(t)
	s := NewAuditStore(db)
	ctx := context.Background()
	seedAuditEntries(t, s, 2)
	if _, err := s.Record(ctx, &AuditEntry{
		Scope:    AuditScopeUser,
		TargetID: "u-9",
		ActorID:  "u-1",
		Action:   "account_created",
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	items, _, err := s.Query(ctx, AuditFilter{Scope: AuditScopeUser})
	if err != nil || len(items) != 1 || items[0].Action != "account_created" {
		t.Errorf("scope filter: %v / %d", err, len(items))
	}
	items, _, err = s.Query(ctx, AuditFilter{Action: "status_change"})
	if err != nil || len(items) != 2 {
		t.Errorf("action filter: %v / %d", err, len(items))
	}
	items, _, err = s.Query(ctx, AuditFilter{
		From: time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC),
		To:   time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC),
	})
	if err != nil || len(items) != 1 {
		t.Errorf("time window filter: %v / %d", err, len(items))
	}
}

func TestAuditCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 5, 4, 3, 2, 1, 999, time.UTC)
	cursor := encodeAuditCursor(at, "abc")
	gotAt, gotID, err := decodeAuditCursor(cursor)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !gotAt.Equal(at) || gotID != "abc" {
		t.Errorf("round trip = %v/%q", gotAt, gotID)
	}
}
