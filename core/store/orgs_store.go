package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Organization is the tenant boundary. Quota fields are read-only context
// for the lifecycle engine; membership mutation enforces them elsewhere.
type Organization struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Active       bool            `json:"active"`
	IsCore       bool            `json:"is_core"`
	MaxUsers     int             `json:"max_users"`
	CurrentUsers int             `json:"current_users"`
	AccessFlags  map[string]bool `json:"access_flags,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type OrgsStore interface {
	Create(ctx context.Context, org *Organization) (string, error)
	Update(ctx context.Context, org *Organization) error
	Get(ctx context.Context, id string) (*Organization, error)
	FindCore(ctx context.Context) (*Organization, error)
	List(ctx context.Context) ([]Organization, error)
}

type orgsStore struct {
	db *DB
}

func NewOrgsStore(db *DB) OrgsStore {
	return &orgsStore{db: db}
}

const orgColumns = `id, name, active, is_core, max_users, current_users, access_flags, created_at, updated_at`

func (s *orgsStore) Create(ctx context.Context, org *Organization) (string, error) {
	if org.ID == "" {
		org.ID = uuid.Must(uuid.NewV4()).String()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations(id, name, active, is_core, max_users, current_users, access_flags, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		org.ID, strings.TrimSpace(org.Name), boolToInt(org.Active), boolToInt(org.IsCore),
		org.MaxUsers, org.CurrentUsers, flagsToJSON(org.AccessFlags), now, now)
	if err != nil {
		return "", err
	}
	return org.ID, nil
}

func (s *orgsStore) Update(ctx context.Context, org *Organization) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET name=?, active=?, is_core=?, max_users=?, current_users=?, access_flags=?, updated_at=?
		WHERE id=?`,
		strings.TrimSpace(org.Name), boolToInt(org.Active), boolToInt(org.IsCore),
		org.MaxUsers, org.CurrentUsers, flagsToJSON(org.AccessFlags), now, org.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	org.UpdatedAt = now
	return nil
}

func (s *orgsStore) Get(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id=?`, id)
	return scanOrg(row)
}

func (s *orgsStore) FindCore(ctx context.Context) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE is_core=1 LIMIT 1`)
	return scanOrg(row)
}

func (s *orgsStore) List(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		org, err := scanOrgFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *org)
	}
	return out, rows.Err()
}

func scanOrgFrom(sc rowScanner) (*Organization, error) {
	var org Organization
	var active, isCore int
	var flags string
	err := sc.Scan(&org.ID, &org.Name, &active, &isCore, &org.MaxUsers, &org.CurrentUsers,
		&flags, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	org.Active = active != 0
	org.IsCore = isCore != 0
	if flags != "" {
		_ = json.Unmarshal([]byte(flags), &org.AccessFlags)
	}
	return &org, nil
}

func scanOrg(row *sql.Row) (*Organization, error) { return scanOrgFrom(row) }

func flagsToJSON(flags map[string]bool) string {
	if len(flags) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(flags)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
