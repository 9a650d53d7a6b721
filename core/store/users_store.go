package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

var ErrNotFound = errors.New("not found")

// Role names are a fixed enumeration; capability resolution lives in
// core/access and fails closed on anything outside this set.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleEditor     = "editor"
	RoleUser       = "user"
	RoleOrgAdmin   = "orgadmin"
)

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         string     `json:"role"`
	OrgID        *string    `json:"org_id,omitempty"`
	Active       bool       `json:"active"`
	PasswordHash string     `json:"-"`
	Salt         string     `json:"-"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type UserFilter struct {
	Search string
	Role   string
	OrgID  string
	Limit  int
	Offset int
}

type UsersStore interface {
	Create(ctx context.Context, u *User) (string, error)
	Update(ctx context.Context, u *User) error
	SetActive(ctx context.Context, id string, active bool) error
	SetLastLogin(ctx context.Context, id string, at time.Time) error
	Get(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context, filter UserFilter) ([]User, error)
}

type usersStore struct {
	db *DB
}

func NewUsersStore(db *DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, username, full_name, email, role, org_id, active, password_hash, salt, last_login_at, created_at, updated_at`

func (s *usersStore) Create(ctx context.Context, u *User) (string, error) {
	if u.ID == "" {
		u.ID = uuid.Must(uuid.NewV4()).String()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users(id, username, full_name, email, role, org_id, active, password_hash, salt, last_login_at, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Username)), u.FullName, strings.TrimSpace(u.Email), u.Role, nullableStr(u.OrgID), boolToInt(u.Active), u.PasswordHash, u.Salt, nullableTime(u.LastLoginAt), now, now)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (s *usersStore) Update(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET full_name=?, email=?, role=?, org_id=?, active=?, password_hash=?, salt=?, updated_at=?
		WHERE id=?`,
		u.FullName, strings.TrimSpace(u.Email), u.Role, nullableStr(u.OrgID), boolToInt(u.Active), u.PasswordHash, u.Salt, now, u.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	u.UpdatedAt = now
	return nil
}

// SetActive deactivates or reactivates an account. Accounts are never
// physically deleted.
func (s *usersStore) SetActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active=?, updated_at=? WHERE id=?`,
		boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *usersStore) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at=? WHERE id=?`, at.UTC(), id)
	return err
}

func (s *usersStore) Get(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (s *usersStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username=?`,
		strings.ToLower(strings.TrimSpace(username)))
	return scanUser(row)
}

func (s *usersStore) List(ctx context.Context, filter UserFilter) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var clauses []string
	var args []any
	if filter.Search != "" {
		clauses = append(clauses, "(username LIKE ? OR full_name LIKE ? OR email LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	if filter.Role != "" {
		clauses = append(clauses, "role=?")
		args = append(args, filter.Role)
	}
	if filter.OrgID != "" {
		clauses = append(clauses, "org_id=?")
		args = append(args, filter.OrgID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY username"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserFrom(sc rowScanner) (*User, error) {
	var u User
	var orgID sql.NullString
	var active int
	var lastLogin sql.NullTime
	err := sc.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Role, &orgID, &active,
		&u.PasswordHash, &u.Salt, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if orgID.Valid {
		v := orgID.String
		u.OrgID = &v
	}
	u.Active = active != 0
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

func scanUser(row *sql.Row) (*User, error)       { return scanUserFrom(row) }
func scanUserRows(rows *sql.Rows) (*User, error) { return scanUserFrom(rows) }

func nullableStr(v *string) any {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
