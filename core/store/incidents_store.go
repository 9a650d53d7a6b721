package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrConflict signals that a conditional write lost the race: the row
// version no longer matches what the caller read. Callers must re-read
// and re-issue; no retry happens at this layer.
var ErrConflict = errors.New("conflict")

type Incident struct {
	ID          string    `json:"id"`
	RegNo       string    `json:"reg_no"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	OrgID       string    `json:"org_id"`
	Status      string    `json:"status"`
	Visibility  string    `json:"visibility"`
	Impact      string    `json:"impact"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

type IncidentFilter struct {
	Search     string
	Status     string
	StatusIn   []string
	Impact     string
	Visibility string
	OrgID      string
	CreatedBy  string
	Limit      int
	Offset     int
}

type IncidentsStore interface {
	CreateIncident(ctx context.Context, incident *Incident, regFormat string) (string, error)
	GetIncident(ctx context.Context, id string) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	SetStatus(ctx context.Context, id, status, updatedBy string, expectedVersion int) (*Incident, error)
	SetVisibility(ctx context.Context, id, visibility, updatedBy string, expectedVersion int) (*Incident, error)
	SetImpact(ctx context.Context, id, impact, updatedBy string, expectedVersion int) (*Incident, error)
	CountByField(ctx context.Context, field string, from, to time.Time) (map[string]int, error)
}

type incidentsStore struct {
	db *DB
}

func NewIncidentsStore(db *DB) IncidentsStore {
	return &incidentsStore{db: db}
}

const incidentColumns = `id, reg_no, title, description, org_id, status, visibility, impact, created_by, updated_by, created_at, updated_at, version`

func (s *incidentsStore) CreateIncident(ctx context.Context, incident *Incident, regFormat string) (string, error) {
	if incident.ID == "" {
		incident.ID = uuid.Must(uuid.NewV4()).String()
	}
	if incident.Version <= 0 {
		incident.Version = 1
	}
	if strings.TrimSpace(incident.Status) == "" {
		incident.Status = "draft"
	}
	if strings.TrimSpace(incident.Visibility) == "" {
		incident.Visibility = "private"
	}
	if strings.TrimSpace(incident.Impact) == "" {
		incident.Impact = "low"
	}
	now := time.Now().UTC()
	incident.CreatedAt = now
	incident.UpdatedAt = now
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(incident.RegNo) == "" {
		year := now.Year()
		var seq int
		err := tx.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO incident_seq(year, seq) VALUES(?, 1)
			ON CONFLICT(year) DO UPDATE SET seq = incident_seq.seq + 1
			RETURNING seq`), year).Scan(&seq)
		if err != nil {
			tx.Rollback()
			return "", err
		}
		incident.RegNo = buildIncidentRegNo(regFormat, year, seq)
	}
	_, err = tx.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO incidents(id, reg_no, title, description, org_id, status, visibility, impact, created_by, updated_by, created_at, updated_at, version)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`),
		incident.ID, incident.RegNo, incident.Title, incident.Description, incident.OrgID,
		incident.Status, incident.Visibility, incident.Impact, incident.CreatedBy, incident.UpdatedBy,
		now, now, incident.Version)
	if err != nil {
		tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return incident.ID, nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, id string) (*Incident, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id)
	return scanIncident(row)
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents`
	var clauses []string
	var args []any
	if len(filter.StatusIn) > 0 {
		placeholders := strings.TrimRight(strings.Repeat("?,", len(filter.StatusIn)), ",")
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", placeholders))
		for _, v := range filter.StatusIn {
			args = append(args, v)
		}
	} else if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.Impact != "" {
		clauses = append(clauses, "impact=?")
		args = append(args, filter.Impact)
	}
	if filter.Visibility != "" {
		clauses = append(clauses, "visibility=?")
		args = append(args, filter.Visibility)
	}
	if filter.OrgID != "" {
		clauses = append(clauses, "org_id=?")
		args = append(args, filter.OrgID)
	}
	if filter.CreatedBy != "" {
		clauses = append(clauses, "created_by=?")
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		clauses = append(clauses, "(title LIKE ? OR description LIKE ? OR reg_no LIKE ?)")
		q := "%" + filter.Search + "%"
		args = append(args, q, q, q)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
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
	var out []Incident
	for rows.Next() {
		inc, err := scanIncidentFrom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inc)
	}
	return out, rows.Err()
}

func (s *incidentsStore) SetStatus(ctx context.Context, id, status, updatedBy string, expectedVersion int) (*Incident, error) {
	return s.setField(ctx, "status", id, status, updatedBy, expectedVersion)
}

func (s *incidentsStore) SetVisibility(ctx context.Context, id, visibility, updatedBy string, expectedVersion int) (*Incident, error) {
	return s.setField(ctx, "visibility", id, visibility, updatedBy, expectedVersion)
}

func (s *incidentsStore) SetImpact(ctx context.Context, id, impact, updatedBy string, expectedVersion int) (*Incident, error) {
	return s.setField(ctx, "impact", id, impact, updatedBy, expectedVersion)
}

// setField is the single conditional-write path for incident mutations.
// The version check makes the read-then-write sequence in core/lifecycle
// safe without locks; a stale version returns ErrConflict.
func (s *incidentsStore) setField(ctx context.Context, field, id, value, updatedBy string, expectedVersion int) (*Incident, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE incidents SET %s=?, updated_by=?, updated_at=?, version=version+1
		WHERE id=? AND version=?`, field),
		value, updatedBy, now, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrConflict
	}
	return s.GetIncident(ctx, id)
}

func (s *incidentsStore) CountByField(ctx context.Context, field string, from, to time.Time) (map[string]int, error) {
	switch field {
	case "status", "impact", "visibility":
	default:
		return nil, fmt.Errorf("unsupported count field %q", field)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*) FROM incidents
		WHERE created_at >= ? AND created_at < ?
		GROUP BY %s`, field, field), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func scanIncidentFrom(sc rowScanner) (*Incident, error) {
	var inc Incident
	err := sc.Scan(&inc.ID, &inc.RegNo, &inc.Title, &inc.Description, &inc.OrgID,
		&inc.Status, &inc.Visibility, &inc.Impact, &inc.CreatedBy, &inc.UpdatedBy,
		&inc.CreatedAt, &inc.UpdatedAt, &inc.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inc, nil
}

func scanIncident(row *sql.Row) (*Incident, error) { return scanIncidentFrom(row) }

// buildIncidentRegNo expands a format like "INC-{year}-{seq:05}".
func buildIncidentRegNo(format string, year, seq int) string {
	if strings.TrimSpace(format) == "" {
		format = "INC-{year}-{seq:05}"
	}
	out := strings.ReplaceAll(format, "{year}", fmt.Sprintf("%d", year))
	for _, width := range []int{3, 4, 5, 6} {
		token := fmt.Sprintf("{seq:0%d}", width)
		if strings.Contains(out, token) {
			out = strings.ReplaceAll(out, token, fmt.Sprintf("%0*d", width, seq))
		}
	}
	out = strings.ReplaceAll(out, "{seq}", fmt.Sprintf("%d", seq))
	return out
}
