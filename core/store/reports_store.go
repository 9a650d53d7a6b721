package store

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

type ReportDigest struct {
	ID          string    `json:"id"`
	PeriodFrom  time.Time `json:"period_from"`
	PeriodTo    time.Time `json:"period_to"`
	GeneratedBy string    `json:"generated_by"`
	Payload     string    `json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReportsStore interface {
	SaveDigest(ctx context.Context, d *ReportDigest) (string, error)
	ListDigests(ctx context.Context, limit int) ([]ReportDigest, error)
}

type reportsStore struct {
	db *DB
}

func NewReportsStore(db *DB) ReportsStore {
	return &reportsStore{db: db}
}

func (s *reportsStore) SaveDigest(ctx context.Context, d *ReportDigest) (string, error) {
	if d.ID == "" {
		d.ID = uuid.Must(uuid.NewV4()).String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_digests(id, period_from, period_to, generated_by, payload, created_at)
		VALUES(?,?,?,?,?,?)`,
		d.ID, d.PeriodFrom.UTC(), d.PeriodTo.UTC(), d.GeneratedBy, d.Payload, d.CreatedAt)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

func (s *reportsStore) ListDigests(ctx context.Context, limit int) ([]ReportDigest, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, period_from, period_to, generated_by, payload, created_at
		FROM report_digests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReportDigest
	for rows.Next() {
		var d ReportDigest
		if err := rows.Scan(&d.ID, &d.PeriodFrom, &d.PeriodTo, &d.GeneratedBy, &d.Payload, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
