package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"deal-analyzer/models"
	"deal-analyzer/utils"
)

// PostgresStore persists analyses to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, waits for it to accept
// pings, runs schema migrations, and returns a ready-to-use store.
func NewPostgresStore(ctx context.Context, dsn string, retry utils.RetryConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS deal_analyses (
			id               TEXT          PRIMARY KEY,
			city             VARCHAR(100)  NOT NULL DEFAULT '',
			property_price   NUMERIC(16,2) NOT NULL DEFAULT 0,
			investment_score INTEGER       NOT NULL DEFAULT 0,
			verdict          VARCHAR(50)   NOT NULL DEFAULT '',
			request          JSONB         NOT NULL,
			result           JSONB         NOT NULL,
			created_at       TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_deal_analyses_created ON deal_analyses(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_deal_analyses_city    ON deal_analyses(city);
		CREATE INDEX IF NOT EXISTS idx_deal_analyses_score   ON deal_analyses(investment_score);
	`)
	return err
}

// Save upserts rec by id.
func (ps *PostgresStore) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return fmt.Errorf("postgres: save: %w", err)
	}
	_, err = ps.db.ExecContext(ctx, `
		INSERT INTO deal_analyses (id, city, property_price, investment_score, verdict, request, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			city = EXCLUDED.city,
			property_price = EXCLUDED.property_price,
			investment_score = EXCLUDED.investment_score,
			verdict = EXCLUDED.verdict,
			request = EXCLUDED.request,
			result = EXCLUDED.result
	`, row.ID, row.City, row.PropertyPrice, row.InvestmentScore, row.Verdict, row.Request, row.Result, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres: save %s: %w", rec.ID, err)
	}
	return nil
}

const selectRecord = `
	SELECT id, city, property_price, investment_score, verdict, request, result, created_at
	FROM deal_analyses
`

func (ps *PostgresStore) Get(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	rec, err := scanRecord(ps.db.QueryRowContext(ctx, selectRecord+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", id, err)
	}
	return rec, nil
}

// List retrieves stored analyses, newest first. Used by the insight service.
func (ps *PostgresStore) List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	query := selectRecord + ` ORDER BY created_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var records []*models.AnalysisRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*models.AnalysisRecord, error) {
	var (
		r         recordRow
		req, res  []byte
		createdAt time.Time
	)
	if err := s.Scan(&r.ID, &r.City, &r.PropertyPrice, &r.InvestmentScore, &r.Verdict, &req, &res, &createdAt); err != nil {
		return nil, err
	}
	r.Request = string(req)
	r.Result = string(res)
	r.CreatedAt = createdAt.UTC().Format(timeLayout)
	return r.toRecord()
}
