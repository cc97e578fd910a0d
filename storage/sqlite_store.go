package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"deal-analyzer/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deal_analyses (
	id               TEXT PRIMARY KEY,
	city             TEXT NOT NULL DEFAULT '',
	property_price   REAL NOT NULL DEFAULT 0,
	investment_score INTEGER NOT NULL DEFAULT 0,
	verdict          TEXT NOT NULL DEFAULT '',
	request          TEXT NOT NULL,
	result           TEXT NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deal_analyses_created ON deal_analyses(created_at);
CREATE INDEX IF NOT EXISTS idx_deal_analyses_city    ON deal_analyses(city);
`

// SQLiteStore keeps analyses in a local SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Parent directories are created as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *models.AnalysisRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return fmt.Errorf("sqlite: save: %w", err)
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO deal_analyses
			(id, city, property_price, investment_score, verdict, request, result, created_at)
		VALUES
			(:id, :city, :property_price, :investment_score, :verdict, :request, :result, :created_at)
	`, row)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.AnalysisRecord, error) {
	var row recordRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM deal_analyses WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", id, err)
	}
	return row.toRecord()
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	query := `SELECT * FROM deal_analyses ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}

	records := make([]*models.AnalysisRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.toRecord()
		if err != nil {
			return nil, fmt.Errorf("sqlite: list: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
