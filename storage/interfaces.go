package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"deal-analyzer/models"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("storage: analysis not found")

// DealStore is the interface any analysis store must satisfy.
type DealStore interface {
	Save(ctx context.Context, rec *models.AnalysisRecord) error
	Get(ctx context.Context, id string) (*models.AnalysisRecord, error)
	// List returns the newest records first. limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
	Close() error
}

// ReportUploader publishes a rendered report and returns where it can be
// fetched from.
type ReportUploader interface {
	Upload(ctx context.Context, name string, body []byte, contentType string) (string, error)
}

var (
	_ DealStore      = (*SQLiteStore)(nil)
	_ DealStore      = (*PostgresStore)(nil)
	_ ReportUploader = (*S3Uploader)(nil)
)

// NewRecord wraps a successful analysis in a record with a fresh id.
func NewRecord(req models.DealRequest, result *models.DealAnalysis, at time.Time) *models.AnalysisRecord {
	return &models.AnalysisRecord{
		ID:        uuid.NewString(),
		Request:   req,
		Result:    *result,
		CreatedAt: at.UTC(),
	}
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// recordRow is the column layout shared by the SQL stores. Request and
// result are stored as JSON so the engine can add fields without a
// migration.
type recordRow struct {
	ID              string  `db:"id"`
	City            string  `db:"city"`
	PropertyPrice   float64 `db:"property_price"`
	InvestmentScore int     `db:"investment_score"`
	Verdict         string  `db:"verdict"`
	Request         string  `db:"request"`
	Result          string  `db:"result"`
	CreatedAt       string  `db:"created_at"`
}

func toRow(rec *models.AnalysisRecord) (recordRow, error) {
	req, err := json.Marshal(rec.Request)
	if err != nil {
		return recordRow{}, fmt.Errorf("encode request: %w", err)
	}
	res, err := json.Marshal(rec.Result)
	if err != nil {
		return recordRow{}, fmt.Errorf("encode result: %w", err)
	}
	return recordRow{
		ID:              rec.ID,
		City:            rec.Request.City,
		PropertyPrice:   rec.Request.PropertyPrice,
		InvestmentScore: rec.Result.InvestmentScore,
		Verdict:         rec.Result.Verdict,
		Request:         string(req),
		Result:          string(res),
		CreatedAt:       rec.CreatedAt.UTC().Format(timeLayout),
	}, nil
}

func (r recordRow) toRecord() (*models.AnalysisRecord, error) {
	rec := &models.AnalysisRecord{ID: r.ID}
	if err := json.Unmarshal([]byte(r.Request), &rec.Request); err != nil {
		return nil, fmt.Errorf("decode request of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Result), &rec.Result); err != nil {
		return nil, fmt.Errorf("decode result of %s: %w", r.ID, err)
	}
	t, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
	}
	rec.CreatedAt = t
	return rec, nil
}
