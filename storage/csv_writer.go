package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"deal-analyzer/models"
)

var csvHeader = []string{
	"id", "city", "property_price", "expected_rent", "annual_costs", "appreciation_rate", "loan_years",
	"investment_score", "verdict", "rental_yield", "cash_flow", "roi_percent", "risk_level", "created_at",
}

// CSVWriter exports analysis records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// Write appends one row per record.
func (c *CSVWriter) Write(records []*models.AnalysisRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		row := []string{
			r.ID,
			r.Request.City,
			formatFloat(r.Request.PropertyPrice),
			formatFloat(r.Request.ExpectedRent),
			formatFloat(r.Request.AnnualCosts),
			formatFloat(r.Request.AppreciationRate),
			strconv.Itoa(r.Request.LoanYears),
			strconv.Itoa(r.Result.InvestmentScore),
			r.Result.Verdict,
			formatFloat(r.Result.RentalYield),
			formatFloat(r.Result.CashFlow),
			formatFloat(r.Result.ROIPercent),
			r.Result.RiskLevel,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
