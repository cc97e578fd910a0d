package models

import "time"

// AnalysisRecord is a completed analysis saved for later review or export.
type AnalysisRecord struct {
	ID        string
	Request   DealRequest
	Result    DealAnalysis
	CreatedAt time.Time
}

// PortfolioReport holds the computed analytics over saved analyses.
type PortfolioReport struct {
	TotalDeals     int
	AverageScore   float64
	AverageYield   float64
	TotalCashFlow  float64
	BestDeal       *AnalysisRecord
	TopScored      []*AnalysisRecord
	DealsByCity    map[string]int
	DealsByVerdict map[string]int
}
