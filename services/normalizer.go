package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"deal-analyzer/models"
)

// amountNoise matches characters users type around amounts: currency
// symbols, thousands separators and whitespace.
var amountNoise = regexp.MustCompile(`[₹$,\s]`)

// Normalize converts raw form input into the request the engine expects.
// Unparseable amounts become 0 and are left for the validator to reject.
func Normalize(property models.PropertyInput, financial models.FinancialInput) models.DealRequest {
	return models.DealRequest{
		City:             strings.ToLower(strings.TrimSpace(property.City)),
		PropertyPrice:    ParseAmount(property.PurchasePrice),
		ExpectedRent:     ParseAmount(property.MonthlyRent),
		AnnualCosts:      ParseAmount(financial.AnnualOperatingCosts),
		AppreciationRate: financial.AppreciationRatePercent,
		LoanYears:        property.InvestmentHorizonYears,
	}
}

// ParseAmount extracts a numeric value from free text such as "₹35,00,000".
// Examples:
//
//	"3,500,000" → 3500000
//	"₹ 25,000"  → 25000
//	"abc"       → 0
func ParseAmount(raw string) float64 {
	cleaned := amountNoise.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0
	}
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return 0
	}
	return val
}
