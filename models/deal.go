package models

// PropertyInput holds the raw property form values as the user typed them.
// Price and rent stay as text until the session normalizes them.
type PropertyInput struct {
	City                   string
	PurchasePrice          string
	MonthlyRent            string
	InvestmentHorizonYears int
}

// FinancialInput holds the raw financial form values.
type FinancialInput struct {
	AnnualOperatingCosts    string
	AppreciationRatePercent float64
}

// DefaultPropertyInput returns the values a fresh session starts with.
func DefaultPropertyInput() PropertyInput {
	return PropertyInput{InvestmentHorizonYears: 5}
}

// DefaultFinancialInput returns the values a fresh session starts with.
func DefaultFinancialInput() FinancialInput {
	return FinancialInput{AppreciationRatePercent: 3.5}
}

// PropertyPatch is a partial update of PropertyInput. Nil fields are left
// untouched.
type PropertyPatch struct {
	City                   *string
	PurchasePrice          *string
	MonthlyRent            *string
	InvestmentHorizonYears *int
}

// FinancialPatch is a partial update of FinancialInput.
type FinancialPatch struct {
	AnnualOperatingCosts    *string
	AppreciationRatePercent *float64
}

// Apply returns a copy of p with every non-nil patch field merged in.
func (p PropertyInput) Apply(patch PropertyPatch) PropertyInput {
	if patch.City != nil {
		p.City = *patch.City
	}
	if patch.PurchasePrice != nil {
		p.PurchasePrice = *patch.PurchasePrice
	}
	if patch.MonthlyRent != nil {
		p.MonthlyRent = *patch.MonthlyRent
	}
	if patch.InvestmentHorizonYears != nil {
		p.InvestmentHorizonYears = *patch.InvestmentHorizonYears
	}
	return p
}

// Apply returns a copy of f with every non-nil patch field merged in.
func (f FinancialInput) Apply(patch FinancialPatch) FinancialInput {
	if patch.AnnualOperatingCosts != nil {
		f.AnnualOperatingCosts = *patch.AnnualOperatingCosts
	}
	if patch.AppreciationRatePercent != nil {
		f.AppreciationRatePercent = *patch.AppreciationRatePercent
	}
	return f
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}

// DealRequest is the normalized payload sent to the scoring engine.
type DealRequest struct {
	City             string  `json:"city"`
	PropertyPrice    float64 `json:"property_price"`
	ExpectedRent     float64 `json:"expected_rent"`
	AnnualCosts      float64 `json:"annual_costs"`
	AppreciationRate float64 `json:"appreciation_rate"`
	LoanYears        int     `json:"loan_years"`
}

// ValidationResult lists every rule a DealRequest broke, in rule order.
type ValidationResult struct {
	Valid      bool
	Violations []string
}

// MarketSnapshot is the engine's view of the target city's market.
type MarketSnapshot struct {
	AvgPricePerSqft float64 `json:"avg_price_per_sqft"`
	AvgRentalYield  float64 `json:"avg_rental_yield"`
	AvgAppreciation float64 `json:"avg_appreciation"`
	VacancyRate     float64 `json:"vacancy_rate"`
	LiquidityScore  float64 `json:"liquidity_score"`
	MarketSentiment string  `json:"market_sentiment"`
}

// DealAnalysis is the scoring engine's response for one deal.
type DealAnalysis struct {
	InvestmentScore  int            `json:"investment_score"`
	Verdict          string         `json:"verdict"`
	RentalYield      float64        `json:"rental_yield"`
	CashFlow         float64        `json:"cash_flow"`
	ROIPercent       float64        `json:"roi_percent"`
	ROIProjection    []float64      `json:"roi_projection"`
	RiskLevel        string         `json:"risk_level"`
	ExecutiveSummary string         `json:"executive_summary"`
	Recommendation   string         `json:"recommendation"`
	MarketSnapshot   MarketSnapshot `json:"market_snapshot"`
	InvestmentMemo   string         `json:"ai_investment_memo"`
}

// HealthStatus is the body of the engine's liveness probe.
type HealthStatus struct {
	Status string `json:"status"`
}

// Verdict labels produced by the engine.
const (
	VerdictStrongBuy = "Strong Buy"
	VerdictBuy       = "Buy"
	VerdictHold      = "Hold"
	VerdictAvoid     = "Avoid"
)
