package services

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"deal-analyzer/models"
)

// DefaultCities are the markets the scoring engine has data for.
var DefaultCities = []string{"mumbai", "bangalore", "hyderabad"}

const (
	maxAppreciationRate = 25
	minHorizonYears     = 1
	maxHorizonYears     = 40
)

// Validator checks a normalized request against the engine's input rules.
type Validator struct {
	cities []string
	known  map[string]struct{}
}

// NewValidator creates a Validator for the given cities. With no cities it
// falls back to DefaultCities.
func NewValidator(cities ...string) *Validator {
	if len(cities) == 0 {
		cities = DefaultCities
	}
	v := &Validator{known: make(map[string]struct{}, len(cities))}
	for _, c := range cities {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := v.known[c]; dup {
			continue
		}
		v.known[c] = struct{}{}
		v.cities = append(v.cities, c)
	}
	return v
}

// Validate runs every rule and collects all violations in rule order.
func (v *Validator) Validate(req models.DealRequest) models.ValidationResult {
	var violations []string

	if _, ok := v.known[strings.ToLower(strings.TrimSpace(req.City))]; !ok {
		violations = append(violations, fmt.Sprintf(
			"City %q is not supported. Please use %s.", req.City, v.cityList()))
	}
	if !(req.PropertyPrice > 0) {
		violations = append(violations, "Property price must be greater than 0")
	}
	if !(req.ExpectedRent > 0) {
		violations = append(violations, "Expected rent must be greater than 0")
	}
	if req.AnnualCosts < 0 || math.IsNaN(req.AnnualCosts) {
		violations = append(violations, "Annual costs cannot be negative")
	}
	if !(req.AppreciationRate >= 0 && req.AppreciationRate <= maxAppreciationRate) {
		violations = append(violations, "Appreciation rate must be between 0% and 25%")
	}
	if req.LoanYears < minHorizonYears || req.LoanYears > maxHorizonYears {
		violations = append(violations, "Investment horizon must be between 1 and 40 years")
	}

	return models.ValidationResult{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// cityList renders "Mumbai, Bangalore, or Hyderabad".
func (v *Validator) cityList() string {
	names := make([]string, len(v.cities))
	for i, c := range v.cities {
		names[i] = titleCase(c)
	}
	switch len(names) {
	case 0:
		return "a supported city"
	case 1:
		return names[0]
	case 2:
		return names[0] + " or " + names[1]
	}
	return strings.Join(names[:len(names)-1], ", ") + ", or " + names[len(names)-1]
}

func titleCase(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
