package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatINR formats an amount in rupees using Indian digit grouping
// (lakhs and crores) with no fractional part: 3500000 -> ₹35,00,000.
func FormatINR(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
	}
	whole := strconv.FormatFloat(math.Round(math.Abs(amount)), 'f', 0, 64)
	return sign + "₹" + groupIndian(whole)
}

// FormatINRCompact abbreviates large amounts: Cr for crores, L for lakhs
// and K for thousands.
func FormatINRCompact(amount float64) string {
	abs := math.Abs(amount)
	sign := ""
	if amount < 0 {
		sign = "-"
	}

	switch {
	case abs >= 1e7:
		return sign + "₹" + trimOneDecimal(abs/1e7) + " Cr"
	case abs >= 1e5:
		return sign + "₹" + trimOneDecimal(abs/1e5) + " L"
	case abs >= 1e3:
		return sign + "₹" + trimOneDecimal(abs/1e3) + "K"
	}
	return FormatINR(amount)
}

// FormatPercent renders value with the given number of decimals and a % sign.
func FormatPercent(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}

// groupIndian inserts separators after the last three digits and then every
// two digits.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}

func trimOneDecimal(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}
