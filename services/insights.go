package services

import (
	"fmt"
	"sort"
	"strings"

	"deal-analyzer/models"
	"deal-analyzer/utils"
)

// InsightService summarizes a portfolio of saved analyses.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(records []*models.AnalysisRecord) *models.PortfolioReport {
	report := &models.PortfolioReport{
		DealsByCity:    make(map[string]int),
		DealsByVerdict: make(map[string]int),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalDeals = len(records)

	var scoreTotal, yieldTotal float64
	ranked := make([]*models.AnalysisRecord, 0, len(records))
	for _, r := range records {
		scoreTotal += float64(r.Result.InvestmentScore)
		yieldTotal += r.Result.RentalYield
		report.TotalCashFlow += r.Result.CashFlow

		if r.Request.City != "" {
			report.DealsByCity[r.Request.City]++
		}
		if r.Result.Verdict != "" {
			report.DealsByVerdict[r.Result.Verdict]++
		}
		ranked = append(ranked, r)
	}

	report.AverageScore = round2(scoreTotal / float64(len(records)))
	report.AverageYield = round2(yieldTotal / float64(len(records)))
	report.TotalCashFlow = round2(report.TotalCashFlow)

	// Top 5 by score; ties go to the newer analysis.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Result.InvestmentScore != ranked[j].Result.InvestmentScore {
			return ranked[i].Result.InvestmentScore > ranked[j].Result.InvestmentScore
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	report.BestDeal = ranked[0]
	if len(ranked) > 5 {
		report.TopScored = ranked[:5]
	} else {
		report.TopScored = ranked
	}

	s.logger.Debug("[insights] Summarized %d analyses, average score %.2f", report.TotalDeals, report.AverageScore)
	return report
}

func (s *InsightService) Print(r *models.PortfolioReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 DEAL PORTFOLIO INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Deals analyzed       : \033[1m%d\033[0m\n", r.TotalDeals)
	if r.TotalDeals > 0 {
		fmt.Printf("  Average score        : \033[1m%.1f\033[0m\n", r.AverageScore)
		fmt.Printf("  Average rental yield : \033[1;32m%s\033[0m\n", utils.FormatPercent(r.AverageYield, 2))
		fmt.Printf("  Combined cash flow   : \033[1;32m%s\033[0m/yr\n", utils.FormatINRCompact(r.TotalCashFlow))
	}
	fmt.Println()

	if r.BestDeal != nil {
		fmt.Printf("\033[1;33m  Best Deal\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s in %s\n", utils.FormatINR(r.BestDeal.Request.PropertyPrice), titleCase(r.BestDeal.Request.City))
		fmt.Printf("  Score   : \033[1;32m%d/100\033[0m (%s)\n", r.BestDeal.Result.InvestmentScore, r.BestDeal.Result.Verdict)
		fmt.Printf("  ID      : %s\n", r.BestDeal.ID)
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Top Scored Deals\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.TopScored) == 0 {
		fmt.Printf("  No saved analyses found\n")
	} else {
		for i, d := range r.TopScored {
			label := truncate(fmt.Sprintf("%s · %s", titleCase(d.Request.City), utils.FormatINRCompact(d.Request.PropertyPrice)), 30)
			fmt.Printf("  \033[1m%d.\033[0m %-32s \033[1;32m%3d\033[0m  %s\n",
				i+1, label, d.Result.InvestmentScore, d.Result.Verdict)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Deals by City\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printCounts(r.DealsByCity)

	fmt.Printf("\033[1;33m  Deals by Verdict\033[0m\n")
	fmt.Printf("  %s\n", thin)
	printCounts(r.DealsByVerdict)

	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(counts map[string]int) {
	if len(counts) == 0 {
		fmt.Printf("  No data\n\n")
		return
	}
	type keyCount struct {
		key   string
		count int
	}
	var rows []keyCount
	for k, c := range counts {
		rows = append(rows, keyCount{k, c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, kc := range rows {
		bar := strings.Repeat("█", kc.count)
		fmt.Printf("  %-20s %s (%d)\n", truncate(titleCase(kc.key), 18), bar, kc.count)
	}
	fmt.Println()
}

func round2(f float64) float64 {
	if f < 0 {
		return -round2(-f)
	}
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
