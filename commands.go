package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"deal-analyzer/models"
	"deal-analyzer/progress"
	"deal-analyzer/report"
	"deal-analyzer/services"
	"deal-analyzer/session"
	"deal-analyzer/storage"
	"deal-analyzer/utils"
)

// ─── analyze ─────────────────────────────────────────────────────────────────

var analyzeOpts struct {
	city, price, rent, costs string
	appreciation             float64
	years                    int
	label, format, out       string
	save                     bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one property deal and export the report",
	Example: `  deal-analyzer analyze --city mumbai --price "35,00,000" --rent 25000
  deal-analyzer analyze --city hyderabad --price 8500000 --rent 32000 --costs 40000 --format txt --save`,
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeOpts.city, "city", "", "City of the property")
	f.StringVar(&analyzeOpts.price, "price", "", "Purchase price in rupees (commas and ₹ allowed)")
	f.StringVar(&analyzeOpts.rent, "rent", "", "Expected monthly rent in rupees")
	f.StringVar(&analyzeOpts.costs, "costs", "", "Annual operating costs in rupees")
	f.Float64Var(&analyzeOpts.appreciation, "appreciation", models.DefaultFinancialInput().AppreciationRatePercent, "Expected annual appreciation, percent")
	f.IntVar(&analyzeOpts.years, "years", models.DefaultPropertyInput().InvestmentHorizonYears, "Investment horizon in years")
	f.StringVar(&analyzeOpts.label, "label", "", "Property label printed on the report")
	f.StringVar(&analyzeOpts.format, "format", "", "Report format: pdf or txt (default from REPORT_FORMAT)")
	f.StringVar(&analyzeOpts.out, "out", "", "Report output directory (default from REPORT_OUTPUT_DIR)")
	f.BoolVar(&analyzeOpts.save, "save", false, "Save the analysis to the configured store")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := session.New(cli.client, cli.validator, cli.logger)
	ctrl.UpdateProperty(models.PropertyPatch{
		City:                   &analyzeOpts.city,
		PurchasePrice:          &analyzeOpts.price,
		MonthlyRent:            &analyzeOpts.rent,
		InvestmentHorizonYears: &analyzeOpts.years,
	})
	ctrl.UpdateFinancial(models.FinancialPatch{
		AnnualOperatingCosts:    &analyzeOpts.costs,
		AppreciationRatePercent: &analyzeOpts.appreciation,
	})

	fmt.Printf("\n\033[1;35m  Analyzing %s deal via %s\033[0m\n\n", strings.TrimSpace(analyzeOpts.city), cli.client.BaseURL())

	anim := progress.New()
	anim.GraceDelay = cli.cfg.ProgressGrace
	anim.OnStage = printStage
	res := anim.Run(ctx, ctrl.RunAnalysis, func() string {
		if e := ctrl.State().Outcome.Err; e != nil {
			return e.Message
		}
		return session.MsgUnexpected
	})

	switch res.Status {
	case progress.StatusCancelled:
		return errors.New("analysis cancelled")
	case progress.StatusFailed:
		printFailure(ctrl.State().Outcome.Err, res.Err)
		return errors.New("analysis failed")
	}

	state := ctrl.State()
	req := services.Normalize(state.Property, state.Financial)
	result := ctrl.TakeResult()
	if result == nil {
		return errors.New("analysis finished without a result")
	}
	printResult(req, result)

	format := analyzeOpts.format
	if format == "" {
		format = cli.cfg.ReportFormat
	}
	doc := report.NewExporter().Export(result, report.PropertyMeta{
		City:  req.City,
		Label: analyzeOpts.label,
		Price: req.PropertyPrice,
	})
	path, err := cli.writeReport(ctx, doc, format, analyzeOpts.out)
	if err != nil {
		return fmt.Errorf("export report: %w", err)
	}
	fmt.Printf("  Report → %s\n", path)

	if analyzeOpts.save {
		store, err := cli.requireStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		rec := storage.NewRecord(req, result, time.Now())
		if err := store.Save(ctx, rec); err != nil {
			return err
		}
		fmt.Printf("  Saved  → %s\n", rec.ID)
	}
	fmt.Println()
	return nil
}

func printStage(e progress.StageEvent) {
	switch e.State {
	case progress.StageActive:
		fmt.Printf("  \033[1;36m⟳\033[0m [%d/%d] %s\n", e.Index+1, e.Total, e.Caption)
	case progress.StageCompleted:
		fmt.Printf("  \033[1;32m✓\033[0m [%d/%d] %s\n", e.Index+1, e.Total, e.Caption)
	case progress.StageFailed:
		fmt.Printf("  \033[1;31m✗\033[0m [%d/%d] %s\n", e.Index+1, e.Total, e.Caption)
	}
}

func printFailure(aerr *models.AnalysisError, msg string) {
	fmt.Printf("\n\033[1;31m  Analysis failed\033[0m\n")
	if aerr == nil {
		fmt.Printf("  %s\n\n", msg)
		return
	}
	for _, line := range strings.Split(aerr.Message, "\n") {
		fmt.Printf("  • %s\n", line)
	}
	if aerr.StatusCode > 0 {
		fmt.Printf("  (%s, HTTP %d)\n", aerr.Kind, aerr.StatusCode)
	}
	fmt.Println()
}

func printResult(req models.DealRequest, r *models.DealAnalysis) {
	thin := strings.Repeat("─", 54)
	color := "\033[1;32m"
	switch report.ScoreTone(r.InvestmentScore) {
	case report.ToneModerate:
		color = "\033[1;33m"
	case report.ToneWeak:
		color = "\033[1;31m"
	}

	fmt.Printf("\n  %s\n", thin)
	fmt.Printf("  Score          : %s%d/100\033[0m  %s\n", color, r.InvestmentScore, r.Verdict)
	fmt.Printf("  Price          : %s\n", utils.FormatINR(req.PropertyPrice))
	fmt.Printf("  ROI            : %s\n", utils.FormatPercent(r.ROIPercent, 1))
	fmt.Printf("  Rental yield   : %s\n", utils.FormatPercent(r.RentalYield, 2))
	fmt.Printf("  Cash flow      : %s/yr\n", utils.FormatINR(r.CashFlow))
	fmt.Printf("  Risk level     : %s\n", r.RiskLevel)

	var points []string
	for i, v := range services.ProjectionSeries(r, req.LoanYears) {
		points = append(points, fmt.Sprintf("Y%d %s", i+1, utils.FormatPercent(v, 1)))
	}
	fmt.Printf("  ROI projection : %s\n", strings.Join(points, " · "))
	fmt.Printf("  %s\n\n", thin)
}

// ─── batch ───────────────────────────────────────────────────────────────────

var batchCmd = &cobra.Command{
	Use:   "batch <deals.csv>",
	Short: "Analyze every deal in a CSV file and summarize the portfolio",
	Long: `Reads a CSV with a header row naming the columns city, price, rent and
optionally costs, appreciation and years. Each row runs in its own session,
duplicate rows are skipped, and successful analyses are saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// batchRow is one deal read from a batch file.
type batchRow struct {
	line      int
	property  models.PropertyPatch
	financial models.FinancialPatch
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rows, err := readBatch(args[0])
	if err != nil {
		return err
	}
	cli.logger.Info("[batch] %d deal(s) read from %s | concurrency: %d | rate: %dms",
		len(rows), args[0], cli.cfg.BatchConcurrency, cli.cfg.BatchRateLimitMs)

	store, err := cli.openStore(ctx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	sum := cli.analyzeBatch(ctx, cli.client, rows, store)

	cli.logger.Info("[batch] Done: %d analyzed, %d failed, %d skipped, %d unique deal(s)",
		len(sum.records), sum.failed, sum.skipped, sum.unique)
	insights := services.NewInsightService(cli.logger)
	insights.Print(insights.Generate(sum.records))
	return nil
}

type batchSummary struct {
	records []*models.AnalysisRecord
	failed  int
	skipped int
	unique  int
}

// analyzeBatch scores rows through the worker pool. Once ctx is cancelled no
// new row is submitted, but submissions already on the wire run to the end
// so their failures are not misreported as connection errors.
func (a *app) analyzeBatch(ctx context.Context, analyzer session.Analyzer, rows []batchRow, store storage.DealStore) batchSummary {
	var (
		mu  sync.Mutex
		sum batchSummary
	)
	detached := context.WithoutCancel(ctx)
	seen := utils.NewSet[models.DealRequest]()
	pool := utils.NewWorkerPool(a.cfg.BatchConcurrency, time.Duration(a.cfg.BatchRateLimitMs)*time.Millisecond)

	for _, row := range rows {
		row := row
		err := pool.Submit(ctx, func() {
			if ctx.Err() != nil {
				a.logger.Info("[batch] line %d: interrupted, not submitted", row.line)
				mu.Lock()
				sum.skipped++
				mu.Unlock()
				return
			}

			ctrl := session.New(analyzer, a.validator, a.logger)
			ctrl.UpdateProperty(row.property)
			ctrl.UpdateFinancial(row.financial)

			state := ctrl.State()
			req := services.Normalize(state.Property, state.Financial)
			// Rows that normalize to the same request are the same deal.
			if !seen.Add(req) {
				a.logger.Info("[batch] line %d: duplicate of an earlier row, skipped", row.line)
				mu.Lock()
				sum.skipped++
				mu.Unlock()
				return
			}

			if !ctrl.RunAnalysis(detached) {
				msg := "no outcome"
				if e := ctrl.State().Outcome.Err; e != nil {
					msg = strings.ReplaceAll(e.Message, "\n", "; ")
				}
				a.logger.Warn("[batch] line %d: %s", row.line, msg)
				mu.Lock()
				sum.failed++
				mu.Unlock()
				return
			}

			result := ctrl.TakeResult()
			rec := storage.NewRecord(req, result, time.Now())
			a.logger.Info("[batch] line %d: %s scored %d (%s)", row.line, req.City, result.InvestmentScore, result.Verdict)
			if store != nil {
				if err := store.Save(detached, rec); err != nil {
					a.logger.Error("[batch] line %d: save failed: %v", row.line, err)
				}
			}
			mu.Lock()
			sum.records = append(sum.records, rec)
			mu.Unlock()
		})
		if err != nil {
			break
		}
	}
	pool.Wait()

	sum.unique = seen.Len()
	return sum
}

func readBatch(path string) ([]batchRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("batch: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("batch: read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"city", "price", "rent"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("batch: missing %q column", required)
		}
	}

	var rows []batchRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("batch: line %d: %w", line, err)
		}
		get := func(name string) (string, bool) {
			i, ok := col[name]
			if !ok || i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
				return "", false
			}
			return strings.TrimSpace(rec[i]), true
		}

		row := batchRow{line: line}
		if v, ok := get("city"); ok {
			row.property.City = models.Ptr(v)
		}
		if v, ok := get("price"); ok {
			row.property.PurchasePrice = models.Ptr(v)
		}
		if v, ok := get("rent"); ok {
			row.property.MonthlyRent = models.Ptr(v)
		}
		if v, ok := get("years"); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("batch: line %d: years %q: %w", line, v, err)
			}
			row.property.InvestmentHorizonYears = models.Ptr(n)
		}
		if v, ok := get("costs"); ok {
			row.financial.AnnualOperatingCosts = models.Ptr(v)
		}
		if v, ok := get("appreciation"); ok {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("batch: line %d: appreciation %q: %w", line, v, err)
			}
			row.financial.AppreciationRatePercent = models.Ptr(n)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ─── history / export ────────────────────────────────────────────────────────

var historyOpts struct {
	limit int
	csv   string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved analyses with portfolio insights",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := cli.requireStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(ctx, historyOpts.limit)
		if err != nil {
			return err
		}

		fmt.Println()
		for _, r := range records {
			fmt.Printf("  %s  %s  %-10s %12s  %3d  %s\n",
				r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Request.City,
				utils.FormatINRCompact(r.Request.PropertyPrice), r.Result.InvestmentScore, r.Result.Verdict)
		}

		insights := services.NewInsightService(cli.logger)
		insights.Print(insights.Generate(records))

		if historyOpts.csv != "" {
			w, err := storage.NewCSVWriter(historyOpts.csv)
			if err != nil {
				return err
			}
			if err := w.Write(records); err != nil {
				w.Close()
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}
			cli.logger.Info("[history] %d record(s) written to %s", len(records), historyOpts.csv)
		}
		return nil
	},
}

var exportOpts struct {
	format, out string
}

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Re-render the report of a saved analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := cli.requireStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(ctx, args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no saved analysis with id %s", args[0])
		}
		if err != nil {
			return err
		}

		format := exportOpts.format
		if format == "" {
			format = cli.cfg.ReportFormat
		}
		doc := report.NewExporter().Export(&rec.Result, report.PropertyMeta{
			City:  rec.Request.City,
			Price: rec.Request.PropertyPrice,
		})
		path, err := cli.writeReport(ctx, doc, format, exportOpts.out)
		if err != nil {
			return err
		}
		fmt.Printf("  Report → %s\n", path)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the analysis engine is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		status, err := cli.client.Health(ctx)
		if err != nil {
			return fmt.Errorf("engine at %s: %w", cli.client.BaseURL(), err)
		}
		fmt.Printf("  %s → %s\n", cli.client.BaseURL(), status.Status)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyOpts.limit, "limit", 50, "Maximum number of analyses to list (0 for all)")
	historyCmd.Flags().StringVar(&historyOpts.csv, "csv", "", "Also write the listed analyses to this CSV file")

	exportCmd.Flags().StringVar(&exportOpts.format, "format", "", "Report format: pdf or txt (default from REPORT_FORMAT)")
	exportCmd.Flags().StringVar(&exportOpts.out, "out", "", "Report output directory (default from REPORT_OUTPUT_DIR)")
}
