package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deal-analyzer/config"
	"deal-analyzer/engine"
	"deal-analyzer/report"
	"deal-analyzer/services"
	"deal-analyzer/storage"
	"deal-analyzer/utils"
)

// app carries the wiring shared by every command.
type app struct {
	cfg       *config.Config
	logger    *utils.Logger
	client    *engine.Client
	validator *services.Validator
}

var (
	cli      = &app{}
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "deal-analyzer",
	Short: "Score residential property deals against the analysis engine",
	Long: `deal-analyzer collects a property deal, validates it locally, submits it
to the scoring engine and exports the result as an A4 report.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.cfg = config.Load()
		level := cli.cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		cli.logger = utils.NewLoggerWithLevel(level)
		cli.client = engine.NewClient(cli.cfg.APIBaseURL, cli.cfg.RequestTimeout, cli.logger)
		cli.validator = services.NewValidator(cli.cfg.SupportedCities...)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cli.logger != nil {
			cli.logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")

	rootCmd.AddCommand(analyzeCmd, batchCmd, historyCmd, exportCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore returns the configured store, or nil when persistence is off.
func (a *app) openStore(ctx context.Context) (storage.DealStore, error) {
	switch a.cfg.StoreDriver {
	case config.StoreNone:
		return nil, nil
	case config.StorePostgres:
		retry := utils.RetryConfig{MaxAttempts: a.cfg.StoreMaxRetries, BaseDelay: 2 * time.Second, Logger: a.logger}
		store, err := storage.NewPostgresStore(ctx, a.cfg.DSN(), retry)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreSQLite, "":
		store, err := storage.NewSQLiteStore(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", a.cfg.StoreDriver)
}

// requireStore is openStore for commands that cannot work without one.
func (a *app) requireStore(ctx context.Context) (storage.DealStore, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("persistence is disabled (STORE_DRIVER=none)")
	}
	return store, nil
}

func (a *app) renderer(format string) (report.Renderer, error) {
	switch strings.ToLower(format) {
	case "pdf":
		return report.NewPDFRenderer(a.cfg.ChromeBin), nil
	case "txt", "text":
		return report.TextRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown report format %q (want pdf or txt)", format)
}

// writeReport renders doc into dir and, when a bucket is configured,
// uploads it. It returns the local path.
func (a *app) writeReport(ctx context.Context, doc *report.Document, format, dir string) (string, error) {
	r, err := a.renderer(format)
	if err != nil {
		return "", err
	}
	data, err := r.Render(ctx, doc)
	if err != nil {
		return "", err
	}

	if dir == "" {
		dir = a.cfg.ReportOutputDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	name := strings.TrimSuffix(doc.FileName, filepath.Ext(doc.FileName)) + r.Extension()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	a.logger.Info("[report] Wrote %s (%d page(s), id %s)", path, len(doc.Pages), doc.ID)

	if a.cfg.ReportS3Bucket != "" {
		up, err := storage.NewS3Uploader(ctx, a.cfg.ReportS3Bucket, a.cfg.AWSRegion)
		if err != nil {
			a.logger.Warn("[report] S3 upload skipped: %v", err)
			return path, nil
		}
		contentType := "application/pdf"
		if r.Extension() == ".txt" {
			contentType = "text/plain; charset=utf-8"
		}
		url, err := up.Upload(ctx, name, data, contentType)
		if err != nil {
			a.logger.Warn("[report] S3 upload failed: %v", err)
		} else {
			a.logger.Info("[report] Uploaded to %s", url)
		}
	}
	return path, nil
}
