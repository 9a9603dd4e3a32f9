package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/go-product-scraper/config"
	"github.com/aluiziolira/go-product-scraper/models"
	"github.com/aluiziolira/go-product-scraper/pipeline"
	"github.com/aluiziolira/go-product-scraper/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scraper <url>",
		Short: "Extract product records from a listing page and its detail pages",
		Long: `Scraper fetches a product listing page, follows each product's link to its
detail page and prints the collected records with their total unit price as JSON.

Every flag can also be set through the environment, e.g. SCRAPER_PARALLEL=8.

Examples:
  scraper http://example.com/fruits/
  scraper http://example.com/fruits/ --output out/products.csv --format csv
  scraper http://example.com/fruits/ --metrics-addr :9090 -v`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scrape(cmd.Context(), args[0], cmd.Flags())
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func (a *app) scrape(ctx context.Context, baseURL string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(baseURL, flags)
	if err != nil {
		return err
	}

	logger, level := newLogger(a.stderr, cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return err
	}
	if a.transport != nil {
		s.WithTransport(a.transport)
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, s.Metrics)
	defer stopMetrics()

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("workers", cfg.Parallelism),
	)

	result, stats, err := s.Run(ctx)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		return err
	}

	if cfg.OutputFormat != "" {
		if err := exportRecords(ctx, cfg, result.Results); err != nil {
			return err
		}
	}

	logSummary(stats, result)

	encoder := json.NewEncoder(a.stdout)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	return encoder.Encode(result)
}

func serveMetrics(addr string, metrics *scraper.Metrics) func() {
	if addr == "" || metrics == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		base := strings.TrimSuffix(filename, filepath.Ext(filename))
		csvWriter, err := pipeline.NewCSVWriter(base + ".csv")
		if err != nil {
			return nil, err
		}
		jsonWriter, err := pipeline.NewJSONWriter(base + ".json")
		if err != nil {
			csvWriter.Close()
			return nil, err
		}
		return pipeline.NewMultiWriter(csvWriter, jsonWriter), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// exportRecords writes records to the configured file in document order and
// checks that every one of them made it.
func exportRecords(ctx context.Context, cfg *config.Config, records []*models.ProductRecord) error {
	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("create writer: %w", err)
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(1)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	processErr := p.Process(records...)
	drainErr := p.Close()
	closeErr := writer.Close()
	switch {
	case processErr != nil:
		return fmt.Errorf("export records: %w", processErr)
	case drainErr != nil:
		return fmt.Errorf("pipeline shutdown: %w", drainErr)
	case closeErr != nil:
		return fmt.Errorf("close writer: %w", closeErr)
	}
	if err := writer.Validate(len(records)); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}

	stats := p.Stats()
	slog.Info("records exported",
		slog.String("file", cfg.OutputFile),
		slog.String("format", cfg.OutputFormat),
		slog.Int64("written", stats.Written),
		slog.Any("quality", stats.Quality),
	)
	return nil
}

func logSummary(stats *models.RunStats, result *models.ScrapeResult) {
	slog.Info("scrape complete",
		slog.Int("products", stats.ProductCount),
		slog.Float64("total", result.Total),
		slog.Int("requests", stats.RequestCount),
		slog.Int("unavailable_pages", stats.UnavailableCount),
		slog.Any("unavailable_by_cause", stats.UnavailableByCause),
		slog.Duration("duration", stats.EndTime.Sub(stats.StartTime)),
	)
}
