package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-product-scraper/config"
	"github.com/aluiziolira/go-product-scraper/markup"
	"github.com/aluiziolira/go-product-scraper/models"
	"github.com/aluiziolira/go-product-scraper/parser"
	"golang.org/x/sync/errgroup"
)

// Scraper extracts product records from a listing page and its detail pages.
type Scraper struct {
	cfg       *config.Config
	base      *url.URL
	fetcher   *Fetcher
	extractor *markup.Extractor
	assembler *assembler
	Metrics   *Metrics
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	base, err := config.ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Parallelism <= 0 {
		return nil, fmt.Errorf("parallelism must be positive")
	}

	metrics := NewMetrics()
	fetcher := NewFetcher(base, cfg, metrics)
	extractor := markup.NewExtractor(cfg.Markers)

	return &Scraper{
		cfg:       cfg,
		base:      base,
		fetcher:   fetcher,
		extractor: extractor,
		assembler: &assembler{fetcher: fetcher, extractor: extractor},
		Metrics:   metrics,
	}, nil
}

// WithTransport replaces the HTTP transport, mostly for tests.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.fetcher.WithTransport(rt)
}

// Run scrapes the listing page. It fails with ErrNoListingContent when the
// listing page has no body, and with a transport error when any page cannot
// be reached; every other problem only leaves fields out of the records.
func (s *Scraper) Run(ctx context.Context) (*models.ScrapeResult, *models.RunStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	t := newTally()
	start := time.Now()

	listing, ok, err := s.fetcher.Fetch(ctx, phaseListing, s.base.String())
	t.request()
	if err != nil {
		return nil, t.snapshot(start, 0), fmt.Errorf("fetch listing: %w", err)
	}
	if !ok {
		t.unavailable(listing.Reason)
		slog.Error("listing page unavailable",
			slog.String("url", listing.URL),
			slog.Int("status", listing.StatusCode),
			slog.String("reason", listing.Reason),
		)
		return nil, t.snapshot(start, 0), ErrNoListingContent
	}

	page, err := markup.Parse(listing.Body)
	if err != nil {
		return nil, t.snapshot(start, 0), fmt.Errorf("parse listing: %w", err)
	}
	nodes := s.extractor.ListingNodes(page)
	slog.Debug("listing parsed", slog.String("url", listing.URL), slog.Int("products", len(nodes)))

	records := make([]*models.ProductRecord, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, node := range nodes {
		g.Go(func() error {
			record, err := s.assembler.assemble(gctx, node, t)
			if err != nil {
				return err
			}
			records[i] = record
			s.Metrics.IncProducts()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, t.snapshot(start, 0), err
	}

	result := &models.ScrapeResult{
		Results: records,
		Total:   parser.Total(records),
	}
	s.Metrics.SetTotal(result.Total)
	return result, t.snapshot(start, len(records)), nil
}

// tally counts requests and unavailable pages for one run.
type tally struct {
	requests int64

	mu             sync.Mutex
	unavailByCause map[string]int
}

func newTally() *tally {
	return &tally{unavailByCause: make(map[string]int)}
}

func (t *tally) request() {
	atomic.AddInt64(&t.requests, 1)
}

func (t *tally) unavailable(reason string) {
	t.mu.Lock()
	t.unavailByCause[reason]++
	t.mu.Unlock()
}

func (t *tally) snapshot(start time.Time, products int) *models.RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	byCause := make(map[string]int, len(t.unavailByCause))
	unavailable := 0
	for k, v := range t.unavailByCause {
		byCause[k] = v
		unavailable += v
	}
	return &models.RunStats{
		StartTime:          start,
		EndTime:            time.Now(),
		RequestCount:       int(atomic.LoadInt64(&t.requests)),
		ProductCount:       products,
		UnavailableCount:   unavailable,
		UnavailableByCause: byCause,
	}
}
