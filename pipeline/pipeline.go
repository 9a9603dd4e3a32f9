// Package pipeline exports product records to files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/aluiziolira/go-product-scraper/config"
	"github.com/aluiziolira/go-product-scraper/models"
	"github.com/aluiziolira/go-product-scraper/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
	// ErrPipelineCloseTimeout is returned when workers do not drain in time.
	ErrPipelineCloseTimeout = errors.New("pipeline: close timed out")
)

// drainTimeout bounds how long Close waits for workers.
var drainTimeout = 30 * time.Second

// OutputWriter receives batches of records. Validate is called after Close
// and checks that the output holds expected records.
type OutputWriter interface {
	Write(records []*models.ProductRecord) error
	Close() error
	Validate(expected int) error
}

// Pipeline batches records into an OutputWriter and keeps quality counters.
// Records are never dropped; with a single worker they are written in the
// order they were submitted.
type Pipeline struct {
	ctx       context.Context
	writer    OutputWriter
	recordCh  chan *models.ProductRecord
	batchSize int

	wg sync.WaitGroup

	seenLinks *lru.Cache[string, struct{}]

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg.
func NewPipeline(ctx context.Context, writer OutputWriter, cfg *config.Config) *Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}
	bufferSize := cfg.PipelineBufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	dedupeSize := cfg.DedupeMaxSize
	if dedupeSize <= 0 {
		dedupeSize = 10000
	}
	// Only fails for a non-positive size.
	seen, _ := lru.New[string, struct{}](dedupeSize)

	return &Pipeline{
		ctx:       ctx,
		writer:    writer,
		recordCh:  make(chan *models.ProductRecord, bufferSize),
		batchSize: batchSize,
		seenLinks: seen,
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues records for downstream processing.
func (p *Pipeline) Process(records ...*models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, record := range records {
		if record == nil {
			continue
		}
		if err := p.enqueue(record); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for workers to finish and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.closeOnce.Do(func() {
		close(p.recordCh)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainTimeout):
		p.signalShutdown()
		return fmt.Errorf("%w after %s", ErrPipelineCloseTimeout, drainTimeout)
	}
	p.signalShutdown()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Stats is a snapshot of what the pipeline has written so far.
type Stats struct {
	Written int64
	// Quality counts records per missing field ("missing_title", ...) and
	// detail links seen more than once ("duplicate_link").
	Quality map[string]int
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := p.Stats()
				slog.Debug("export progress",
					slog.Int64("written", stats.Written),
					slog.Any("quality", stats.Quality),
				)
			case <-p.shutdown:
				return
			case <-p.ctx.Done():
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.ProductRecord, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		p.metrics.addWritten(len(batch))
		batch = batch[:0]
		return nil
	}

	for record := range p.recordCh {
		p.inspect(record)
		batch = append(batch, record)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// inspect updates the quality counters for a record.
func (p *Pipeline) inspect(record *models.ProductRecord) {
	for _, field := range parser.MissingFields(record) {
		p.metrics.addQuality("missing_" + field)
	}

	if record.DetailURL == "" {
		return
	}
	if found, _ := p.seenLinks.ContainsOrAdd(record.DetailURL, struct{}{}); found {
		p.metrics.addQuality("duplicate_link")
	}
}

func (p *Pipeline) enqueue(record *models.ProductRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.recordCh <- record:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu      sync.Mutex
	written int64
	quality map[string]int
}

func newMetrics() metrics {
	return metrics{
		quality: make(map[string]int),
	}
}

func (m *metrics) addWritten(n int) {
	m.mu.Lock()
	m.written += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addQuality(kind string) {
	m.mu.Lock()
	m.quality[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Written: m.written, Quality: maps.Clone(m.quality)}
}
