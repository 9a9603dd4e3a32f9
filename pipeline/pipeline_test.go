package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-product-scraper/config"
	"github.com/aluiziolira/go-product-scraper/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.ProductRecord
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(records []*models.ProductRecord) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]*models.ProductRecord, len(records))
	copy(copyBatch, records)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate(int) error {
	return mw.validateErr
}

func (mw *mockWriter) all() []*models.ProductRecord {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.ProductRecord
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write(records []*models.ProductRecord) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	return nil
}

func (bw *blockingWriter) Validate(int) error {
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]*models.ProductRecord) error { return errors.New("disk full") }
func (failingWriter) Close() error { return nil }
func (failingWriter) Validate(int) error { return nil }

func numbered(i int) *models.ProductRecord {
	return &models.ProductRecord{
		Title:       models.StringPtr("Fruit " + strconv.Itoa(i)),
		Description: models.StringPtr("Tasty"),
		UnitPrice:   models.FloatPtr(float64(i)),
		DetailURL:   "http://something.com/fruits/" + strconv.Itoa(i) + "/",
	}
}

func TestPipelineQualityCounters(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	complete := numbered(1)
	partial := &models.ProductRecord{Title: models.StringPtr("Fruit B")}
	duplicate := numbered(1)

	if err := p.Process(complete, partial, duplicate); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.all()); got != 3 {
		t.Fatalf("written records = %d, want 3 (records are never dropped)", got)
	}

	stats := p.Stats()
	quality := stats.Quality
	if quality["missing_price"] != 1 || quality["missing_description"] != 1 {
		t.Fatalf("quality=%v, want one missing price and description", quality)
	}
	if quality["duplicate_link"] != 1 {
		t.Fatalf("quality=%v, want one duplicate_link", quality)
	}
	if stats.Written != 3 {
		t.Fatalf("written=%d, want 3", stats.Written)
	}
}

func TestPipelineSingleWorkerKeepsOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 3
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 10; i++ {
		if err := p.Process(numbered(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for i, record := range writer.all() {
		if want := "Fruit " + strconv.Itoa(i); *record.Title != want {
			t.Fatalf("record %d title=%q, want %q", i, *record.Title, want)
		}
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 65; i++ {
		if err := p.Process(numbered(i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineCloseDrainsPendingItems(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	for i := 0; i < 100; i++ {
		if err := p.Process(numbered(i + 200)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := len(writer.all()); got != 100 {
		t.Fatalf("written records = %d, want 100", got)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(context.Background(), &mockWriter{}, config.DefaultConfig())
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process(numbered(1)); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func TestPipelineWriteErrorSurfaces(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	p := NewPipeline(context.Background(), failingWriter{}, cfg)
	p.Start(1)

	if err := p.Process(numbered(1)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err == nil {
		t.Fatalf("expected write error from close")
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Process(numbered(1)); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}
