package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-product-scraper/models"
	"github.com/aluiziolira/go-product-scraper/parser"
)

var csvHeader = []string{"title", "description", "size", "unit_price", "url"}

// CSVWriter streams records as CSV rows below a fixed header. Absent fields
// become empty cells.
type CSVWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVWriter{path: filename, file: f, writer: writer}, nil
}

func (cw *CSVWriter) Write(records []*models.ProductRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, r := range records {
		row := []string{
			stringCell(r.Title),
			stringCell(r.Description),
			stringCell(r.Size),
			priceCell(r.UnitPrice),
			r.DetailURL,
		}
		if err := cw.writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	return cw.file.Close()
}

// Validate rereads the closed file and checks it holds the header followed
// by exactly expected rows.
func (cw *CSVWriter) Validate(expected int) error {
	f, err := os.Open(cw.path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 || !slices.Equal(rows[0], csvHeader) {
		return fmt.Errorf("csv %s: missing header", cw.path)
	}
	if got := len(rows) - 1; got != expected {
		return fmt.Errorf("csv %s: %d records, want %d", cw.path, got, expected)
	}
	return nil
}

// JSONWriter collects records and writes them on Close as one document in
// the shape of the printed report: {"results": [...], "total": n}.
type JSONWriter struct {
	path    string
	file    *os.File
	records []*models.ProductRecord
	mu      sync.Mutex
}

// NewJSONWriter creates filename.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	f, err := createFile(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{path: filename, file: f, records: []*models.ProductRecord{}}, nil
}

func (jw *JSONWriter) Write(records []*models.ProductRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	jw.records = append(jw.records, records...)
	return nil
}

func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	report := models.ScrapeResult{Results: jw.records, Total: parser.Total(jw.records)}
	encoder := json.NewEncoder(jw.file)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(report); err != nil {
		jw.file.Close()
		return fmt.Errorf("encode json report: %w", err)
	}
	return jw.file.Close()
}

// Validate decodes the closed file and checks its record count and total.
func (jw *JSONWriter) Validate(expected int) error {
	data, err := os.ReadFile(jw.path)
	if err != nil {
		return fmt.Errorf("read json: %w", err)
	}

	var report models.ScrapeResult
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("decode json %s: %w", jw.path, err)
	}
	if report.Results == nil {
		return fmt.Errorf("json %s: missing results", jw.path)
	}
	if got := len(report.Results); got != expected {
		return fmt.Errorf("json %s: %d records, want %d", jw.path, got, expected)
	}
	if total := parser.Total(report.Results); total != report.Total {
		return fmt.Errorf("json %s: total %v, want %v", jw.path, report.Total, total)
	}
	return nil
}

// MultiWriter sends every batch to each of its writers in turn.
type MultiWriter struct {
	writers []OutputWriter
}

func NewMultiWriter(writers ...OutputWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (mw *MultiWriter) Write(records []*models.ProductRecord) error {
	for _, w := range mw.writers {
		if err := w.Write(records); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every writer, even after a failure.
func (mw *MultiWriter) Close() error {
	var errs []error
	for _, w := range mw.writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}

func (mw *MultiWriter) Validate(expected int) error {
	var errs []error
	for _, w := range mw.writers {
		errs = append(errs, w.Validate(expected))
	}
	return errors.Join(errs...)
}

func stringCell(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func priceCell(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// createFile creates filename along with any missing parent directories.
func createFile(filename string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}
