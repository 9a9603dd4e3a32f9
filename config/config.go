package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aluiziolira/go-product-scraper/markup"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL            string
	Parallelism        int
	Timeout            time.Duration
	UserAgent          string
	Markers            markup.Markers
	OutputFile         string
	OutputFormat       string // csv, json, or dual; empty disables the export
	BatchSize          int
	PipelineBufferSize int
	DedupeMaxSize      int
	MetricsAddr        string
	Verbose            bool
}

// DefaultConfig returns defaults for the grocery listing pages.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "",
		Parallelism:        4,
		Timeout:            10 * time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Markers:            markup.DefaultMarkers(),
		OutputFile:         "",
		OutputFormat:       "",
		BatchSize:          64,
		PipelineBufferSize: 512,
		DedupeMaxSize:      10000,
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// InvalidURLError reports a base URL that cannot be scraped.
type InvalidURLError struct {
	URL    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid URL %q: %s", e.URL, e.Reason)
}

// ParseBaseURL parses raw and checks it is an absolute http(s) URL.
func ParseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &InvalidURLError{URL: raw, Reason: "base URL cannot be empty"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidURLError{URL: raw, Reason: err.Error()}
	}
	if parsed.Scheme == "" {
		return nil, &InvalidURLError{
			URL:    raw,
			Reason: fmt.Sprintf("no scheme supplied, perhaps you meant http://%s?", raw),
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &InvalidURLError{URL: raw, Reason: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &InvalidURLError{URL: raw, Reason: "base URL must include a host"}
	}
	return parsed, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if _, err := ParseBaseURL(c.BaseURL); err != nil {
		return err
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.Markers.ListTag == "" || c.Markers.ItemTag == "" || c.Markers.TitleTag == "" || c.Markers.LinkTag == "" {
		return fmt.Errorf("markup tags cannot be empty")
	}
	if c.Markers.ListingClass == "" || c.Markers.PriceClass == "" || c.Markers.DetailClass == "" {
		return fmt.Errorf("markup classes cannot be empty")
	}
	switch c.OutputFormat {
	case "":
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty when a format is set")
		}
	default:
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}

	return nil
}
