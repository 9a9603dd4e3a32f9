// Package models defines data structures for the scraper.
package models

import "time"

// ProductRecord is one product from the listing page. Nil fields were not
// extractable and are left out of the JSON report.
type ProductRecord struct {
	Title       *string  `csv:"title" json:"title,omitempty"`
	Description *string  `csv:"description" json:"description,omitempty"`
	Size        *string  `csv:"size" json:"size,omitempty"`
	UnitPrice   *float64 `csv:"unit_price" json:"unit_price,omitempty"`

	// DetailURL is the resolved link to the detail page, empty when the
	// listing entry had none.
	DetailURL string `csv:"url" json:"-"`
}

// ScrapeResult is the report produced by a single run.
type ScrapeResult struct {
	Results []*ProductRecord `json:"results"`
	Total   float64          `json:"total"`
}

// RunStats holds bookkeeping about a run that is not part of the report.
type RunStats struct {
	StartTime          time.Time
	EndTime            time.Time
	RequestCount       int
	ProductCount       int
	UnavailableCount   int
	UnavailableByCause map[string]int
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 {
	return &f
}
