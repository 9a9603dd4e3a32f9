// Package parser turns free text scraped from product pages into typed values.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-product-scraper/models"
)

// numberPattern matches a decimal with an optional integer part, or bare digits.
var numberPattern = regexp.MustCompile(`\d*\.\d+|\d+`)

// ExtractPrice returns the first number found in text. Currency symbols and
// unit suffixes around it are ignored.
func ExtractPrice(text string) (float64, bool) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// NormalizeText trims surrounding whitespace from scraped text.
func NormalizeText(text string) string {
	return strings.TrimSpace(text)
}

// FormatSize renders a byte count as kilobytes with two decimals, e.g. "1.23kb".
func FormatSize(bytes int) string {
	return fmt.Sprintf("%.2fkb", float64(bytes)/1000.0)
}

// RoundTotal rounds to two decimal places using the shortest correctly
// rounded decimal representation.
func RoundTotal(total float64) float64 {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(total, 'f', 2, 64), 64)
	if err != nil {
		return total
	}
	return rounded
}

// Total sums the present unit prices in order and rounds the result.
func Total(records []*models.ProductRecord) float64 {
	sum := 0.0
	for _, r := range records {
		if r.UnitPrice != nil {
			sum += *r.UnitPrice
		}
	}
	return RoundTotal(sum)
}

// MissingFields lists the optional fields a record lacks.
func MissingFields(r *models.ProductRecord) []string {
	var missing []string
	if r.Title == nil {
		missing = append(missing, "title")
	}
	if r.Description == nil {
		missing = append(missing, "description")
	}
	if r.UnitPrice == nil {
		missing = append(missing, "price")
	}
	return missing
}
