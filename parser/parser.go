// Package parser holds the field-level parsing rules applied to raw scraped
// values before validation.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// usdToGBP is the fixed conversion rate applied to dollar-denominated prices.
var usdToGBP = decimal.NewFromFloat(0.75)

var quantityPattern = regexp.MustCompile(`(\d+)`)

// Availability statuses written to the staging table.
const (
	InStock    = "In Stock"
	OutOfStock = "Out of Stock"
)

// CleanPriceText strips whitespace and the stray "Â" byte the site's
// Latin-1/UTF-8 mismatch leaves in front of the pound sign.
func CleanPriceText(price string) string {
	price = strings.TrimSpace(price)
	price = strings.ReplaceAll(price, "Â", "")
	return strings.TrimSpace(price)
}

// ParsePrice converts a raw price string to a decimal amount in pounds.
// Dollar prices are converted at a fixed rate; an empty or unparseable
// string reports ok=false and is left for the imputation step.
func ParsePrice(price string) (decimal.Decimal, bool) {
	price = CleanPriceText(price)
	if price == "" {
		return decimal.Zero, false
	}

	if rest, found := strings.CutPrefix(price, "$"); found {
		value, err := decimal.NewFromString(rest)
		if err != nil {
			return decimal.Zero, false
		}
		return value.Mul(usdToGBP).Round(2), true
	}

	price = strings.TrimPrefix(price, "£")
	value, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// ParseAvailability normalizes availability text to In Stock/Out of Stock and
// extracts the advertised quantity from text like "In stock (19 available)".
// The quantity is nil when the text carries no number.
func ParseAvailability(text string) (string, *int) {
	status := OutOfStock
	if strings.Contains(strings.ToLower(text), "in stock") {
		status = InStock
	}

	match := quantityPattern.FindString(text)
	if match == "" {
		return status, nil
	}
	qty, err := strconv.Atoi(match)
	if err != nil || qty < 0 {
		return status, nil
	}
	return status, &qty
}

// ParseRating converts the site's word rating (or a plain digit) to an
// integer in [1,5]. Anything else yields nil.
func ParseRating(rating string) *int {
	var value int
	switch strings.TrimSpace(rating) {
	case "One", "1":
		value = 1
	case "Two", "2":
		value = 2
	case "Three", "3":
		value = 3
	case "Four", "4":
		value = 4
	case "Five", "5":
		value = 5
	default:
		return nil
	}
	return &value
}

// ParseReviewCount converts the review counter, defaulting to 0 on missing
// or negative input.
func ParseReviewCount(text string) int {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
