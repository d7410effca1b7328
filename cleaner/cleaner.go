// Package cleaner turns raw scraped records into validated staging records.
//
// Malformed fields are repaired or defaulted; the only unrecoverable defect
// is a missing UPC. Duplicate UPCs collapse first-wins: the record seen
// first is kept and later ones are dropped with a logged collision.
package cleaner

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-books-warehouse/models"
	"github.com/aluiziolira/go-books-warehouse/parser"
)

// Reason classifies why a raw record was dropped.
type Reason string

const (
	ReasonMissingUPC   Reason = "missing_upc"
	ReasonDuplicateUPC Reason = "duplicate_upc"
)

// Rejection reports one dropped raw record.
type Rejection struct {
	URL    string
	Title  string
	Reason Reason
}

// Defaults applied to missing attribute values.
const (
	DefaultCategory    = "Others"
	DefaultProductType = "Books"
)

// Cleaner applies the data-quality rules to a sequence of raw records.
// It carries per-run state (seen UPCs, running category means) and is not
// safe for concurrent use; the pipeline is single-threaded by design.
type Cleaner struct {
	tolerance decimal.Decimal
	seen      map[string]string
	means     *categoryMeans
	metrics   *Metrics
}

// New builds a cleaner with the standard 0.01 pricing tolerance.
// metrics may be nil.
func New(metrics *Metrics) *Cleaner {
	return &Cleaner{
		tolerance: decimal.New(1, -2),
		seen:      make(map[string]string),
		means:     newCategoryMeans(),
		metrics:   metrics,
	}
}

// CleanAll runs Clean over the whole extract, returning the surviving
// staging records and the drops.
func (c *Cleaner) CleanAll(raws []*models.RawBook) ([]*models.StagingBook, []Rejection) {
	books := make([]*models.StagingBook, 0, len(raws))
	var rejections []Rejection
	for _, raw := range raws {
		book, rejection := c.Clean(raw)
		if rejection != nil {
			rejections = append(rejections, *rejection)
			continue
		}
		books = append(books, book)
	}
	return books, rejections
}

// Clean produces one staging record, or a rejection when the record cannot
// be recovered. It never fails on malformed field values.
func (c *Cleaner) Clean(raw *models.RawBook) (*models.StagingBook, *Rejection) {
	upc := strings.TrimSpace(raw.UPC)
	if upc == "" {
		slog.Warn("record rejected: missing upc",
			slog.String("title", raw.Title),
			slog.String("url", raw.URL),
		)
		c.metrics.IncRejected(string(ReasonMissingUPC))
		return nil, &Rejection{URL: raw.URL, Title: raw.Title, Reason: ReasonMissingUPC}
	}

	if keptTitle, ok := c.seen[upc]; ok {
		slog.Warn("duplicate upc collapsed",
			slog.String("upc", upc),
			slog.String("kept", keptTitle),
			slog.String("dropped", raw.Title),
		)
		c.metrics.IncRejected(string(ReasonDuplicateUPC))
		return nil, &Rejection{URL: raw.URL, Title: raw.Title, Reason: ReasonDuplicateUPC}
	}

	category := strings.TrimSpace(raw.Category)
	if category == "" {
		category = DefaultCategory
	}
	productType := strings.TrimSpace(raw.ProductType)
	if productType == "" {
		productType = DefaultProductType
	}

	availText := raw.AvailabilityDetail
	if strings.TrimSpace(availText) == "" {
		availText = raw.Availability
	}
	availability, qty := parser.ParseAvailability(availText)
	quantity := 0
	if qty != nil {
		quantity = *qty
	}

	prices := c.resolvePrices(raw, upc, category)

	book := &models.StagingBook{
		UPC:               upc,
		Title:             strings.TrimSpace(raw.Title),
		Price:             prices.price,
		PriceExclTax:      prices.excl,
		PriceInclTax:      prices.incl,
		Tax:               prices.tax,
		Rating:            parser.ParseRating(raw.Rating),
		Availability:      availability,
		AvailableQuantity: quantity,
		Category:          category,
		ProductType:       productType,
		NoOfReviews:       parser.ParseReviewCount(raw.NoOfReviews),
		URL:               raw.URL,
		ThumbnailURL:      raw.ThumbnailURL,
		Description:       raw.Description,
	}

	c.seen[upc] = book.Title
	c.metrics.IncCleaned()
	return book, nil
}

type resolvedPrices struct {
	price, excl, incl, tax decimal.Decimal
}

// resolvePrices parses the four price fields, repairs inconsistencies, and
// imputes a missing price from the running category mean. The result always
// satisfies incl = excl + tax exactly and |price - incl| <= tolerance.
func (c *Cleaner) resolvePrices(raw *models.RawBook, upc, category string) resolvedPrices {
	price, priceOK := parser.ParsePrice(raw.Price)
	excl, exclOK := parser.ParsePrice(raw.PriceExclTax)
	incl, inclOK := parser.ParsePrice(raw.PriceInclTax)
	tax, taxOK := parser.ParsePrice(raw.Tax)

	// Triple repair: with all three present the stated incl value yields to
	// excl + tax; with one absent the missing member is derived.
	switch {
	case exclOK && taxOK:
		want := excl.Add(tax)
		if inclOK && !incl.Equal(want) {
			diff := incl.Sub(want).Abs()
			if diff.GreaterThan(c.tolerance) {
				slog.Warn("price inconsistency repaired",
					slog.String("upc", upc),
					slog.String("price_incl_tax", incl.String()),
					slog.String("recomputed", want.String()),
				)
				c.metrics.IncRepaired("price_incl_tax")
			}
		}
		incl, inclOK = want, true
	case exclOK && inclOK:
		tax, taxOK = incl.Sub(excl), true
	case inclOK && taxOK:
		excl, exclOK = incl.Sub(tax), true
	}

	// Price resolution: a missing price falls back to incl, then to the
	// running category mean, then to the global mean.
	if !priceOK {
		switch {
		case inclOK:
			price = incl
		default:
			mean, ok := c.means.mean(category)
			if !ok {
				slog.Warn("no mean available for price imputation, defaulting to zero",
					slog.String("upc", upc),
					slog.String("category", category),
				)
			}
			price = mean
			slog.Info("price imputed from running mean",
				slog.String("upc", upc),
				slog.String("category", category),
				slog.String("price", price.String()),
			)
			c.metrics.IncRepaired("price_imputed")
		}
	}

	// Complete any remaining gaps in the triple from the resolved price.
	if !inclOK {
		incl = price
	}
	if !exclOK && !taxOK {
		excl, tax = incl, decimal.Zero
	} else if !exclOK {
		excl = incl.Sub(tax)
	} else if !taxOK {
		tax = incl.Sub(excl)
	}

	// Negative money never loads; clamp and restore the triple invariant.
	if excl.IsNegative() {
		excl = decimal.Zero
	}
	if tax.IsNegative() {
		tax = decimal.Zero
	}
	incl = excl.Add(tax)

	// Cross-check the display price against incl, as the source lists the
	// tax-inclusive amount.
	if price.Sub(incl).Abs().GreaterThan(c.tolerance) {
		slog.Warn("price diverges from price_incl_tax, repaired",
			slog.String("upc", upc),
			slog.String("price", price.String()),
			slog.String("price_incl_tax", incl.String()),
		)
		c.metrics.IncRepaired("price")
		price = incl
	}
	if price.IsNegative() {
		price = decimal.Zero
	}

	if priceOK {
		c.means.observe(category, price)
	}

	return resolvedPrices{price: price, excl: excl, incl: incl, tax: tax}
}
