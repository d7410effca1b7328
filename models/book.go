// Package models defines the record types flowing through the ETL stages.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawBook holds one scraped listing exactly as the site presented it.
// Every field is an unparsed string that may be empty, duplicated, or carry
// encoding noise; nothing beyond presence of the struct itself is guaranteed.
type RawBook struct {
	Title              string    `json:"title"`
	Price              string    `json:"price"`
	Rating             string    `json:"rating"`
	Availability       string    `json:"availability"`
	Category           string    `json:"category"`
	URL                string    `json:"url"`
	ThumbnailURL       string    `json:"thumbnail_url"`
	Description        string    `json:"description"`
	UPC                string    `json:"upc"`
	ProductType        string    `json:"product_type"`
	PriceExclTax       string    `json:"price_excl_tax"`
	PriceInclTax       string    `json:"price_incl_tax"`
	Tax                string    `json:"tax"`
	AvailabilityDetail string    `json:"availability_detail"`
	NoOfReviews        string    `json:"no_of_reviews"`
	ScrapedAt          time.Time `json:"scraped_at"`
}

// StagingBook is a cleaned record ready for the raw_books staging table.
// Invariants enforced by the cleaner: UPC is non-empty and unique within a
// run, the price triple is consistent within tolerance, Rating is nil or in
// [1,5], and Category/Availability/ProductType are never empty.
type StagingBook struct {
	UPC               string
	Title             string
	Price             decimal.Decimal
	PriceExclTax      decimal.Decimal
	PriceInclTax      decimal.Decimal
	Tax               decimal.Decimal
	Rating            *int
	Availability      string
	AvailableQuantity int
	Category          string
	ProductType       string
	NoOfReviews       int
	URL               string
	ThumbnailURL      string
	Description       string
}

// DimensionRow is one (surrogate key, value) pair of a string-valued
// dimension: category_info, availability_info, or product_type.
type DimensionRow struct {
	ID    int
	Value string
}

// RatingRow is one row of the rating_info dimension.
type RatingRow struct {
	ID    int
	Value int
}

// BookDetailsRow is the per-book descriptive dimension, keyed by UPC.
type BookDetailsRow struct {
	ID           int
	UPC          string
	Title        string
	Description  string
	URL          string
	ThumbnailURL string
	NoOfReviews  int
}

// FactRow is one books_fact row: the numeric measures of a staging record
// plus the surrogate keys of its five dimensions. RatingID is nil when the
// source record had no parseable rating.
type FactRow struct {
	BookDetailsID     int
	Price             decimal.Decimal
	PriceExclTax      decimal.Decimal
	PriceInclTax      decimal.Decimal
	Tax               decimal.Decimal
	AvailableQuantity int
	CategoryID        int
	RatingID          *int
	AvailabilityID    int
	ProductTypeID     int
}
