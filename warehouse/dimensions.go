// Package warehouse derives the star schema from a staging snapshot and
// persists both through a Postgres store.
//
// Surrogate keys are assigned deterministically: the distinct values of each
// dimension are sorted (lexically for strings, numerically for ratings, by
// UPC for book details) and numbered from 1. Keys are stable within a run
// and reproducible across runs over identical staging contents; there is no
// historical continuity between differing loads.
package warehouse

import (
	"sort"

	"github.com/aluiziolira/go-books-warehouse/models"
)

// Load is the fully derived warehouse contents for one run.
type Load struct {
	Categories     []models.DimensionRow
	Ratings        []models.RatingRow
	Availabilities []models.DimensionRow
	ProductTypes   []models.DimensionRow
	Details        []models.BookDetailsRow
	Facts          []models.FactRow
}

// BuildLoad derives all five dimensions and the fact rows from one staging
// snapshot. The only possible error is a fact-side dimension lookup miss,
// which cannot happen when dimensions and facts come from the same snapshot
// and therefore signals a bug rather than bad data.
func BuildLoad(books []*models.StagingBook) (*Load, error) {
	load := &Load{
		Categories:     buildStringDimension(books, func(b *models.StagingBook) string { return b.Category }),
		Ratings:        buildRatingDimension(books),
		Availabilities: buildStringDimension(books, func(b *models.StagingBook) string { return b.Availability }),
		ProductTypes:   buildStringDimension(books, func(b *models.StagingBook) string { return b.ProductType }),
		Details:        buildDetails(books),
	}

	facts, err := buildFacts(books, load)
	if err != nil {
		return nil, err
	}
	load.Facts = facts
	return load, nil
}

func buildStringDimension(books []*models.StagingBook, value func(*models.StagingBook) string) []models.DimensionRow {
	distinct := make(map[string]struct{})
	for _, b := range books {
		distinct[value(b)] = struct{}{}
	}

	values := make([]string, 0, len(distinct))
	for v := range distinct {
		values = append(values, v)
	}
	sort.Strings(values)

	rows := make([]models.DimensionRow, len(values))
	for i, v := range values {
		rows[i] = models.DimensionRow{ID: i + 1, Value: v}
	}
	return rows
}

func buildRatingDimension(books []*models.StagingBook) []models.RatingRow {
	distinct := make(map[int]struct{})
	for _, b := range books {
		if b.Rating != nil {
			distinct[*b.Rating] = struct{}{}
		}
	}

	values := make([]int, 0, len(distinct))
	for v := range distinct {
		values = append(values, v)
	}
	sort.Ints(values)

	rows := make([]models.RatingRow, len(values))
	for i, v := range values {
		rows[i] = models.RatingRow{ID: i + 1, Value: v}
	}
	return rows
}

// buildDetails projects one row per book. UPCs are already unique after
// cleaning, so this is a projection, not an aggregation.
func buildDetails(books []*models.StagingBook) []models.BookDetailsRow {
	sorted := make([]*models.StagingBook, len(books))
	copy(sorted, books)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].UPC < sorted[j].UPC })

	rows := make([]models.BookDetailsRow, len(sorted))
	for i, b := range sorted {
		rows[i] = models.BookDetailsRow{
			ID:           i + 1,
			UPC:          b.UPC,
			Title:        b.Title,
			Description:  b.Description,
			URL:          b.URL,
			ThumbnailURL: b.ThumbnailURL,
			NoOfReviews:  b.NoOfReviews,
		}
	}
	return rows
}
