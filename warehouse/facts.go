package warehouse

import (
	"errors"
	"fmt"

	"github.com/aluiziolira/go-books-warehouse/models"
)

// ErrDimensionMiss reports a fact row whose dimension value has no surrogate
// key. Dimensions and facts are derived from the same staging snapshot, so a
// miss is an invariant violation and aborts the run.
var ErrDimensionMiss = errors.New("dimension lookup miss")

// buildFacts emits one fact row per staging record, resolving the five
// dimension keys by exact value match. A nil rating maps to a nil RatingID;
// any other unresolvable lookup fails the whole build.
func buildFacts(books []*models.StagingBook, load *Load) ([]models.FactRow, error) {
	categories := indexStrings(load.Categories)
	availabilities := indexStrings(load.Availabilities)
	productTypes := indexStrings(load.ProductTypes)
	ratings := make(map[int]int, len(load.Ratings))
	for _, r := range load.Ratings {
		ratings[r.Value] = r.ID
	}
	details := make(map[string]int, len(load.Details))
	for _, d := range load.Details {
		details[d.UPC] = d.ID
	}

	facts := make([]models.FactRow, 0, len(books))
	for _, b := range books {
		detailID, ok := details[b.UPC]
		if !ok {
			return nil, fmt.Errorf("%w: books_details upc %q", ErrDimensionMiss, b.UPC)
		}
		categoryID, ok := categories[b.Category]
		if !ok {
			return nil, fmt.Errorf("%w: category %q", ErrDimensionMiss, b.Category)
		}
		availabilityID, ok := availabilities[b.Availability]
		if !ok {
			return nil, fmt.Errorf("%w: availability %q", ErrDimensionMiss, b.Availability)
		}
		productTypeID, ok := productTypes[b.ProductType]
		if !ok {
			return nil, fmt.Errorf("%w: product_type %q", ErrDimensionMiss, b.ProductType)
		}

		var ratingID *int
		if b.Rating != nil {
			id, ok := ratings[*b.Rating]
			if !ok {
				return nil, fmt.Errorf("%w: rating %d", ErrDimensionMiss, *b.Rating)
			}
			ratingID = &id
		}

		facts = append(facts, models.FactRow{
			BookDetailsID:     detailID,
			Price:             b.Price,
			PriceExclTax:      b.PriceExclTax,
			PriceInclTax:      b.PriceInclTax,
			Tax:               b.Tax,
			AvailableQuantity: b.AvailableQuantity,
			CategoryID:        categoryID,
			RatingID:          ratingID,
			AvailabilityID:    availabilityID,
			ProductTypeID:     productTypeID,
		})
	}
	return facts, nil
}

func indexStrings(rows []models.DimensionRow) map[string]int {
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		index[row.Value] = row.ID
	}
	return index
}
