package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aluiziolira/go-books-warehouse/models"
)

// Store wraps the Postgres connection pool for staging and warehouse loads.
//
// Money values cross the wire as strings and are cast by the server, which
// keeps the decimal package authoritative for arithmetic and Postgres
// NUMERIC authoritative for storage.
type Store struct {
	pool *pgxpool.Pool
}

// Counts reports the rows written by a warehouse replace.
type Counts struct {
	Categories     int64
	Ratings        int64
	Availabilities int64
	ProductTypes   int64
	Details        int64
	Facts          int64
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the staging and warehouse tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schemaDDL {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// ReplaceStaging swaps the full contents of raw_books for books inside one
// transaction: readers see either the previous snapshot or the new one.
func (s *Store) ReplaceStaging(ctx context.Context, books []*models.StagingBook) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin staging replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE raw_books RESTART IDENTITY`); err != nil {
		return 0, fmt.Errorf("truncate raw_books: %w", err)
	}

	batch := &pgx.Batch{}
	for _, b := range books {
		batch.Queue(
			`INSERT INTO raw_books (
				upc, title, price, price_excl_tax, price_incl_tax, tax,
				rating, availability, available_quantity, category,
				product_type, no_of_reviews, book_url, book_thumbnail_url,
				product_description
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			b.UPC, b.Title,
			b.Price.String(), b.PriceExclTax.String(), b.PriceInclTax.String(), b.Tax.String(),
			b.Rating, b.Availability, b.AvailableQuantity, b.Category,
			b.ProductType, b.NoOfReviews, b.URL, b.ThumbnailURL, b.Description,
		)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return 0, fmt.Errorf("insert raw_books: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit staging replace: %w", err)
	}
	return int64(len(books)), nil
}

// LoadStaging reads the full staging snapshot back, in insertion order.
func (s *Store) LoadStaging(ctx context.Context) ([]*models.StagingBook, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT upc, title,
		       price::text, price_excl_tax::text, price_incl_tax::text, tax::text,
		       rating, availability, available_quantity, category,
		       product_type, no_of_reviews, book_url, book_thumbnail_url,
		       product_description
		FROM raw_books
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query raw_books: %w", err)
	}
	defer rows.Close()

	var books []*models.StagingBook
	for rows.Next() {
		b := &models.StagingBook{}
		var price, excl, incl, tax string
		if err := rows.Scan(
			&b.UPC, &b.Title,
			&price, &excl, &incl, &tax,
			&b.Rating, &b.Availability, &b.AvailableQuantity, &b.Category,
			&b.ProductType, &b.NoOfReviews, &b.URL, &b.ThumbnailURL,
			&b.Description,
		); err != nil {
			return nil, fmt.Errorf("scan raw_books row: %w", err)
		}
		if b.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		if b.PriceExclTax, err = decimal.NewFromString(excl); err != nil {
			return nil, fmt.Errorf("parse price_excl_tax: %w", err)
		}
		if b.PriceInclTax, err = decimal.NewFromString(incl); err != nil {
			return nil, fmt.Errorf("parse price_incl_tax: %w", err)
		}
		if b.Tax, err = decimal.NewFromString(tax); err != nil {
			return nil, fmt.Errorf("parse tax: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read raw_books: %w", err)
	}
	return books, nil
}

// ReplaceWarehouse swaps all dimension and fact tables for load in one
// transaction, so the warehouse is never queryable in a half-loaded state.
func (s *Store) ReplaceWarehouse(ctx context.Context, load *Load) (Counts, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("begin warehouse replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE books_fact, books_details,
		category_info, rating_info, availability_info, product_type
		RESTART IDENTITY`); err != nil {
		return Counts{}, fmt.Errorf("truncate warehouse: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range load.Categories {
		batch.Queue(`INSERT INTO category_info (id, category_name) VALUES ($1, $2)`, row.ID, row.Value)
	}
	for _, row := range load.Ratings {
		batch.Queue(`INSERT INTO rating_info (id, rating_value) VALUES ($1, $2)`, row.ID, row.Value)
	}
	for _, row := range load.Availabilities {
		batch.Queue(`INSERT INTO availability_info (id, availability_status) VALUES ($1, $2)`, row.ID, row.Value)
	}
	for _, row := range load.ProductTypes {
		batch.Queue(`INSERT INTO product_type (id, product_type_name) VALUES ($1, $2)`, row.ID, row.Value)
	}
	for _, row := range load.Details {
		batch.Queue(
			`INSERT INTO books_details (id, upc, title, product_description, book_url, book_thumbnail_url, no_of_reviews)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			row.ID, row.UPC, row.Title, row.Description, row.URL, row.ThumbnailURL, row.NoOfReviews,
		)
	}
	for _, f := range load.Facts {
		batch.Queue(
			`INSERT INTO books_fact (
				books_details_id, price, price_excl_tax, price_incl_tax, tax,
				available_quantity, category_id, rating_id, availability_id, product_type_id
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			f.BookDetailsID,
			f.Price.String(), f.PriceExclTax.String(), f.PriceInclTax.String(), f.Tax.String(),
			f.AvailableQuantity, f.CategoryID, f.RatingID, f.AvailabilityID, f.ProductTypeID,
		)
	}
	if err := sendBatch(ctx, tx, batch); err != nil {
		return Counts{}, fmt.Errorf("insert warehouse rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Counts{}, fmt.Errorf("commit warehouse replace: %w", err)
	}

	return Counts{
		Categories:     int64(len(load.Categories)),
		Ratings:        int64(len(load.Ratings)),
		Availabilities: int64(len(load.Availabilities)),
		ProductTypes:   int64(len(load.ProductTypes)),
		Details:        int64(len(load.Details)),
		Facts:          int64(len(load.Facts)),
	}, nil
}

func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return err
		}
	}
	return results.Close()
}
