// Package pipeline runs the four ETL stages in order: extract, clean,
// stage, warehouse. Each stage runs to completion before the next starts; a
// stage failure aborts the run and downstream stages are not attempted.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-books-warehouse/cleaner"
	"github.com/aluiziolira/go-books-warehouse/models"
	"github.com/aluiziolira/go-books-warehouse/warehouse"
)

// Stage names a pipeline stage for failure reporting.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageClean     Stage = "clean"
	StageStaging   Stage = "staging"
	StageWarehouse Stage = "warehouse"
)

// StageError wraps a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Source produces the finite sequence of raw records for one run.
type Source interface {
	Run(ctx context.Context) ([]*models.RawBook, error)
}

// Store is the staging and warehouse persistence boundary.
type Store interface {
	EnsureSchema(ctx context.Context) error
	ReplaceStaging(ctx context.Context, books []*models.StagingBook) (int64, error)
	LoadStaging(ctx context.Context) ([]*models.StagingBook, error)
	ReplaceWarehouse(ctx context.Context, load *warehouse.Load) (warehouse.Counts, error)
}

// Result summarizes a completed run.
type Result struct {
	Extracted  int
	Cleaned    int
	Rejections []cleaner.Rejection
	Staged     int64
	Counts     warehouse.Counts
	Duration   time.Duration
}

// Pipeline wires the stages together.
type Pipeline struct {
	source  Source
	cleaner *cleaner.Cleaner
	store   Store
}

// New builds a pipeline over the given collaborators.
func New(source Source, cl *cleaner.Cleaner, store Store) *Pipeline {
	return &Pipeline{source: source, cleaner: cl, store: store}
}

// Run executes the full batch. The returned error, when non-nil, is a
// *StageError naming the stage that failed.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	raws, err := p.source.Run(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	result.Extracted = len(raws)
	slog.Info("extract stage complete", slog.Int("records", result.Extracted))

	books, rejections := p.cleaner.CleanAll(raws)
	result.Cleaned = len(books)
	result.Rejections = rejections
	slog.Info("clean stage complete",
		slog.Int("cleaned", result.Cleaned),
		slog.Int("dropped", len(rejections)),
	)
	if len(books) == 0 {
		return nil, &StageError{Stage: StageClean, Err: fmt.Errorf("no records survived cleaning")}
	}

	if err := p.store.EnsureSchema(ctx); err != nil {
		return nil, &StageError{Stage: StageStaging, Err: err}
	}
	staged, err := p.store.ReplaceStaging(ctx, books)
	if err != nil {
		return nil, &StageError{Stage: StageStaging, Err: err}
	}
	result.Staged = staged
	slog.Info("staging stage complete", slog.Int64("rows", staged))

	// The warehouse is derived from the staging table, not from the
	// in-memory clean output: raw_books is the single source of truth for
	// the load step.
	snapshot, err := p.store.LoadStaging(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageWarehouse, Err: err}
	}
	load, err := warehouse.BuildLoad(snapshot)
	if err != nil {
		return nil, &StageError{Stage: StageWarehouse, Err: err}
	}
	counts, err := p.store.ReplaceWarehouse(ctx, load)
	if err != nil {
		return nil, &StageError{Stage: StageWarehouse, Err: err}
	}
	result.Counts = counts
	slog.Info("warehouse stage complete",
		slog.Int64("facts", counts.Facts),
		slog.Int64("details", counts.Details),
		slog.Int64("categories", counts.Categories),
		slog.Int64("ratings", counts.Ratings),
		slog.Int64("availabilities", counts.Availabilities),
		slog.Int64("product_types", counts.ProductTypes),
	)

	result.Duration = time.Since(start)
	return result, nil
}
