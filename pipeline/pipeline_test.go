package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/aluiziolira/go-books-warehouse/cleaner"
	"github.com/aluiziolira/go-books-warehouse/models"
	"github.com/aluiziolira/go-books-warehouse/warehouse"
)

type fakeSource struct {
	books []*models.RawBook
	err   error
}

func (f *fakeSource) Run(ctx context.Context) ([]*models.RawBook, error) {
	return f.books, f.err
}

type fakeStore struct {
	calls       []string
	staged      []*models.StagingBook
	replaceErr  error
	schemaErr   error
	loadErr     error
	warehouseOK bool
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error {
	f.calls = append(f.calls, "schema")
	return f.schemaErr
}

func (f *fakeStore) ReplaceStaging(ctx context.Context, books []*models.StagingBook) (int64, error) {
	f.calls = append(f.calls, "staging")
	if f.replaceErr != nil {
		return 0, f.replaceErr
	}
	f.staged = books
	return int64(len(books)), nil
}

func (f *fakeStore) LoadStaging(ctx context.Context) ([]*models.StagingBook, error) {
	f.calls = append(f.calls, "load")
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.staged, nil
}

func (f *fakeStore) ReplaceWarehouse(ctx context.Context, load *warehouse.Load) (warehouse.Counts, error) {
	f.calls = append(f.calls, "warehouse")
	f.warehouseOK = true
	return warehouse.Counts{
		Categories:     int64(len(load.Categories)),
		Ratings:        int64(len(load.Ratings)),
		Availabilities: int64(len(load.Availabilities)),
		ProductTypes:   int64(len(load.ProductTypes)),
		Details:        int64(len(load.Details)),
		Facts:          int64(len(load.Facts)),
	}, nil
}

func rawBook(upc string) *models.RawBook {
	return &models.RawBook{
		Title:        "Book " + upc,
		Price:        "£10.00",
		Rating:       "Two",
		Availability: "In stock (5 available)",
		Category:     "Poetry",
		UPC:          upc,
		ProductType:  "Books",
		PriceExclTax: "£10.00",
		PriceInclTax: "£10.00",
		Tax:          "£0.00",
		NoOfReviews:  "1",
	}
}

func TestPipelineRunSuccess(t *testing.T) {
	source := &fakeSource{books: []*models.RawBook{rawBook("a"), rawBook("b"), rawBook("a")}}
	store := &fakeStore{}
	p := New(source, cleaner.New(nil), store)

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Extracted != 3 {
		t.Fatalf("extracted=%d, want 3", result.Extracted)
	}
	if result.Cleaned != 2 {
		t.Fatalf("cleaned=%d, want 2 (duplicate collapsed)", result.Cleaned)
	}
	if len(result.Rejections) != 1 {
		t.Fatalf("rejections=%d, want 1", len(result.Rejections))
	}
	if result.Staged != 2 {
		t.Fatalf("staged=%d, want 2", result.Staged)
	}
	if result.Counts.Facts != 2 || result.Counts.Details != 2 {
		t.Fatalf("counts=%+v, want 2 facts and 2 details", result.Counts)
	}

	want := []string{"schema", "staging", "load", "warehouse"}
	if len(store.calls) != len(want) {
		t.Fatalf("calls=%v, want %v", store.calls, want)
	}
	for i, call := range want {
		if store.calls[i] != call {
			t.Fatalf("calls=%v, want %v", store.calls, want)
		}
	}
}

func TestPipelineFailsAtExtract(t *testing.T) {
	source := &fakeSource{err: errors.New("network down")}
	store := &fakeStore{}
	p := New(source, cleaner.New(nil), store)

	_, err := p.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageExtract {
		t.Fatalf("err=%v, want extract stage failure", err)
	}
	if len(store.calls) != 0 {
		t.Fatalf("store should not be touched after extract failure, calls=%v", store.calls)
	}
}

func TestPipelineFailsAtCleanWhenNothingSurvives(t *testing.T) {
	noUPC := rawBook("x")
	noUPC.UPC = ""
	source := &fakeSource{books: []*models.RawBook{noUPC}}
	store := &fakeStore{}
	p := New(source, cleaner.New(nil), store)

	_, err := p.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageClean {
		t.Fatalf("err=%v, want clean stage failure", err)
	}
	if len(store.calls) != 0 {
		t.Fatalf("store should not be touched, calls=%v", store.calls)
	}
}

func TestPipelineFailsAtStaging(t *testing.T) {
	source := &fakeSource{books: []*models.RawBook{rawBook("a")}}
	store := &fakeStore{replaceErr: errors.New("connection reset")}
	p := New(source, cleaner.New(nil), store)

	_, err := p.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageStaging {
		t.Fatalf("err=%v, want staging stage failure", err)
	}
	if store.warehouseOK {
		t.Fatalf("warehouse stage ran after staging failure")
	}
}

func TestPipelineFailsAtWarehouseLoad(t *testing.T) {
	source := &fakeSource{books: []*models.RawBook{rawBook("a")}}
	store := &fakeStore{loadErr: errors.New("connection reset")}
	p := New(source, cleaner.New(nil), store)

	_, err := p.Run(context.Background())
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageWarehouse {
		t.Fatalf("err=%v, want warehouse stage failure", err)
	}
}

func TestPipelineIdempotentOverUnchangedSource(t *testing.T) {
	books := []*models.RawBook{rawBook("a"), rawBook("b"), rawBook("c")}

	run := func() *Result {
		t.Helper()
		p := New(&fakeSource{books: books}, cleaner.New(nil), &fakeStore{})
		result, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}

	first := run()
	second := run()
	if first.Staged != second.Staged {
		t.Fatalf("staged rows differ across runs: %d vs %d", first.Staged, second.Staged)
	}
	if first.Counts != second.Counts {
		t.Fatalf("warehouse counts differ across runs: %+v vs %+v", first.Counts, second.Counts)
	}
}
