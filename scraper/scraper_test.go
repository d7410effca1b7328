package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-books-warehouse/config"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	cfg.MaxPages = 5
	cfg.Delay = 0
	cfg.MaxRetries = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	return cfg
}

func catalogPage(page, books int, hasNext bool) string {
	var sb strings.Builder
	sb.WriteString("<html><body><section>")
	for i := 1; i <= books; i++ {
		n := (page-1)*books + i
		sb.WriteString(fmt.Sprintf(`
			<article class="product_pod">
				<h3><a href="/catalogue/book-%d/index.html" title="Book %d">Book %d</a></h3>
				<p class="price_color">£1.00</p>
			</article>`, n, n, n))
	}
	if hasNext {
		sb.WriteString(fmt.Sprintf(`<ul class="pager"><li class="next"><a href="/page-%d.html">next</a></li></ul>`, page+1))
	}
	sb.WriteString("</section></body></html>")
	return sb.String()
}

func detailPage(n int) string {
	return fmt.Sprintf(`<html><body>
		<ul class="breadcrumb">
			<li><a href="/">Home</a></li>
			<li><a href="/books">Books</a></li>
			<li><a href="/poetry">Poetry</a></li>
			<li class="active">Book %d</li>
		</ul>
		<article class="product_page">
			<div class="row">
				<div class="col-sm-6">
					<div id="product_gallery"><div class="item active"><img src="/media/book-%d.jpg"/></div></div>
				</div>
				<div class="col-sm-6 product_main">
					<h1>Book %d</h1>
					<p class="price_color">£51.77</p>
					<p class="instock availability">In stock (19 available)</p>
					<p class="star-rating Three"></p>
				</div>
			</div>
			<div id="product_description" class="sub-header"><h2>Product Description</h2></div>
			<p>A fine book about nothing in particular.</p>
			<table class="table table-striped">
				<tr><th>UPC</th><td>upc-%d</td></tr>
				<tr><th>Product Type</th><td>Books</td></tr>
				<tr><th>Price (excl. tax)</th><td>£51.77</td></tr>
				<tr><th>Price (incl. tax)</th><td>£51.77</td></tr>
				<tr><th>Tax</th><td>£0.00</td></tr>
				<tr><th>Availability</th><td>In stock (19 available)</td></tr>
				<tr><th>Number of reviews</th><td>0</td></tr>
			</table>
		</article>
	</body></html>`, n, n, n, n)
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func newTestScraper(t *testing.T, cfg *config.Config, transport *httpmock.MockTransport) *Scraper {
	t.Helper()
	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	s.collector.WithTransport(transport)
	return s
}

func TestScraperIntegration(t *testing.T) {
	cfg := testConfig()

	transport := httpmock.NewMockTransport()
	page1 := catalogPage(1, 2, true)
	page2 := catalogPage(2, 2, false)
	transport.RegisterResponder("GET", cfg.BaseURL, htmlResponder(page1))
	transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), htmlResponder(page1))
	transport.RegisterResponder("GET", cfg.BaseURL+"page-2.html", htmlResponder(page2))
	for n := 1; n <= 4; n++ {
		transport.RegisterResponder("GET",
			fmt.Sprintf("%scatalogue/book-%d/index.html", cfg.BaseURL, n),
			htmlResponder(detailPage(n)),
		)
	}

	s := newTestScraper(t, cfg, transport)
	books, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(books) != 4 {
		t.Fatalf("records=%d, want 4", len(books))
	}

	found := false
	for _, b := range books {
		if b.UPC != "" && b.URL == cfg.BaseURL+"catalogue/book-1/index.html" {
			found = true
			if b.Title != "Book 1" {
				t.Fatalf("title=%q, want Book 1", b.Title)
			}
			if b.Price != "£51.77" {
				t.Fatalf("price=%q, want £51.77", b.Price)
			}
			if b.Rating != "Three" {
				t.Fatalf("rating=%q, want Three", b.Rating)
			}
			if b.Category != "Poetry" {
				t.Fatalf("category=%q, want Poetry", b.Category)
			}
			if b.UPC != "upc-1" {
				t.Fatalf("upc=%q, want upc-1", b.UPC)
			}
			if b.AvailabilityDetail != "In stock (19 available)" {
				t.Fatalf("availability detail=%q", b.AvailabilityDetail)
			}
			if b.Description == "" {
				t.Fatalf("description should not be empty")
			}
			if !strings.HasSuffix(b.ThumbnailURL, "/media/book-1.jpg") {
				t.Fatalf("thumbnail=%q", b.ThumbnailURL)
			}
		}
	}
	if !found {
		t.Fatalf("book-1 record not extracted")
	}
}

func TestScraperDeduplicatesDetailPages(t *testing.T) {
	cfg := testConfig()

	// Two listing entries pointing at the same detail page.
	listing := `<html><body>
		<article class="product_pod"><h3><a href="/catalogue/book-1/index.html">Book 1</a></h3></article>
		<article class="product_pod"><h3><a href="/catalogue/book-1/index.html">Book 1</a></h3></article>
	</body></html>`

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.BaseURL, htmlResponder(listing))
	transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), htmlResponder(listing))
	transport.RegisterResponder("GET", cfg.BaseURL+"catalogue/book-1/index.html", htmlResponder(detailPage(1)))

	s := newTestScraper(t, cfg, transport)
	books, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("records=%d, want 1 (detail page fetched once)", len(books))
	}
}

func TestScraperRespectsMaxPages(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPages = 2

	transport := httpmock.NewMockTransport()
	for page := 1; page <= 3; page++ {
		body := catalogPage(page, 1, page < 3)
		if page == 1 {
			transport.RegisterResponder("GET", cfg.BaseURL, htmlResponder(body))
			transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), htmlResponder(body))
			continue
		}
		transport.RegisterResponder("GET", fmt.Sprintf("%spage-%d.html", cfg.BaseURL, page), htmlResponder(body))
	}
	for n := 1; n <= 3; n++ {
		transport.RegisterResponder("GET",
			fmt.Sprintf("%scatalogue/book-%d/index.html", cfg.BaseURL, n),
			htmlResponder(detailPage(n)),
		)
	}

	s := newTestScraper(t, cfg, transport)
	books, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("records=%d, want 2 (third page skipped)", len(books))
	}
}

func TestScraperSurvivesFailedDetailPage(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1

	listing := catalogPage(1, 2, false)
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.BaseURL, htmlResponder(listing))
	transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), htmlResponder(listing))
	transport.RegisterResponder("GET", cfg.BaseURL+"catalogue/book-1/index.html", htmlResponder(detailPage(1)))
	transport.RegisterResponder("GET", cfg.BaseURL+"catalogue/book-2/index.html",
		httpmock.NewStringResponder(404, "not found"))

	s := newTestScraper(t, cfg, transport)
	books, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("records=%d, want 1", len(books))
	}
	failed := s.FailedURLs()
	if len(failed) != 1 || !strings.Contains(failed[0], "book-2") {
		t.Fatalf("failed urls=%v, want the 404 detail page", failed)
	}
}

func TestScraperFailsWithNoRecords(t *testing.T) {
	cfg := testConfig()

	empty := "<html><body></body></html>"
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", cfg.BaseURL, htmlResponder(empty))
	transport.RegisterResponder("GET", strings.TrimSuffix(cfg.BaseURL, "/"), htmlResponder(empty))

	s := newTestScraper(t, cfg, transport)
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatalf("expected error for a crawl that produced no records")
	}
}

func TestRetryManagerRespectsBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 2

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/page", htmlResponder("<html></html>"))

	collector := colly.NewCollector()
	collector.AllowURLRevisit = true
	collector.WithTransport(transport)

	rm := newRetryManager(collector, cfg, nil)
	if !rm.attempt("http://example.test/page") {
		t.Fatalf("first retry should run")
	}
	if !rm.attempt("http://example.test/page") {
		t.Fatalf("second retry should run")
	}
	if rm.attempt("http://example.test/page") {
		t.Fatalf("third retry should be refused")
	}
	if rm.totalRetries != 2 {
		t.Fatalf("total retries=%d, want 2", rm.totalRetries)
	}
}

func TestRetryManagerBackoffCapped(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	rm := newRetryManager(colly.NewCollector(), cfg, nil)
	if delay := rm.backoff(4); delay > cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", delay, cfg.RetryBackoffMax)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, want: KindTimeout},
		{name: "op error", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: KindConnection},
		{name: "forbidden", status: 403, want: KindForbidden},
		{name: "not found", status: 404, want: KindNotFound},
		{name: "rate limited", status: 429, want: KindRateLimited},
		{name: "other", err: errors.New("mystery"), want: KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, tt.status)
			if got.Kind != tt.want {
				t.Fatalf("classify kind=%q, want %q", got.Kind, tt.want)
			}
		})
	}
}
