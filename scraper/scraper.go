// Package scraper extracts raw book records from the paginated catalog.
//
// The crawl is strictly sequential: one request at a time with a fixed
// delay, per the politeness contract with the source site. Each listing
// entry leads to one detail-page fetch, and the detail page supplies the
// complete raw record.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-books-warehouse/config"
	"github.com/aluiziolira/go-books-warehouse/models"
)

// detailCacheSize bounds the visited detail-page cache. The demo catalog has
// 1000 books; the bound only matters against pathological link loops.
const detailCacheSize = 4096

// Scraper wraps the colly collector and retry logic for the catalog crawl.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	retry     *retryManager
	metrics   *Metrics
	visited   *lru.Cache[string, struct{}]

	ctx          context.Context
	books        []*models.RawBook
	pageCount    int
	requestCount int
	errorCount   int
	failedURLs   []string

	handlersSet bool
}

// New builds a scraper configured from cfg. metrics may be nil.
func New(cfg *config.Config, metrics *Metrics) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)
	// Failed URLs are revisited by the retry path; de-duplication of detail
	// pages is handled by the LRU cache instead.
	collector.AllowURLRevisit = true

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	visited, err := lru.New[string, struct{}](detailCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}

	s := &Scraper{
		cfg:       cfg,
		collector: collector,
		metrics:   metrics,
		visited:   visited,
		ctx:       context.Background(),
	}
	s.retry = newRetryManager(collector, cfg, metrics)
	return s, nil
}

// Run crawls the catalog and returns the extracted raw records. It fails
// when the initial page cannot be fetched or when the crawl produced no
// records at all.
func (s *Scraper) Run(ctx context.Context) ([]*models.RawBook, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
	s.retry.ctx = ctx
	s.configureHandlers()

	if err := s.collector.Visit(s.cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("initial visit: %w", err)
	}
	s.collector.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.books) == 0 {
		return nil, fmt.Errorf("no records extracted (%d request errors)", s.errorCount)
	}

	slog.Info("extraction finished",
		slog.Int("records", len(s.books)),
		slog.Int("pages", s.pageCount+1),
		slog.Int("requests", s.requestCount),
		slog.Int("errors", s.errorCount),
		slog.Int("retries", s.retry.totalRetries),
		slog.Int("failed_urls", len(s.failedURLs)),
	)
	return s.books, nil
}

// FailedURLs lists the URLs that exhausted their retries.
func (s *Scraper) FailedURLs() []string {
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) configureHandlers() {
	if s.handlersSet {
		return
	}
	s.handlersSet = true

	s.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		s.requestCount++
		s.metrics.IncRequest("started")
		slog.Debug("fetching", slog.String("url", r.URL.String()))
	})

	s.collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= http.StatusBadRequest {
			slog.Error("non-200 response",
				slog.Int("status", r.StatusCode),
				slog.String("url", r.Request.URL.String()),
			)
		}
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.metrics.ObserveDuration(time.Since(start))
		}
	})

	s.collector.OnError(func(r *colly.Response, err error) {
		s.errorCount++
		statusCode := 0
		pageURL := ""
		if r != nil {
			statusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				pageURL = r.Request.URL.String()
			}
		}
		srcErr := classify(err, statusCode)
		slog.Error("request error",
			slog.String("url", pageURL),
			slog.String("category", srcErr.Kind),
			slog.Any("error", err),
		)
		s.metrics.IncError(srcErr.Kind)

		if !s.retry.attempt(pageURL) {
			s.failedURLs = append(s.failedURLs, pageURL)
		}
	})

	// Listing entry: queue the detail page, once per distinct URL.
	s.collector.OnHTML("article.product_pod h3 a", func(e *colly.HTMLElement) {
		if s.ctx.Err() != nil {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		if seen, _ := s.visited.ContainsOrAdd(link, struct{}{}); seen {
			slog.Debug("detail page already visited", slog.String("url", link))
			return
		}
		if err := s.collector.Visit(link); err != nil {
			slog.Error("visit detail page", slog.String("url", link), slog.Any("error", err))
		}
	})

	// Detail page: the full raw record lives here.
	s.collector.OnHTML("body", func(e *colly.HTMLElement) {
		if e.DOM.Find("article.product_page").Length() == 0 {
			return
		}
		book := extractDetail(e)
		s.books = append(s.books, book)
		s.metrics.IncRecords()
	})

	s.collector.OnHTML("li.next a", func(e *colly.HTMLElement) {
		s.pageCount++
		s.metrics.IncPages()
		if s.pageCount >= s.cfg.MaxPages {
			slog.Info("page limit reached", slog.Int("pages", s.pageCount))
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		next := e.Request.AbsoluteURL(e.Attr("href"))
		if err := s.collector.Visit(next); err != nil {
			slog.Error("visit next page", slog.String("url", next), slog.Any("error", err))
		}
	})
}

// extractDetail reads every raw field off one product detail page. Values
// are passed through untouched; parsing and validation belong to the
// cleaner.
func extractDetail(e *colly.HTMLElement) *models.RawBook {
	table := make(map[string]string)
	e.ForEach("table.table-striped tr", func(_ int, row *colly.HTMLElement) {
		header := strings.TrimSpace(row.ChildText("th"))
		if header == "" {
			return
		}
		table[header] = strings.TrimSpace(row.ChildText("td"))
	})

	ratingClass := e.ChildAttr("div.product_main p.star-rating", "class")
	rating := ""
	if parts := strings.Fields(ratingClass); len(parts) > 1 {
		rating = parts[1]
	}

	availability := strings.TrimSpace(e.ChildText("div.product_main p.instock.availability"))
	if availability == "" {
		availability = strings.TrimSpace(e.ChildText("div.product_main p.availability"))
	}

	return &models.RawBook{
		Title:              strings.TrimSpace(e.ChildText("div.product_main h1")),
		Price:              strings.TrimSpace(e.ChildText("div.product_main p.price_color")),
		Rating:             rating,
		Availability:       availability,
		Category:           strings.TrimSpace(e.ChildText("ul.breadcrumb li:nth-child(3)")),
		URL:                e.Request.URL.String(),
		ThumbnailURL:       e.Request.AbsoluteURL(e.ChildAttr("div.item.active img", "src")),
		Description:        strings.TrimSpace(e.ChildText("#product_description + p")),
		UPC:                table["UPC"],
		ProductType:        table["Product Type"],
		PriceExclTax:       table["Price (excl. tax)"],
		PriceInclTax:       table["Price (incl. tax)"],
		Tax:                table["Tax"],
		AvailabilityDetail: table["Availability"],
		NoOfReviews:        table["Number of reviews"],
		ScrapedAt:          time.Now(),
	}
}

// retryManager revisits failed URLs a bounded number of times with
// exponential backoff. The crawl is sequential, so the retry happens inline
// (sleep, then revisit) rather than on a timer.
type retryManager struct {
	collector *colly.Collector
	cfg       *config.Config
	metrics   *Metrics
	ctx       context.Context

	attempts     map[string]int
	totalRetries int
}

func newRetryManager(collector *colly.Collector, cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		collector: collector,
		cfg:       cfg,
		metrics:   metrics,
		attempts:  make(map[string]int),
		ctx:       context.Background(),
	}
}

// attempt retries url after a backoff pause. It reports false once the URL
// has exhausted its retry budget or the run context ended.
func (rm *retryManager) attempt(url string) bool {
	if url == "" || rm.cfg.MaxRetries == 0 {
		return false
	}

	count := rm.attempts[url]
	if count >= rm.cfg.MaxRetries {
		return false
	}
	rm.attempts[url] = count + 1
	rm.totalRetries++
	rm.metrics.IncRetries()

	delay := rm.backoff(count + 1)
	slog.Warn("retrying",
		slog.String("url", url),
		slog.Int("attempt", count+1),
		slog.Duration("backoff", delay),
	)

	select {
	case <-rm.ctx.Done():
		return false
	case <-time.After(delay):
	}

	if err := rm.collector.Visit(url); err != nil {
		slog.Debug("retry visit failed", slog.String("url", url), slog.Any("error", err))
	}
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
