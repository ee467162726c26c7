// Package scraper fetches per-company statistics pages under a request budget.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aluiziolira/asx-scraper/config"
	"github.com/aluiziolira/asx-scraper/models"
	"github.com/aluiziolira/asx-scraper/parser"
	"github.com/gocolly/colly/v2"
)

// Company outcomes reported to metrics.
const (
	outcomeScraped = "scraped"
	outcomeEmpty   = "empty"
	outcomeFailed  = "failed"
)

// Scraper wraps a colly collector, the request throttle and the statistics parser.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	throttle  *Throttle
	parser    *parser.StatisticsParser
	headers   http.Header
	now       func() time.Time
	Metrics   *Metrics

	mu           sync.Mutex
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.StatsURL("X"))
	if err != nil {
		return nil, fmt.Errorf("parse stats url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("stats url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	headers := http.Header{}
	headers.Set("User-Agent", cfg.UserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	headers.Set("Accept-Language", "en-US,en;q=0.5")
	headers.Set("Connection", "keep-alive")
	headers.Set("Upgrade-Insecure-Requests", "1")

	return &Scraper{
		cfg:          cfg,
		collector:    collector,
		throttle:     NewThrottle(cfg),
		parser:       parser.NewStatisticsParser(),
		headers:      headers,
		now:          time.Now,
		Metrics:      NewMetrics(),
		errorsByType: make(map[string]int),
	}, nil
}

// WithTransport replaces the HTTP transport used by the collector.
func (s *Scraper) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
}

// ScrapeCompany fetches the statistics of one company. Failures are logged and
// yield a result with empty statistics.
func (s *Scraper) ScrapeCompany(ctx context.Context, company models.Company) models.ScrapeResult {
	symbol := s.cfg.Symbol(company.Code)
	slog.Info("scraping company",
		slog.String("company", company.Name),
		slog.String("symbol", symbol),
	)

	result := models.ScrapeResult{
		ASXCode:     company.Code,
		CompanyName: company.Name,
		Symbol:      symbol,
	}

	stats, err := s.FetchStatistics(ctx, symbol)
	result.ScrapedAt = s.now()
	if err != nil {
		slog.Error("statistics fetch failed",
			slog.String("symbol", symbol),
			slog.String("category", errorTypeLabel(err)),
			slog.Any("error", err),
		)
		s.Metrics.ObserveCompany(outcomeFailed, 0)
		return result
	}

	result.Statistics = *stats
	if stats.Len() == 0 {
		slog.Warn("no statistics found", slog.String("symbol", symbol))
		s.Metrics.ObserveCompany(outcomeEmpty, 0)
	} else {
		slog.Info("statistics extracted",
			slog.String("symbol", symbol),
			slog.Int("metrics", stats.Len()),
		)
		s.Metrics.ObserveCompany(outcomeScraped, stats.Len())
	}
	return result
}

// FetchStatistics waits on the throttle, downloads the statistics page for
// symbol and parses it. No retries are made.
func (s *Scraper) FetchStatistics(ctx context.Context, symbol string) (*models.Statistics, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.configureHandlers()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	waited, err := s.throttle.Wait(ctx)
	s.Metrics.AddThrottleWait(waited)
	if err != nil {
		return nil, err
	}

	target := s.cfg.StatsURL(symbol)
	reqCtx := colly.NewContext()
	reqCtx.Put("symbol", symbol)

	if err := s.collector.Request(http.MethodGet, target, nil, reqCtx, s.headers.Clone()); err != nil {
		if classified, ok := reqCtx.GetAny("error").(error); ok {
			err = classified
		}
		return nil, &FetchError{Symbol: symbol, URL: target, Err: err}
	}

	body, _ := reqCtx.GetAny("body").([]byte)
	stats, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Symbol: symbol, URL: target, Err: err}
	}
	return stats, nil
}

// ErrorsByType returns a snapshot of failure counts keyed by category.
func (s *Scraper) ErrorsByType() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
			s.Metrics.IncRequest("started")
			slog.Debug("requesting statistics page", slog.String("url", r.URL.String()))
		})

		s.collector.OnResponse(func(r *colly.Response) {
			r.Ctx.Put("body", r.Body)
			s.Metrics.IncRequest("completed")
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			target := ""
			if r != nil && r.Request != nil && r.Request.URL != nil {
				target = r.Request.URL.String()
			}
			slog.Debug("request error",
				slog.String("url", target),
				slog.Int("status", statusCode),
				slog.String("category", category),
			)
			s.Metrics.IncRequest("failed")
			s.Metrics.IncError(category)
			if r != nil && r.Ctx != nil && classified != nil {
				r.Ctx.Put("error", classified)
			}
		})
	})
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{StatusCode: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}
