// Package pipeline runs the per-company scrape loop and persists its results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/asx-scraper/models"
	"github.com/aluiziolira/asx-scraper/parser"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// OutputWriter defines the interface for result output. Write receives the
// full accumulated result list every time.
type OutputWriter interface {
	Write(results []models.ScrapeResult) error
	Close() error
	Validate() error
}

// CompanyScraper produces a result for one company. It never fails; a failed
// fetch yields empty statistics.
type CompanyScraper interface {
	ScrapeCompany(ctx context.Context, company models.Company) models.ScrapeResult
}

// ResultSink receives run lifecycle events and each result as it is produced.
type ResultSink interface {
	StartRun(ctx context.Context, run *models.RunResult) error
	SaveResult(ctx context.Context, runID string, result models.ScrapeResult) error
	FinishRun(ctx context.Context, run *models.RunResult) error
}

// Runner scrapes companies strictly in order and checkpoints after each one.
type Runner struct {
	scraper    CompanyScraper
	checkpoint OutputWriter
	sink       ResultSink
	seen       *lru.Cache[string, struct{}]
	now        func() time.Time

	metrics metrics
}

// NewRunner builds a runner. checkpoint may be nil to disable progress files.
func NewRunner(scraper CompanyScraper, checkpoint OutputWriter, dedupeSize int) (*Runner, error) {
	if dedupeSize <= 0 {
		dedupeSize = 1
	}
	seen, err := lru.New[string, struct{}](dedupeSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	return &Runner{
		scraper:    scraper,
		checkpoint: checkpoint,
		seen:       seen,
		now:        time.Now,
		metrics:    newMetrics(),
	}, nil
}

// WithSink attaches a sink that mirrors every result.
func (r *Runner) WithSink(sink ResultSink) *Runner {
	r.sink = sink
	return r
}

// Run processes companies until the list is exhausted or ctx is cancelled,
// returning the run summary and the results collected so far.
func (r *Runner) Run(ctx context.Context, companies []models.Company) (*models.RunResult, []models.ScrapeResult) {
	if ctx == nil {
		ctx = context.Background()
	}

	run := &models.RunResult{
		RunID:     uuid.NewString(),
		StartTime: r.now(),
		Total:     len(companies),
	}
	if r.sink != nil {
		if err := r.sink.StartRun(ctx, run); err != nil {
			slog.Error("sink start run failed", slog.String("run_id", run.RunID), slog.Any("error", err))
		}
	}

	results := make([]models.ScrapeResult, 0, len(companies))
	for i, company := range companies {
		if ctx.Err() != nil {
			run.Cancelled = true
			break
		}
		if err := parser.ValidateCompany(company); err != nil {
			run.Skipped++
			r.metrics.addValidation("invalid_record")
			slog.Warn("skipping company", slog.Any("error", err))
			continue
		}
		code := parser.NormalizeCode(company.Code)
		if r.seen.Contains(code) {
			run.Skipped++
			r.metrics.addValidation("duplicate_code")
			slog.Debug("skipping duplicate company", slog.String("code", code))
			continue
		}
		r.seen.Add(code, struct{}{})

		slog.Info("processing company",
			slog.Int("index", i+1),
			slog.Int("total", len(companies)),
			slog.String("company", company.Name),
		)

		result := r.scraper.ScrapeCompany(ctx, company)
		if ctx.Err() != nil {
			run.Cancelled = true
			break
		}

		results = append(results, result)
		run.Scraped++
		if result.Statistics.Len() == 0 {
			run.Empty++
		}
		r.metrics.incrementProcessed()

		if r.checkpoint != nil {
			if err := r.checkpoint.Write(results); err != nil {
				slog.Error("checkpoint write failed", slog.Any("error", err))
			}
		}
		if r.sink != nil {
			if err := r.sink.SaveResult(ctx, run.RunID, result); err != nil {
				slog.Error("sink save failed", slog.String("code", result.ASXCode), slog.Any("error", err))
			}
		}
	}

	run.EndTime = r.now()
	if run.Cancelled {
		slog.Warn("run cancelled", slog.Int("collected", len(results)), slog.Int("total", run.Total))
	}
	if r.sink != nil {
		if err := r.sink.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			slog.Error("sink finish run failed", slog.String("run_id", run.RunID), slog.Any("error", err))
		}
	}
	return run, results
}

// GetMetrics returns a snapshot of the internal counters.
func (r *Runner) GetMetrics() map[string]interface{} {
	return r.metrics.snapshot()
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_companies": m.processed,
		"validation_errors":   copyValidation,
	}
}
