package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/scraper"
)

const defaultFetchTimeout = 30 * time.Second

// Orchestrator runs every registered source adapter concurrently under a
// per-adapter time budget and merges the results in registration order.
// A failed or slow adapter contributes zero records plus a logged error;
// it never fails the batch or cancels siblings.
type Orchestrator struct {
	registry *scraper.Registry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewOrchestrator wires the source registry. A non-positive timeout falls
// back to 30 seconds per adapter.
func NewOrchestrator(registry *scraper.Registry, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Orchestrator{registry: registry, timeout: timeout, logger: logger}
}

// FetchAll fans out one goroutine per adapter, waits for all to finish or
// time out, and returns the merged batch plus any adapter error messages.
func (o *Orchestrator) FetchAll(ctx context.Context) ([]domain.VulnerabilityRecord, []string) {
	adapters := o.registry.Sources()
	results := make([]scraper.FetchResult, len(adapters))

	var wg sync.WaitGroup
	for i, source := range adapters {
		wg.Add(1)
		go func(slot int, src scraper.Source) {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			records, err := src.Fetch(fetchCtx)
			results[slot] = scraper.FetchResult{Source: src.Name(), Records: records, Err: err}
		}(i, source)
	}
	wg.Wait()

	var (
		batch  []domain.VulnerabilityRecord
		errors []string
	)
	for _, result := range results {
		if result.Err != nil {
			o.debug("adapter failed", "source", result.Source, "error", result.Err)
			errors = append(errors, fmt.Sprintf("%s: %v", result.Source, result.Err))
			continue
		}
		o.debug("adapter done", "source", result.Source, "count", len(result.Records))
		batch = append(batch, result.Records...)
	}

	return batch, errors
}

func (o *Orchestrator) debug(msg string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Debug(msg, args...)
	}
}
