package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/infrastructure/storage"
	"cvewatch/internal/ports"
	"cvewatch/internal/scraper"
)

type faultySummaryStore struct {
	ports.SummaryStore
	err error
}

func (s *faultySummaryStore) SaveSummary(ctx context.Context, summary domain.DailySummary) error {
	return s.err
}

func newTestPipeline(store *storage.MemoryStore, sources ...scraper.Source) *Pipeline {
	registry := scraper.NewRegistry()
	for _, source := range sources {
		registry.Register(source)
	}
	return NewPipeline(PipelineDeps{
		Orchestrator: NewOrchestrator(registry, time.Second, nil),
		Records:      store,
		Summaries:    store,
		Status:       store,
		Timeline:     NewTimelineBuilder(store, store, nil),
	})
}

func TestPipelineRunPersistsBatch(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	trigger := time.Now().UTC()

	crit := scoredRecord("crit", 9.5, domain.SeverityCritical)
	crit.IngestedAt = trigger
	med := scoredRecord("med", 5.0, domain.SeverityMedium)
	med.IngestedAt = trigger

	pipeline := newTestPipeline(store,
		&stubSource{name: "alpha", records: []domain.VulnerabilityRecord{crit, med}})

	if err := pipeline.Run(context.Background(), trigger); err != nil {
		t.Fatalf("Run: %v", err)
	}

	records, err := store.RecentRecords(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(records))
	}

	summary, err := store.LatestSummary(context.Background())
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if summary.TotalCount != 2 || summary.CriticalCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	entry, err := store.Entry(context.Background(), domain.BucketDay(trigger))
	if err != nil {
		t.Fatalf("timeline entry not built: %v", err)
	}
	if entry.TotalNewCount != 1 {
		t.Fatalf("expected 1 timeline record, got %d", entry.TotalNewCount)
	}

	status, err := store.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != domain.RunCompleted || status.ItemsScraped != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestPipelineRunAllAdaptersFail(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	trigger := time.Now().UTC()

	pipeline := newTestPipeline(store,
		&stubSource{name: "alpha", err: errors.New("down")},
		&stubSource{name: "beta", err: errors.New("down")})

	if err := pipeline.Run(context.Background(), trigger); err != nil {
		t.Fatalf("adapter failures must not fail the run: %v", err)
	}

	records, err := store.RecentRecords(context.Background(), 0)
	if err != nil {
		t.Fatalf("RecentRecords: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no persisted records, got %d", len(records))
	}

	summary, err := store.LatestSummary(context.Background())
	if err != nil {
		t.Fatalf("empty run must still produce a summary: %v", err)
	}
	if summary.TotalCount != 0 {
		t.Fatalf("expected zero-count summary, got %d", summary.TotalCount)
	}

	status, err := store.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != domain.RunCompleted {
		t.Fatalf("expected completed state, got %s", status.State)
	}
	if status.ItemsScraped != 0 || len(status.Errors) != 2 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !status.NextRunAt.After(trigger) {
		t.Fatal("schedule did not advance")
	}
}

func TestPipelineStatusIsSingleton(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	pipeline := newTestPipeline(store, &stubSource{name: "alpha"})

	first := time.Now().UTC().Add(-time.Hour)
	second := time.Now().UTC()
	if err := pipeline.Run(context.Background(), first); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := pipeline.Run(context.Background(), second); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	status, err := store.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.NextRunAt.Equal(second.Add(24 * time.Hour)) {
		t.Fatalf("status not replaced by latest run: %+v", status)
	}
}

func TestPipelineRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	blocker := &stubSource{name: "slow", block: make(chan struct{}), started: make(chan struct{})}
	pipeline := newTestPipeline(store, blocker)

	done := make(chan error, 1)
	go func() {
		done <- pipeline.Run(context.Background(), time.Now().UTC())
	}()

	<-blocker.started
	if err := pipeline.Run(context.Background(), time.Now().UTC()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}

	close(blocker.block)
	if err := <-done; err != nil {
		t.Fatalf("blocked run failed: %v", err)
	}

	if err := pipeline.Run(context.Background(), time.Now().UTC()); err != nil {
		t.Fatalf("run after release failed: %v", err)
	}
}

func TestPipelinePersistenceFault(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	registry := scraper.NewRegistry()
	registry.Register(&stubSource{name: "alpha", records: []domain.VulnerabilityRecord{record("a1", "alpha")}})

	pipeline := NewPipeline(PipelineDeps{
		Orchestrator: NewOrchestrator(registry, time.Second, nil),
		Records:      store,
		Summaries:    &faultySummaryStore{err: errors.New("disk full")},
		Status:       store,
		Timeline:     NewTimelineBuilder(store, store, nil),
	})

	if err := pipeline.Run(context.Background(), time.Now().UTC()); err == nil {
		t.Fatal("expected persistence fault to propagate")
	}

	status, err := store.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != domain.RunError {
		t.Fatalf("expected error state, got %s", status.State)
	}
	if len(status.Errors) == 0 {
		t.Fatal("expected fault recorded in status errors")
	}
}
