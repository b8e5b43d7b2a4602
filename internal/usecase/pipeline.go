package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

// ErrRunInProgress rejects a trigger while another run is still executing.
// Manual and scheduled triggers share this guard.
var ErrRunInProgress = errors.New("a run is already in progress")

// PipelineDeps wires the driven adapters into the run pipeline.
type PipelineDeps struct {
	Orchestrator *Orchestrator
	Records      ports.RecordStore
	Summaries    ports.SummaryStore
	Status       ports.StatusStore
	Timeline     *TimelineBuilder
	Notifier     *Notifier
	NextRun      func(time.Time) time.Time
	Logger       *slog.Logger
}

// Pipeline executes one fetch-classify-aggregate-timeline-notify run and
// records its status. Exactly one run is in flight at a time.
type Pipeline struct {
	orchestrator *Orchestrator
	records      ports.RecordStore
	summaries    ports.SummaryStore
	status       ports.StatusStore
	timeline     *TimelineBuilder
	notifier     *Notifier
	nextRun      func(time.Time) time.Time
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewPipeline constructs the run pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	nextRun := deps.NextRun
	if nextRun == nil {
		nextRun = func(t time.Time) time.Time { return t.Add(24 * time.Hour) }
	}
	return &Pipeline{
		orchestrator: deps.Orchestrator,
		records:      deps.Records,
		summaries:    deps.Summaries,
		status:       deps.Status,
		timeline:     deps.Timeline,
		notifier:     deps.Notifier,
		nextRun:      nextRun,
		logger:       deps.Logger,
	}
}

// Run executes the full pipeline for one trigger. Adapter failures degrade
// to fewer records and are reported through the run status; persistence
// faults flip the status to error and propagate to the caller. Notification
// failure is logged but never affects the run outcome. The schedule always
// advances, regardless of outcome.
func (p *Pipeline) Run(ctx context.Context, trigger time.Time) error {
	if !p.acquire() {
		return ErrRunInProgress
	}
	defer p.release()

	p.info("run started", "trigger", trigger.Format(time.RFC3339))

	batch, fetchErrors := p.orchestrator.FetchAll(ctx)

	if len(batch) > 0 {
		if err := p.records.InsertRecords(ctx, batch); err != nil {
			err = fmt.Errorf("insert records: %w", err)
			p.writeStatus(ctx, domain.RunError, trigger, 0, append(fetchErrors, err.Error()))
			return err
		}
	}

	summary := BuildSummary(trigger, batch)
	if err := p.summaries.SaveSummary(ctx, summary); err != nil {
		err = fmt.Errorf("save summary: %w", err)
		p.writeStatus(ctx, domain.RunError, trigger, len(batch), append(fetchErrors, err.Error()))
		return err
	}

	if _, err := p.timeline.Build(ctx, trigger); err != nil && !errors.Is(err, ErrNoTimelineData) {
		err = fmt.Errorf("build timeline: %w", err)
		p.writeStatus(ctx, domain.RunError, trigger, len(batch), append(fetchErrors, err.Error()))
		return err
	}

	if p.notifier != nil {
		p.notifier.DispatchSummary(ctx, summary)
	}

	p.writeStatus(ctx, domain.RunCompleted, trigger, len(batch), fetchErrors)
	p.info("run completed", "items", len(batch), "adapter_errors", len(fetchErrors))
	return nil
}

func (p *Pipeline) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return false
	}
	p.running = true
	return true
}

func (p *Pipeline) release() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Pipeline) writeStatus(ctx context.Context, state domain.RunState, trigger time.Time, items int, errs []string) {
	status := domain.RunStatus{
		ID:           domain.NewID(),
		State:        state,
		LastRunAt:    time.Now().UTC(),
		NextRunAt:    p.nextRun(trigger),
		ItemsScraped: items,
		Errors:       errs,
	}
	if err := p.status.ReplaceStatus(ctx, status); err != nil && p.logger != nil {
		p.logger.Error("replace run status", "error", err)
	}
}

func (p *Pipeline) info(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
