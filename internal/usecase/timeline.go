package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

// ErrNoTimelineData signals that a day has no qualifying records and no
// entry was written. Empty days never clutter the timeline.
var ErrNoTimelineData = errors.New("no high-severity records for day")

// TimelineBuilder maintains the day-bucketed high-severity timeline. It is
// the only component that writes timeline entries.
type TimelineBuilder struct {
	records ports.RecordStore
	entries ports.TimelineStore
	logger  *slog.Logger
}

// NewTimelineBuilder wires the record and timeline stores.
func NewTimelineBuilder(records ports.RecordStore, entries ports.TimelineStore, logger *slog.Logger) *TimelineBuilder {
	return &TimelineBuilder{records: records, entries: entries, logger: logger}
}

// Build computes the high-severity bucket for the given calendar day and
// upserts it, replacing any existing entry for that day. Rebuilding the
// same day is idempotent. When no record qualifies, no entry is written
// and ErrNoTimelineData is returned.
func (b *TimelineBuilder) Build(ctx context.Context, day time.Time) (domain.TimelineEntry, error) {
	bucket := domain.BucketDay(day)

	all, err := b.records.RecordsBetween(ctx, bucket, bucket.Add(24*time.Hour))
	if err != nil {
		return domain.TimelineEntry{}, fmt.Errorf("query records: %w", err)
	}

	var qualifying []domain.VulnerabilityRecord
	for _, record := range all {
		if record.HighSeverity() {
			qualifying = append(qualifying, record)
		}
	}
	if len(qualifying) == 0 {
		return domain.TimelineEntry{}, ErrNoTimelineData
	}

	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].ScoreValue() > qualifying[j].ScoreValue()
	})

	entry := domain.TimelineEntry{
		BucketDate:    bucket,
		Records:       qualifying,
		TotalNewCount: len(qualifying),
	}
	for _, record := range qualifying {
		switch record.Severity {
		case domain.SeverityCritical:
			entry.NewCriticalCount++
		case domain.SeverityHigh:
			entry.NewHighCount++
		}
	}

	if err := b.entries.UpsertEntry(ctx, entry); err != nil {
		return domain.TimelineEntry{}, fmt.Errorf("upsert timeline entry: %w", err)
	}

	if b.logger != nil {
		b.logger.Info("timeline entry built",
			"day", bucket.Format("2006-01-02"),
			"critical", entry.NewCriticalCount,
			"high", entry.NewHighCount,
			"total", entry.TotalNewCount)
	}

	return entry, nil
}

// Backfill builds entries for the last days calendar days including today,
// skipping days with no qualifying records. Used to bootstrap history.
func (b *TimelineBuilder) Backfill(ctx context.Context, days int) ([]domain.TimelineEntry, error) {
	today := domain.BucketDay(time.Now().UTC())

	var built []domain.TimelineEntry
	for offset := days - 1; offset >= 0; offset-- {
		entry, err := b.Build(ctx, today.AddDate(0, 0, -offset))
		if errors.Is(err, ErrNoTimelineData) {
			continue
		}
		if err != nil {
			return built, err
		}
		built = append(built, entry)
	}
	return built, nil
}

// Entry returns the stored entry for a day, or ports.ErrNotFound.
func (b *TimelineBuilder) Entry(ctx context.Context, day time.Time) (domain.TimelineEntry, error) {
	return b.entries.Entry(ctx, domain.BucketDay(day))
}

// Stats aggregates counts across all timeline entries.
func (b *TimelineBuilder) Stats(ctx context.Context) (domain.TimelineStats, error) {
	entries, err := b.entries.Entries(ctx)
	if err != nil {
		return domain.TimelineStats{}, fmt.Errorf("query entries: %w", err)
	}

	stats := domain.TimelineStats{EntryCount: len(entries)}
	for _, entry := range entries {
		stats.CriticalCount += entry.NewCriticalCount
		stats.HighCount += entry.NewHighCount
		stats.TotalCount += entry.TotalNewCount
	}
	return stats, nil
}
