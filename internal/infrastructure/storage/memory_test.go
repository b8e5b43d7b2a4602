package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

func ingested(title string, severity domain.Severity, at time.Time) domain.VulnerabilityRecord {
	return domain.VulnerabilityRecord{
		ID:         domain.NewID(),
		Title:      title,
		Severity:   severity,
		IngestedAt: at,
	}
}

func TestRecentRecordsNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	if err := store.InsertRecords(context.Background(), []domain.VulnerabilityRecord{
		ingested("old", domain.SeverityLow, base),
		ingested("new", domain.SeverityLow, base.Add(time.Hour)),
		ingested("mid", domain.SeverityLow, base.Add(30*time.Minute)),
	}); err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}

	records, err := store.RecentRecords(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("limit not applied: %d records", len(records))
	}
	if records[0].Title != "new" || records[1].Title != "mid" {
		t.Fatalf("not newest-first: %s, %s", records[0].Title, records[1].Title)
	}
}

func TestRecordsBySeverity(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	now := time.Now().UTC()

	if err := store.InsertRecords(context.Background(), []domain.VulnerabilityRecord{
		ingested("crit", domain.SeverityCritical, now),
		ingested("high", domain.SeverityHigh, now),
		ingested("crit-2", domain.SeverityCritical, now),
	}); err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}

	records, err := store.RecordsBySeverity(context.Background(), domain.SeverityCritical, 0)
	if err != nil {
		t.Fatalf("RecordsBySeverity: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 critical records, got %d", len(records))
	}
}

func TestRecordsBetweenBounds(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	from := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	if err := store.InsertRecords(context.Background(), []domain.VulnerabilityRecord{
		ingested("before", domain.SeverityLow, from.Add(-time.Second)),
		ingested("at-start", domain.SeverityLow, from),
		ingested("inside", domain.SeverityLow, from.Add(12*time.Hour)),
		ingested("at-end", domain.SeverityLow, to),
	}); err != nil {
		t.Fatalf("InsertRecords: %v", err)
	}

	records, err := store.RecordsBetween(context.Background(), from, to)
	if err != nil {
		t.Fatalf("RecordsBetween: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected half-open interval to match 2 records, got %d", len(records))
	}
	if records[0].Title != "at-start" || records[1].Title != "inside" {
		t.Fatalf("wrong records matched: %s, %s", records[0].Title, records[1].Title)
	}
}

func TestReplaceStatusSingleton(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	if _, err := store.Status(context.Background()); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first run, got %v", err)
	}

	for i, items := range []int{5, 9} {
		err := store.ReplaceStatus(context.Background(), domain.RunStatus{
			ID:           domain.NewID(),
			State:        domain.RunCompleted,
			ItemsScraped: items,
		})
		if err != nil {
			t.Fatalf("ReplaceStatus %d: %v", i, err)
		}
	}

	status, err := store.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.ItemsScraped != 9 {
		t.Fatalf("old status survived replacement: %+v", status)
	}
}

func TestUpsertEntryReplaces(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	day := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	for _, total := range []int{3, 7} {
		err := store.UpsertEntry(context.Background(), domain.TimelineEntry{
			BucketDate:    day,
			TotalNewCount: total,
		})
		if err != nil {
			t.Fatalf("UpsertEntry: %v", err)
		}
	}

	entry, err := store.Entry(context.Background(), day)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if entry.TotalNewCount != 7 {
		t.Fatalf("upsert did not replace: %d", entry.TotalNewCount)
	}

	entries, err := store.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for the day, got %d", len(entries))
	}
}

func TestSubscriberLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	if err := store.SaveSubscriber(context.Background(), domain.Subscriber{
		ID:      domain.NewID(),
		Address: "alice@example.com",
		Active:  true,
		AddedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("SaveSubscriber: %v", err)
	}

	subscriber, err := store.SubscriberByAddress(context.Background(), "Alice@Example.com")
	if err != nil {
		t.Fatalf("SubscriberByAddress: %v", err)
	}
	if subscriber.Address != "alice@example.com" {
		t.Fatalf("unexpected subscriber: %+v", subscriber)
	}
}

func TestLatestSummary(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()

	if _, err := store.LatestSummary(context.Background()); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	base := time.Date(2024, 5, 10, 19, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.SaveSummary(context.Background(), domain.DailySummary{
			ID:      domain.NewID(),
			RunDate: base.AddDate(0, 0, i),
		})
		if err != nil {
			t.Fatalf("SaveSummary: %v", err)
		}
	}

	latest, err := store.LatestSummary(context.Background())
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if !latest.RunDate.Equal(base.AddDate(0, 0, 2)) {
		t.Fatalf("expected newest summary, got %v", latest.RunDate)
	}
}
