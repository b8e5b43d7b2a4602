package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

// MemoryStore keeps all collections in process memory. It backs DSN-less
// runs and tests, and mirrors the Postgres store's semantics: append-only
// records, newest-first summaries, singleton run status, and one timeline
// entry per bucket date.
type MemoryStore struct {
	mu          sync.RWMutex
	records     []domain.VulnerabilityRecord
	summaries   []domain.DailySummary
	status      *domain.RunStatus
	timeline    map[time.Time]domain.TimelineEntry
	subscribers map[string]domain.Subscriber
	deliveries  []domain.DeliveryLog
}

var (
	_ ports.RecordStore      = (*MemoryStore)(nil)
	_ ports.SummaryStore     = (*MemoryStore)(nil)
	_ ports.StatusStore      = (*MemoryStore)(nil)
	_ ports.TimelineStore    = (*MemoryStore)(nil)
	_ ports.SubscriberStore  = (*MemoryStore)(nil)
	_ ports.DeliveryLogStore = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		timeline:    map[time.Time]domain.TimelineEntry{},
		subscribers: map[string]domain.Subscriber{},
	}
}

// InsertRecords appends the batch; records are never updated afterwards.
func (s *MemoryStore) InsertRecords(ctx context.Context, records []domain.VulnerabilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// RecentRecords returns the newest records by ingestion time.
func (s *MemoryStore) RecentRecords(ctx context.Context, limit int) ([]domain.VulnerabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.VulnerabilityRecord, len(s.records))
	copy(result, s.records)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].IngestedAt.After(result[j].IngestedAt)
	})
	return clip(result, limit), nil
}

// RecordsBySeverity filters by tier, newest first.
func (s *MemoryStore) RecordsBySeverity(ctx context.Context, severity domain.Severity, limit int) ([]domain.VulnerabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.VulnerabilityRecord
	for _, record := range s.records {
		if record.Severity == severity {
			result = append(result, record)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].IngestedAt.After(result[j].IngestedAt)
	})
	return clip(result, limit), nil
}

// RecordsBetween returns records ingested in [from, to), in insertion order.
func (s *MemoryStore) RecordsBetween(ctx context.Context, from, to time.Time) ([]domain.VulnerabilityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.VulnerabilityRecord
	for _, record := range s.records {
		if !record.IngestedAt.Before(from) && record.IngestedAt.Before(to) {
			result = append(result, record)
		}
	}
	return result, nil
}

// SaveSummary appends one rollup.
func (s *MemoryStore) SaveSummary(ctx context.Context, summary domain.DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

// Summaries returns rollups newest-first.
func (s *MemoryStore) Summaries(ctx context.Context, limit int) ([]domain.DailySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DailySummary, len(s.summaries))
	copy(result, s.summaries)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RunDate.After(result[j].RunDate)
	})
	return clip(result, limit), nil
}

// LatestSummary returns the newest rollup or ports.ErrNotFound.
func (s *MemoryStore) LatestSummary(ctx context.Context) (domain.DailySummary, error) {
	summaries, err := s.Summaries(ctx, 1)
	if err != nil {
		return domain.DailySummary{}, err
	}
	if len(summaries) == 0 {
		return domain.DailySummary{}, ports.ErrNotFound
	}
	return summaries[0], nil
}

// ReplaceStatus discards any prior status and stores the new one.
func (s *MemoryStore) ReplaceStatus(ctx context.Context, status domain.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &status
	return nil
}

// Status returns the current run status or ports.ErrNotFound before the
// first run.
func (s *MemoryStore) Status(ctx context.Context) (domain.RunStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return domain.RunStatus{}, ports.ErrNotFound
	}
	return *s.status, nil
}

// UpsertEntry replaces the entry for its bucket date.
func (s *MemoryStore) UpsertEntry(ctx context.Context, entry domain.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline[entry.BucketDate] = entry
	return nil
}

// Entry returns the entry for one bucket date or ports.ErrNotFound.
func (s *MemoryStore) Entry(ctx context.Context, day time.Time) (domain.TimelineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.timeline[day]
	if !ok {
		return domain.TimelineEntry{}, ports.ErrNotFound
	}
	return entry, nil
}

// Entries returns all timeline entries ordered by bucket date.
func (s *MemoryStore) Entries(ctx context.Context) ([]domain.TimelineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.TimelineEntry, 0, len(s.timeline))
	for _, entry := range s.timeline {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BucketDate.Before(result[j].BucketDate)
	})
	return result, nil
}

// SubscriberByAddress looks up one address or returns ports.ErrNotFound.
func (s *MemoryStore) SubscriberByAddress(ctx context.Context, address string) (domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subscriber, ok := s.subscribers[strings.ToLower(address)]
	if !ok {
		return domain.Subscriber{}, ports.ErrNotFound
	}
	return subscriber, nil
}

// SaveSubscriber inserts or replaces by address.
func (s *MemoryStore) SaveSubscriber(ctx context.Context, subscriber domain.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[strings.ToLower(subscriber.Address)] = subscriber
	return nil
}

// ActiveSubscribers returns subscribers with the active flag set.
func (s *MemoryStore) ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	all, err := s.Subscribers(ctx)
	if err != nil {
		return nil, err
	}
	var active []domain.Subscriber
	for _, subscriber := range all {
		if subscriber.Active {
			active = append(active, subscriber)
		}
	}
	return active, nil
}

// Subscribers returns everyone, ordered by signup time.
func (s *MemoryStore) Subscribers(ctx context.Context) ([]domain.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Subscriber, 0, len(s.subscribers))
	for _, subscriber := range s.subscribers {
		result = append(result, subscriber)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AddedAt.Before(result[j].AddedAt)
	})
	return result, nil
}

// AppendDelivery records one notification attempt.
func (s *MemoryStore) AppendDelivery(ctx context.Context, entry domain.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, entry)
	return nil
}

// Deliveries returns attempts newest-first.
func (s *MemoryStore) Deliveries(ctx context.Context, limit int) ([]domain.DeliveryLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DeliveryLog, len(s.deliveries))
	copy(result, s.deliveries)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].SentAt.After(result[j].SentAt)
	})
	return clip(result, limit), nil
}

func clip[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
