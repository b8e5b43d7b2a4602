package ports

import (
	"context"
	"errors"
	"time"

	"cvewatch/internal/domain"
)

// ErrNotFound is returned by stores when the requested document is absent.
var ErrNotFound = errors.New("not found")

// RecordStore persists vulnerability records as an append-only log.
type RecordStore interface {
	InsertRecords(ctx context.Context, records []domain.VulnerabilityRecord) error
	RecentRecords(ctx context.Context, limit int) ([]domain.VulnerabilityRecord, error)
	RecordsBySeverity(ctx context.Context, severity domain.Severity, limit int) ([]domain.VulnerabilityRecord, error)
	RecordsBetween(ctx context.Context, from, to time.Time) ([]domain.VulnerabilityRecord, error)
}

// SummaryStore keeps daily summaries, queryable newest-first.
type SummaryStore interface {
	SaveSummary(ctx context.Context, summary domain.DailySummary) error
	Summaries(ctx context.Context, limit int) ([]domain.DailySummary, error)
	LatestSummary(ctx context.Context) (domain.DailySummary, error)
}

// StatusStore holds the single current run status; each write replaces it.
type StatusStore interface {
	ReplaceStatus(ctx context.Context, status domain.RunStatus) error
	Status(ctx context.Context) (domain.RunStatus, error)
}

// TimelineStore keeps at most one entry per bucket date.
type TimelineStore interface {
	UpsertEntry(ctx context.Context, entry domain.TimelineEntry) error
	Entry(ctx context.Context, day time.Time) (domain.TimelineEntry, error)
	Entries(ctx context.Context) ([]domain.TimelineEntry, error)
}

// SubscriberStore manages report recipients; rows are soft-deleted only.
type SubscriberStore interface {
	SubscriberByAddress(ctx context.Context, address string) (domain.Subscriber, error)
	SaveSubscriber(ctx context.Context, subscriber domain.Subscriber) error
	ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error)
	Subscribers(ctx context.Context) ([]domain.Subscriber, error)
}

// DeliveryLogStore appends notification attempt outcomes.
type DeliveryLogStore interface {
	AppendDelivery(ctx context.Context, entry domain.DeliveryLog) error
	Deliveries(ctx context.Context, limit int) ([]domain.DeliveryLog, error)
}

// Mailer renders and delivers report artifacts to recipients.
type Mailer interface {
	IsConfigured() bool
	SendReport(ctx context.Context, recipients []string, summary domain.DailySummary) error
	SendTest(ctx context.Context, recipient string) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
