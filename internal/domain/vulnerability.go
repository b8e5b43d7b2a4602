package domain

import (
	"time"

	"github.com/google/uuid"
)

// DescriptionLimit bounds record descriptions, measured in code points.
const DescriptionLimit = 500

// VulnerabilityRecord is one discovered item, normalized from a single source.
// Records are created by a source adapter during one fetch cycle and are
// immutable afterwards; later runs append new observations instead of
// updating old ones.
type VulnerabilityRecord struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"cve_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SourceURL   string    `json:"url"`
	Severity    Severity  `json:"severity"`
	Score       *float64  `json:"score,omitempty"`
	SourceName  string    `json:"source"`
	PublishedAt time.Time `json:"published_date"`
	IngestedAt  time.Time `json:"scraped_at"`
}

// ScoreValue returns the numeric score with nil treated as zero,
// the ordering used when ranking top threats.
func (r VulnerabilityRecord) ScoreValue() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// HighSeverity reports whether the record qualifies for the timeline:
// tier CRITICAL/HIGH or score at least 7.0.
func (r VulnerabilityRecord) HighSeverity() bool {
	if r.Severity == SeverityCritical || r.Severity == SeverityHigh {
		return true
	}
	return r.Score != nil && *r.Score >= 7.0
}

// DailySummary is one computed rollup per run, stamped with the run's
// nominal trigger time. Summaries are never mutated.
type DailySummary struct {
	ID            string                `json:"id"`
	RunDate       time.Time             `json:"date"`
	TotalCount    int                   `json:"total_cves"`
	CriticalCount int                   `json:"critical_count"`
	HighCount     int                   `json:"high_count"`
	MediumCount   int                   `json:"medium_count"`
	LowCount      int                   `json:"low_count"`
	TopThreats    []VulnerabilityRecord `json:"top_threats"`
	NarrativeText string                `json:"summary_text"`
	CreatedAt     time.Time             `json:"created_at"`
}

// TimelineEntry is one high-severity bucket keyed by calendar day.
// At most one entry exists per bucket date; rebuilding a day replaces
// the entry contents entirely.
type TimelineEntry struct {
	BucketDate       time.Time             `json:"bucket_date"`
	Records          []VulnerabilityRecord `json:"high_severity_records"`
	NewCriticalCount int                   `json:"new_critical_count"`
	NewHighCount     int                   `json:"new_high_count"`
	TotalNewCount    int                   `json:"total_new_count"`
}

// TimelineStats aggregates counts over all timeline entries.
type TimelineStats struct {
	EntryCount    int `json:"entry_count"`
	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	TotalCount    int `json:"total_count"`
}

// RunState enumerates scheduler run outcomes.
type RunState string

const (
	RunNotStarted RunState = "not_started"
	RunCompleted  RunState = "completed"
	RunError      RunState = "error"
)

// RunStatus describes the most recent pipeline execution. Each run replaces
// the prior status; only the latest run is kept.
type RunStatus struct {
	ID           string    `json:"id"`
	State        RunState  `json:"status"`
	LastRunAt    time.Time `json:"last_run"`
	NextRunAt    time.Time `json:"next_run"`
	ItemsScraped int       `json:"items_scraped"`
	Errors       []string  `json:"errors"`
}

// Subscriber is an email report recipient. Unsubscribing flips the active
// flag instead of deleting the row, so re-subscribing stays idempotent.
type Subscriber struct {
	ID      string    `json:"id"`
	Address string    `json:"email"`
	Active  bool      `json:"active"`
	AddedAt time.Time `json:"added_at"`
}

// DeliveryOutcome enumerates notification attempt results.
type DeliveryOutcome string

const (
	DeliverySent    DeliveryOutcome = "sent"
	DeliveryFailed  DeliveryOutcome = "failed"
	DeliveryPartial DeliveryOutcome = "partial"
)

// DeliveryLog records one notification attempt.
type DeliveryLog struct {
	ID             string          `json:"id"`
	SentAt         time.Time       `json:"sent_at"`
	RecipientCount int             `json:"recipients_count"`
	Outcome        DeliveryOutcome `json:"status"`
	ErrorDetails   []string        `json:"error_details"`
}

// NewID returns an opaque identifier for newly created documents.
func NewID() string {
	return uuid.NewString()
}

// TruncateDescription bounds text to DescriptionLimit code points.
func TruncateDescription(text string) string {
	runes := []rune(text)
	if len(runes) <= DescriptionLimit {
		return text
	}
	return string(runes[:DescriptionLimit])
}

// BucketDay truncates a timestamp to its UTC calendar day.
func BucketDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
