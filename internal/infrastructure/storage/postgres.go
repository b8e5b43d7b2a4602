package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"cvewatch/internal/domain"
	"cvewatch/internal/ports"
)

// PostgresStore persists all six collections in Postgres. Document-valued
// fields (top threats, timeline records) are stored as JSONB; error lists
// as text arrays.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ ports.RecordStore      = (*PostgresStore)(nil)
	_ ports.SummaryStore     = (*PostgresStore)(nil)
	_ ports.StatusStore      = (*PostgresStore)(nil)
	_ ports.TimelineStore    = (*PostgresStore)(nil)
	_ ports.SubscriberStore  = (*PostgresStore)(nil)
	_ ports.DeliveryLogStore = (*PostgresStore)(nil)
)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// EnsureSchema creates the collections when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS vulnerability_records (
			id TEXT PRIMARY KEY,
			external_id TEXT,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			source_url TEXT NOT NULL,
			severity TEXT NOT NULL,
			score DOUBLE PRECISION,
			source_name TEXT NOT NULL,
			published_at TIMESTAMPTZ NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_ingested ON vulnerability_records (ingested_at DESC)`,
		`CREATE TABLE IF NOT EXISTS daily_summaries (
			id TEXT PRIMARY KEY,
			run_date TIMESTAMPTZ NOT NULL,
			total_count INT NOT NULL,
			critical_count INT NOT NULL,
			high_count INT NOT NULL,
			medium_count INT NOT NULL,
			low_count INT NOT NULL,
			top_threats JSONB NOT NULL,
			narrative_text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_status (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			last_run_at TIMESTAMPTZ NOT NULL,
			next_run_at TIMESTAMPTZ NOT NULL,
			items_scraped INT NOT NULL,
			errors TEXT[] NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS timeline_entries (
			bucket_date DATE PRIMARY KEY,
			records JSONB NOT NULL,
			new_critical_count INT NOT NULL,
			new_high_count INT NOT NULL,
			total_new_count INT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			id TEXT PRIMARY KEY,
			address TEXT NOT NULL UNIQUE,
			active BOOLEAN NOT NULL,
			added_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_logs (
			id TEXT PRIMARY KEY,
			sent_at TIMESTAMPTZ NOT NULL,
			recipient_count INT NOT NULL,
			outcome TEXT NOT NULL,
			error_details TEXT[] NOT NULL
		)`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertRecords bulk-inserts a batch as one statement.
func (s *PostgresStore) InsertRecords(ctx context.Context, records []domain.VulnerabilityRecord) error {
	if len(records) == 0 {
		return nil
	}

	builder := s.sb.Insert("vulnerability_records").Columns(
		"id", "external_id", "title", "description", "source_url",
		"severity", "score", "source_name", "published_at", "ingested_at")
	for _, r := range records {
		builder = builder.Values(r.ID, r.ExternalID, r.Title, r.Description, r.SourceURL,
			string(r.Severity), r.Score, r.SourceName, r.PublishedAt, r.IngestedAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	return nil
}

// RecentRecords returns the newest records by ingestion time.
func (s *PostgresStore) RecentRecords(ctx context.Context, limit int) ([]domain.VulnerabilityRecord, error) {
	builder := s.recordSelect().OrderBy("ingested_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.queryRecords(ctx, builder)
}

// RecordsBySeverity filters by tier, newest first.
func (s *PostgresStore) RecordsBySeverity(ctx context.Context, severity domain.Severity, limit int) ([]domain.VulnerabilityRecord, error) {
	builder := s.recordSelect().
		Where(sq.Eq{"severity": string(severity)}).
		OrderBy("ingested_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.queryRecords(ctx, builder)
}

// RecordsBetween returns records ingested in [from, to).
func (s *PostgresStore) RecordsBetween(ctx context.Context, from, to time.Time) ([]domain.VulnerabilityRecord, error) {
	builder := s.recordSelect().
		Where(sq.GtOrEq{"ingested_at": from}).
		Where(sq.Lt{"ingested_at": to}).
		OrderBy("ingested_at ASC")
	return s.queryRecords(ctx, builder)
}

func (s *PostgresStore) recordSelect() sq.SelectBuilder {
	return s.sb.Select(
		"id", "external_id", "title", "description", "source_url",
		"severity", "score", "source_name", "published_at", "ingested_at").
		From("vulnerability_records")
}

func (s *PostgresStore) queryRecords(ctx context.Context, builder sq.SelectBuilder) ([]domain.VulnerabilityRecord, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []domain.VulnerabilityRecord
	for rows.Next() {
		var (
			r          domain.VulnerabilityRecord
			externalID sql.NullString
			score      sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &externalID, &r.Title, &r.Description, &r.SourceURL,
			&r.Severity, &score, &r.SourceName, &r.PublishedAt, &r.IngestedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.ExternalID = externalID.String
		if score.Valid {
			value := score.Float64
			r.Score = &value
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// SaveSummary stores one rollup.
func (s *PostgresStore) SaveSummary(ctx context.Context, summary domain.DailySummary) error {
	threats, err := json.Marshal(summary.TopThreats)
	if err != nil {
		return fmt.Errorf("marshal top threats: %w", err)
	}

	query, args, err := s.sb.Insert("daily_summaries").
		Columns("id", "run_date", "total_count", "critical_count", "high_count",
			"medium_count", "low_count", "top_threats", "narrative_text", "created_at").
		Values(summary.ID, summary.RunDate, summary.TotalCount, summary.CriticalCount,
			summary.HighCount, summary.MediumCount, summary.LowCount, threats,
			summary.NarrativeText, summary.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// Summaries returns rollups newest-first.
func (s *PostgresStore) Summaries(ctx context.Context, limit int) ([]domain.DailySummary, error) {
	builder := s.sb.Select("id", "run_date", "total_count", "critical_count", "high_count",
		"medium_count", "low_count", "top_threats", "narrative_text", "created_at").
		From("daily_summaries").
		OrderBy("run_date DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.DailySummary
	for rows.Next() {
		var (
			summary domain.DailySummary
			threats []byte
		)
		if err := rows.Scan(&summary.ID, &summary.RunDate, &summary.TotalCount,
			&summary.CriticalCount, &summary.HighCount, &summary.MediumCount,
			&summary.LowCount, &threats, &summary.NarrativeText, &summary.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if err := json.Unmarshal(threats, &summary.TopThreats); err != nil {
			return nil, fmt.Errorf("unmarshal top threats: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return summaries, nil
}

// LatestSummary returns the newest rollup or ports.ErrNotFound.
func (s *PostgresStore) LatestSummary(ctx context.Context) (domain.DailySummary, error) {
	summaries, err := s.Summaries(ctx, 1)
	if err != nil {
		return domain.DailySummary{}, err
	}
	if len(summaries) == 0 {
		return domain.DailySummary{}, ports.ErrNotFound
	}
	return summaries[0], nil
}

// ReplaceStatus deletes the prior status and inserts the new one in a
// single transaction, keeping the collection a singleton.
func (s *PostgresStore) ReplaceStatus(ctx context.Context, status domain.RunStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_status`); err != nil {
		return fmt.Errorf("clear status: %w", err)
	}

	query, args, err := s.sb.Insert("run_status").
		Columns("id", "state", "last_run_at", "next_run_at", "items_scraped", "errors").
		Values(status.ID, string(status.State), status.LastRunAt, status.NextRunAt,
			status.ItemsScraped, pq.StringArray(status.Errors)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status: %w", err)
	}
	return nil
}

// Status returns the current run status or ports.ErrNotFound.
func (s *PostgresStore) Status(ctx context.Context) (domain.RunStatus, error) {
	query, args, err := s.sb.Select("id", "state", "last_run_at", "next_run_at", "items_scraped", "errors").
		From("run_status").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.RunStatus{}, fmt.Errorf("build select: %w", err)
	}

	var (
		status domain.RunStatus
		errs   pq.StringArray
	)
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&status.ID, &status.State, &status.LastRunAt, &status.NextRunAt,
		&status.ItemsScraped, &errs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RunStatus{}, ports.ErrNotFound
		}
		return domain.RunStatus{}, fmt.Errorf("scan status: %w", err)
	}
	status.Errors = errs
	return status, nil
}

// UpsertEntry replaces the entry for its bucket date.
func (s *PostgresStore) UpsertEntry(ctx context.Context, entry domain.TimelineEntry) error {
	records, err := json.Marshal(entry.Records)
	if err != nil {
		return fmt.Errorf("marshal timeline records: %w", err)
	}

	query, args, err := s.sb.Insert("timeline_entries").
		Columns("bucket_date", "records", "new_critical_count", "new_high_count", "total_new_count").
		Values(entry.BucketDate, records, entry.NewCriticalCount, entry.NewHighCount, entry.TotalNewCount).
		Suffix(`ON CONFLICT (bucket_date) DO UPDATE
			SET records = EXCLUDED.records,
			    new_critical_count = EXCLUDED.new_critical_count,
			    new_high_count = EXCLUDED.new_high_count,
			    total_new_count = EXCLUDED.total_new_count`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert timeline entry: %w", err)
	}
	return nil
}

// Entry returns the entry for one bucket date or ports.ErrNotFound.
func (s *PostgresStore) Entry(ctx context.Context, day time.Time) (domain.TimelineEntry, error) {
	query, args, err := s.timelineSelect().
		Where(sq.Eq{"bucket_date": day}).
		ToSql()
	if err != nil {
		return domain.TimelineEntry{}, fmt.Errorf("build select: %w", err)
	}

	entry, err := s.scanTimelineRow(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TimelineEntry{}, ports.ErrNotFound
	}
	return entry, err
}

// Entries returns all timeline entries ordered by bucket date.
func (s *PostgresStore) Entries(ctx context.Context) ([]domain.TimelineEntry, error) {
	query, args, err := s.timelineSelect().OrderBy("bucket_date ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var entries []domain.TimelineEntry
	for rows.Next() {
		entry, err := s.scanTimelineRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) timelineSelect() sq.SelectBuilder {
	return s.sb.Select("bucket_date", "records", "new_critical_count", "new_high_count", "total_new_count").
		From("timeline_entries")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanTimelineRow(row rowScanner) (domain.TimelineEntry, error) {
	var (
		entry   domain.TimelineEntry
		records []byte
	)
	if err := row.Scan(&entry.BucketDate, &records, &entry.NewCriticalCount,
		&entry.NewHighCount, &entry.TotalNewCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TimelineEntry{}, sql.ErrNoRows
		}
		return domain.TimelineEntry{}, fmt.Errorf("scan timeline entry: %w", err)
	}
	entry.BucketDate = entry.BucketDate.UTC()
	if err := json.Unmarshal(records, &entry.Records); err != nil {
		return domain.TimelineEntry{}, fmt.Errorf("unmarshal timeline records: %w", err)
	}
	return entry, nil
}

// SubscriberByAddress looks up one address or returns ports.ErrNotFound.
func (s *PostgresStore) SubscriberByAddress(ctx context.Context, address string) (domain.Subscriber, error) {
	query, args, err := s.sb.Select("id", "address", "active", "added_at").
		From("subscribers").
		Where(sq.Eq{"address": address}).
		ToSql()
	if err != nil {
		return domain.Subscriber{}, fmt.Errorf("build select: %w", err)
	}

	var subscriber domain.Subscriber
	row := s.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&subscriber.ID, &subscriber.Address, &subscriber.Active, &subscriber.AddedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subscriber{}, ports.ErrNotFound
		}
		return domain.Subscriber{}, fmt.Errorf("scan subscriber: %w", err)
	}
	return subscriber, nil
}

// SaveSubscriber inserts or updates the row keyed by address.
func (s *PostgresStore) SaveSubscriber(ctx context.Context, subscriber domain.Subscriber) error {
	query, args, err := s.sb.Insert("subscribers").
		Columns("id", "address", "active", "added_at").
		Values(subscriber.ID, subscriber.Address, subscriber.Active, subscriber.AddedAt).
		Suffix(`ON CONFLICT (address) DO UPDATE SET active = EXCLUDED.active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}
	return nil
}

// ActiveSubscribers returns subscribers with the active flag set.
func (s *PostgresStore) ActiveSubscribers(ctx context.Context) ([]domain.Subscriber, error) {
	return s.querySubscribers(ctx, s.subscriberSelect().Where(sq.Eq{"active": true}))
}

// Subscribers returns everyone, ordered by signup time.
func (s *PostgresStore) Subscribers(ctx context.Context) ([]domain.Subscriber, error) {
	return s.querySubscribers(ctx, s.subscriberSelect())
}

func (s *PostgresStore) subscriberSelect() sq.SelectBuilder {
	return s.sb.Select("id", "address", "active", "added_at").
		From("subscribers").
		OrderBy("added_at ASC")
}

func (s *PostgresStore) querySubscribers(ctx context.Context, builder sq.SelectBuilder) ([]domain.Subscriber, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []domain.Subscriber
	for rows.Next() {
		var subscriber domain.Subscriber
		if err := rows.Scan(&subscriber.ID, &subscriber.Address, &subscriber.Active, &subscriber.AddedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subscribers = append(subscribers, subscriber)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return subscribers, nil
}

// AppendDelivery records one notification attempt.
func (s *PostgresStore) AppendDelivery(ctx context.Context, entry domain.DeliveryLog) error {
	query, args, err := s.sb.Insert("delivery_logs").
		Columns("id", "sent_at", "recipient_count", "outcome", "error_details").
		Values(entry.ID, entry.SentAt, entry.RecipientCount, string(entry.Outcome),
			pq.StringArray(entry.ErrorDetails)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

// Deliveries returns attempts newest-first.
func (s *PostgresStore) Deliveries(ctx context.Context, limit int) ([]domain.DeliveryLog, error) {
	builder := s.sb.Select("id", "sent_at", "recipient_count", "outcome", "error_details").
		From("delivery_logs").
		OrderBy("sent_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query delivery logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.DeliveryLog
	for rows.Next() {
		var (
			entry domain.DeliveryLog
			errs  pq.StringArray
		)
		if err := rows.Scan(&entry.ID, &entry.SentAt, &entry.RecipientCount, &entry.Outcome, &errs); err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		entry.ErrorDetails = errs
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}
