package usecase

import (
	"strings"
	"testing"
	"time"

	"cvewatch/internal/domain"
)

func scoredRecord(title string, score float64, severity domain.Severity) domain.VulnerabilityRecord {
	r := record(title, "CVE Details")
	r.Score = &score
	r.Severity = severity
	return r
}

func TestBuildSummaryCounts(t *testing.T) {
	t.Parallel()

	var batch []domain.VulnerabilityRecord
	for i := 0; i < 3; i++ {
		batch = append(batch, scoredRecord("crit", 9.5, domain.SeverityCritical))
	}
	for i := 0; i < 4; i++ {
		batch = append(batch, scoredRecord("high", 7.5, domain.SeverityHigh))
	}
	for i := 0; i < 5; i++ {
		batch = append(batch, scoredRecord("med", 5.0, domain.SeverityMedium))
	}

	runDate := time.Date(2024, 5, 10, 19, 0, 0, 0, time.UTC)
	summary := BuildSummary(runDate, batch)

	if summary.TotalCount != 12 {
		t.Fatalf("expected total 12, got %d", summary.TotalCount)
	}
	if summary.CriticalCount != 3 || summary.HighCount != 4 || summary.MediumCount != 5 || summary.LowCount != 0 {
		t.Fatalf("unexpected tier counts: %d/%d/%d/%d",
			summary.CriticalCount, summary.HighCount, summary.MediumCount, summary.LowCount)
	}
	if got := summary.CriticalCount + summary.HighCount + summary.MediumCount + summary.LowCount; got != summary.TotalCount {
		t.Fatalf("tier counts sum to %d, total is %d", got, summary.TotalCount)
	}
	if !summary.RunDate.Equal(runDate) {
		t.Fatalf("run date not preserved: %v", summary.RunDate)
	}
	if summary.ID == "" {
		t.Fatal("summary id not populated")
	}
}

func TestBuildSummaryTopThreats(t *testing.T) {
	t.Parallel()

	batch := []domain.VulnerabilityRecord{
		scoredRecord("mid", 6.0, domain.SeverityMedium),
		scoredRecord("top", 9.9, domain.SeverityCritical),
		scoredRecord("second", 8.8, domain.SeverityHigh),
		record("unscored", "The Hacker News"),
		scoredRecord("third", 7.1, domain.SeverityHigh),
		scoredRecord("fourth", 6.5, domain.SeverityMedium),
		scoredRecord("low", 2.0, domain.SeverityLow),
	}

	summary := BuildSummary(time.Now().UTC(), batch)

	if len(summary.TopThreats) != 5 {
		t.Fatalf("expected 5 top threats, got %d", len(summary.TopThreats))
	}
	if summary.TopThreats[0].Title != "top" {
		t.Fatalf("highest score should lead, got %s", summary.TopThreats[0].Title)
	}
	for i := 1; i < len(summary.TopThreats); i++ {
		if summary.TopThreats[i].ScoreValue() > summary.TopThreats[i-1].ScoreValue() {
			t.Fatalf("top threats not sorted descending at index %d", i)
		}
	}
}

func TestBuildSummaryEmptyBatch(t *testing.T) {
	t.Parallel()

	summary := BuildSummary(time.Now().UTC(), nil)

	if summary.TotalCount != 0 {
		t.Fatalf("expected zero total, got %d", summary.TotalCount)
	}
	if len(summary.TopThreats) != 0 {
		t.Fatalf("expected no top threats, got %d", len(summary.TopThreats))
	}
	if summary.NarrativeText == "" {
		t.Fatal("narrative should still be rendered for an empty run")
	}
}

func TestBuildSummaryNarrative(t *testing.T) {
	t.Parallel()

	batch := []domain.VulnerabilityRecord{
		scoredRecord("Kernel privilege escalation", 9.1, domain.SeverityCritical),
		record("Phishing campaign hits banks", "The Hacker News"),
	}

	summary := BuildSummary(time.Date(2024, 5, 10, 19, 0, 0, 0, time.UTC), batch)

	text := summary.NarrativeText
	for _, want := range []string{
		"Daily CVE summary (2024-05-10)",
		"Total threats: 2",
		"Critical: 1",
		"Kernel privilege escalation (CRITICAL)",
		"Sources: CVE Details, The Hacker News",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("narrative missing %q:\n%s", want, text)
		}
	}
}
