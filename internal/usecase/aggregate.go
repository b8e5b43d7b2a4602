package usecase

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cvewatch/internal/domain"
)

const topThreatCount = 5

// BuildSummary computes the daily rollup for one fetched batch. The summary
// is stamped with the run's nominal trigger time so summaries stay
// comparable across runs even when execution is delayed. An empty batch
// yields zero counts and no top threats.
func BuildSummary(runDate time.Time, batch []domain.VulnerabilityRecord) domain.DailySummary {
	summary := domain.DailySummary{
		ID:         domain.NewID(),
		RunDate:    runDate,
		TotalCount: len(batch),
		CreatedAt:  time.Now().UTC(),
	}

	for _, record := range batch {
		switch record.Severity {
		case domain.SeverityCritical:
			summary.CriticalCount++
		case domain.SeverityHigh:
			summary.HighCount++
		case domain.SeverityMedium:
			summary.MediumCount++
		case domain.SeverityLow:
			summary.LowCount++
		}
	}

	summary.TopThreats = topThreats(batch)
	summary.NarrativeText = narrative(summary, batch)

	return summary
}

// topThreats ranks by score descending (missing scores count as zero) and
// keeps ingestion order among ties.
func topThreats(batch []domain.VulnerabilityRecord) []domain.VulnerabilityRecord {
	ranked := make([]domain.VulnerabilityRecord, len(batch))
	copy(ranked, batch)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ScoreValue() > ranked[j].ScoreValue()
	})

	if len(ranked) > topThreatCount {
		ranked = ranked[:topThreatCount]
	}
	return ranked
}

func narrative(summary domain.DailySummary, batch []domain.VulnerabilityRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Daily CVE summary (%s)\n\n", summary.RunDate.Format("2006-01-02"))
	b.WriteString("Statistics:\n")
	fmt.Fprintf(&b, "- Total threats: %d\n", summary.TotalCount)
	fmt.Fprintf(&b, "- Critical: %d\n", summary.CriticalCount)
	fmt.Fprintf(&b, "- High: %d\n", summary.HighCount)
	fmt.Fprintf(&b, "- Medium: %d\n", summary.MediumCount)
	fmt.Fprintf(&b, "- Low: %d\n", summary.LowCount)

	if len(summary.TopThreats) > 0 {
		b.WriteString("\nTop threats:\n")
		for _, threat := range summary.TopThreats {
			fmt.Fprintf(&b, "- %s (%s)\n", threat.Title, threat.Severity)
		}
	}

	if sources := sourceNames(batch); len(sources) > 0 {
		fmt.Fprintf(&b, "\nSources: %s\n", strings.Join(sources, ", "))
	}

	return b.String()
}

func sourceNames(batch []domain.VulnerabilityRecord) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, record := range batch {
		if _, ok := seen[record.SourceName]; ok {
			continue
		}
		seen[record.SourceName] = struct{}{}
		names = append(names, record.SourceName)
	}
	return names
}
