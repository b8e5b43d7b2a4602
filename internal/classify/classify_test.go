package classify

import (
	"testing"

	"cvewatch/internal/domain"
)

func TestFromScoreThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		score float64
		want  domain.Severity
	}{
		{10.0, domain.SeverityCritical},
		{9.0, domain.SeverityCritical},
		{8.9, domain.SeverityHigh},
		{7.0, domain.SeverityHigh},
		{6.9, domain.SeverityMedium},
		{4.0, domain.SeverityMedium},
		{3.9, domain.SeverityLow},
		{0.0, domain.SeverityLow},
	}

	for _, tc := range cases {
		if got := FromScore(tc.score); got != tc.want {
			t.Errorf("FromScore(%.1f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestFromTitleKeywords(t *testing.T) {
	t.Parallel()

	rule := KeywordRule{
		High:   []string{"critical", "severe"},
		Medium: []string{"vulnerability", "exploit"},
	}

	if got := FromTitle("Critical flaw in popular router firmware", rule); got != domain.SeverityHigh {
		t.Fatalf("expected HIGH for critical keyword, got %s", got)
	}
	if got := FromTitle("New vulnerability disclosed in mail server", rule); got != domain.SeverityMedium {
		t.Fatalf("expected MEDIUM for vulnerability keyword, got %s", got)
	}
	if got := FromTitle("Vendor ships quarterly update", rule); got != domain.SeverityMedium {
		t.Fatalf("expected MEDIUM default, got %s", got)
	}
}

func TestFromTitleEmptyRuleDefaultsMedium(t *testing.T) {
	t.Parallel()

	if got := FromTitle("Critical issue", KeywordRule{}); got != domain.SeverityMedium {
		t.Fatalf("expected MEDIUM with empty rule, got %s", got)
	}
}
