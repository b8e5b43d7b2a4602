package classify

import (
	"strings"

	"cvewatch/internal/domain"
)

// Score thresholds follow CVSS banding: 9.0 and above is CRITICAL,
// 7.0 to 8.9 HIGH, 4.0 to 6.9 MEDIUM, everything below LOW.
const (
	criticalFloor = 9.0
	highFloor     = 7.0
	mediumFloor   = 4.0
)

// FromScore maps a numeric score to a severity tier. Boundary values map
// to the higher tier.
func FromScore(score float64) domain.Severity {
	switch {
	case score >= criticalFloor:
		return domain.SeverityCritical
	case score >= highFloor:
		return domain.SeverityHigh
	case score >= mediumFloor:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// KeywordRule is the per-source fallback applied when no numeric score is
// available. Different sources use different editorial vocabulary, so each
// adapter carries its own keyword sets.
type KeywordRule struct {
	High   []string
	Medium []string
}

// FromTitle derives a tier from keyword matches over the title, defaulting
// to MEDIUM when nothing matches.
func FromTitle(title string, rule KeywordRule) domain.Severity {
	lowered := strings.ToLower(title)
	for _, word := range rule.High {
		if strings.Contains(lowered, word) {
			return domain.SeverityHigh
		}
	}
	for _, word := range rule.Medium {
		if strings.Contains(lowered, word) {
			return domain.SeverityMedium
		}
	}
	return domain.SeverityMedium
}
