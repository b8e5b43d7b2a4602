package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cvewatch/internal/classify"
	"cvewatch/internal/domain"
	"cvewatch/internal/scraper"
)

const (
	nvdName      = "NVD NIST"
	nvdBaseURL   = "https://nvd.nist.gov"
	nvdSearchURL = nvdBaseURL + "/vuln/search/results?form_type=Basic&results_type=overview&search_type=all&isCpeNameSearch=false"
	nvdDetailURL = nvdBaseURL + "/vuln/detail/"
)

// NVD extracts vulnerability rows from the NVD search results. Rows carry a
// CVSS label when available; rows without one default to MEDIUM.
type NVD struct {
	client *http.Client
	cfg    Config
}

var _ scraper.Source = (*NVD)(nil)

// NewNVD wires an HTTP client; top 5 rows by default.
func NewNVD(client *http.Client, cfg Config) *NVD {
	cfg.applyDefaults(nvdSearchURL, 5, classify.KeywordRule{})
	return &NVD{client: defaultClient(client), cfg: cfg}
}

// Name identifies the adapter inside the registry.
func (s *NVD) Name() string {
	return nvdName
}

// Fetch walks vulnerability result rows and returns up to the configured cap.
func (s *NVD) Fetch(ctx context.Context) ([]domain.VulnerabilityRecord, error) {
	doc, err := fetchDocument(ctx, s.client, s.cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var records []domain.VulnerabilityRecord
	doc.Find("tr[data-testid*='vuln-row']").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if len(records) >= s.cfg.Limit {
			return false
		}

		cveID := strings.TrimSpace(row.Find("strong").First().Text())
		if cveID == "" {
			return true
		}

		description := strings.TrimSpace(row.Find("p").First().Text())
		if description == "" {
			description = fmt.Sprintf("Vulnerability %s", cveID)
		}

		severity := domain.SeverityMedium
		var score *float64
		if value, ok := parseScore(row.Find("span.label").First().Text()); ok {
			severity = classify.FromScore(value)
			score = &value
		}

		now := time.Now().UTC()
		records = append(records, domain.VulnerabilityRecord{
			ID:          domain.NewID(),
			ExternalID:  cveID,
			Title:       fmt.Sprintf("CVE %s", cveID),
			Description: domain.TruncateDescription(description),
			SourceURL:   nvdDetailURL + cveID,
			Severity:    severity,
			Score:       score,
			SourceName:  nvdName,
			PublishedAt: now,
			IngestedAt:  now,
		})
		return true
	})

	return records, nil
}
