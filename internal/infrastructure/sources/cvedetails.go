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
	cveDetailsName    = "CVE Details"
	cveDetailsBaseURL = "https://www.cvedetails.com"
	cveDetailsListURL = cveDetailsBaseURL + "/vulnerability-list.php?order=1&trc=80"
)

// CVEDetails extracts scored entries from the CVE Details vulnerability
// list table.
type CVEDetails struct {
	client *http.Client
	cfg    Config
}

var _ scraper.Source = (*CVEDetails)(nil)

// NewCVEDetails wires an HTTP client; the list endpoint and a top-10 cap
// are the defaults.
func NewCVEDetails(client *http.Client, cfg Config) *CVEDetails {
	cfg.applyDefaults(cveDetailsListURL, 10, classify.KeywordRule{})
	return &CVEDetails{client: defaultClient(client), cfg: cfg}
}

// Name identifies the adapter inside the registry.
func (s *CVEDetails) Name() string {
	return cveDetailsName
}

// Fetch walks the result table rows and returns up to the configured cap.
func (s *CVEDetails) Fetch(ctx context.Context) ([]domain.VulnerabilityRecord, error) {
	doc, err := fetchDocument(ctx, s.client, s.cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var records []domain.VulnerabilityRecord
	doc.Find("tr.srrowns, tr.srrows").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if len(records) >= s.cfg.Limit {
			return false
		}

		cells := row.Find("td")
		if cells.Length() < 6 {
			return true
		}

		link := cells.Eq(1).Find("a").First()
		cveID := strings.TrimSpace(link.Text())
		if cveID == "" {
			return true
		}

		href, _ := link.Attr("href")
		sourceURL := absoluteURL(cveDetailsBaseURL, href)
		if sourceURL == "" {
			return true
		}

		score, ok := parseScore(cells.Eq(3).Text())
		if !ok {
			score = 0
		}

		now := time.Now().UTC()
		records = append(records, domain.VulnerabilityRecord{
			ID:          domain.NewID(),
			ExternalID:  cveID,
			Title:       fmt.Sprintf("CVE %s", cveID),
			Description: domain.TruncateDescription(strings.TrimSpace(cells.Eq(2).Text())),
			SourceURL:   sourceURL,
			Severity:    classify.FromScore(score),
			Score:       &score,
			SourceName:  cveDetailsName,
			PublishedAt: now,
			IngestedAt:  now,
		})
		return true
	})

	return records, nil
}
