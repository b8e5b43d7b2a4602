package sources

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cvewatch/internal/classify"
	"cvewatch/internal/domain"
	"cvewatch/internal/scraper"
)

const (
	securityWeekName    = "SecurityWeek"
	securityWeekBaseURL = "https://www.securityweek.com"
	securityWeekListURL = securityWeekBaseURL + "/category/vulnerabilities/"
)

var securityWeekKeywords = classify.KeywordRule{
	High: []string{"critical", "high-severity"},
}

// SecurityWeek extracts article headings from the vulnerabilities category.
type SecurityWeek struct {
	client *http.Client
	cfg    Config
}

var _ scraper.Source = (*SecurityWeek)(nil)

// NewSecurityWeek wires an HTTP client; top 5 articles by default.
func NewSecurityWeek(client *http.Client, cfg Config) *SecurityWeek {
	cfg.applyDefaults(securityWeekListURL, 5, securityWeekKeywords)
	return &SecurityWeek{client: defaultClient(client), cfg: cfg}
}

// Name identifies the adapter inside the registry.
func (s *SecurityWeek) Name() string {
	return securityWeekName
}

// Fetch walks article elements, preferring h2 headings over h3.
func (s *SecurityWeek) Fetch(ctx context.Context) ([]domain.VulnerabilityRecord, error) {
	doc, err := fetchDocument(ctx, s.client, s.cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var records []domain.VulnerabilityRecord
	doc.Find("article").EachWithBreak(func(i int, article *goquery.Selection) bool {
		if len(records) >= s.cfg.Limit {
			return false
		}

		link := article.Find("h2 a").First()
		if link.Length() == 0 {
			link = article.Find("h3 a").First()
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}

		href, _ := link.Attr("href")
		sourceURL := absoluteURL(securityWeekBaseURL, href)
		if sourceURL == "" {
			return true
		}

		description := strings.TrimSpace(article.Find("div.excerpt").First().Text())
		if description == "" {
			description = strings.TrimSpace(article.Find("p").First().Text())
		}
		if description == "" {
			description = title
		}

		now := time.Now().UTC()
		records = append(records, domain.VulnerabilityRecord{
			ID:          domain.NewID(),
			Title:       title,
			Description: domain.TruncateDescription(description),
			SourceURL:   sourceURL,
			Severity:    classify.FromTitle(title, s.cfg.Keywords),
			SourceName:  securityWeekName,
			PublishedAt: now,
			IngestedAt:  now,
		})
		return true
	})

	return records, nil
}
