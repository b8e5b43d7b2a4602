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
	bleepingName    = "BleepingComputer"
	bleepingBaseURL = "https://www.bleepingcomputer.com"
	bleepingListURL = bleepingBaseURL + "/news/security/"
)

var bleepingKeywords = classify.KeywordRule{
	High: []string{"critical", "zero-day", "exploit"},
}

// BleepingComputer extracts headlines from the security news listing.
type BleepingComputer struct {
	client *http.Client
	cfg    Config
}

var _ scraper.Source = (*BleepingComputer)(nil)

// NewBleepingComputer wires an HTTP client; top 5 articles by default.
func NewBleepingComputer(client *http.Client, cfg Config) *BleepingComputer {
	cfg.applyDefaults(bleepingListURL, 5, bleepingKeywords)
	return &BleepingComputer{client: defaultClient(client), cfg: cfg}
}

// Name identifies the adapter inside the registry.
func (s *BleepingComputer) Name() string {
	return bleepingName
}

// Fetch walks the latest-news blocks and returns up to the configured cap.
func (s *BleepingComputer) Fetch(ctx context.Context) ([]domain.VulnerabilityRecord, error) {
	doc, err := fetchDocument(ctx, s.client, s.cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var records []domain.VulnerabilityRecord
	doc.Find("div.bc_latest_news_text").EachWithBreak(func(i int, block *goquery.Selection) bool {
		if len(records) >= s.cfg.Limit {
			return false
		}

		link := block.Find("h4 a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}

		href, _ := link.Attr("href")
		sourceURL := absoluteURL(bleepingBaseURL, href)
		if sourceURL == "" {
			return true
		}

		description := strings.TrimSpace(block.Find("p").First().Text())
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
			SourceName:  bleepingName,
			PublishedAt: now,
			IngestedAt:  now,
		})
		return true
	})

	return records, nil
}
