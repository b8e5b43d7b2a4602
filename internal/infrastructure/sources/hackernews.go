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
	hackerNewsName    = "The Hacker News"
	hackerNewsBaseURL = "https://thehackernews.com"
	hackerNewsListURL = hackerNewsBaseURL + "/search/label/Vulnerability"
)

var hackerNewsKeywords = classify.KeywordRule{
	High:   []string{"critical", "severe", "dangerous"},
	Medium: []string{"vulnerability", "exploit", "breach"},
}

// HackerNews extracts vulnerability coverage from The Hacker News article
// listing. The source carries no numeric scores, so severity comes from
// the title keyword fallback.
type HackerNews struct {
	client *http.Client
	cfg    Config
}

var _ scraper.Source = (*HackerNews)(nil)

// NewHackerNews wires an HTTP client; top 5 articles by default.
func NewHackerNews(client *http.Client, cfg Config) *HackerNews {
	cfg.applyDefaults(hackerNewsListURL, 5, hackerNewsKeywords)
	return &HackerNews{client: defaultClient(client), cfg: cfg}
}

// Name identifies the adapter inside the registry.
func (s *HackerNews) Name() string {
	return hackerNewsName
}

// Fetch walks blog-post articles and returns up to the configured cap.
func (s *HackerNews) Fetch(ctx context.Context) ([]domain.VulnerabilityRecord, error) {
	doc, err := fetchDocument(ctx, s.client, s.cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	var records []domain.VulnerabilityRecord
	doc.Find("article.blog-post").EachWithBreak(func(i int, article *goquery.Selection) bool {
		if len(records) >= s.cfg.Limit {
			return false
		}

		link := article.Find("h2.home-title a").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}

		href, _ := link.Attr("href")
		sourceURL := absoluteURL(hackerNewsBaseURL, href)
		if sourceURL == "" {
			return true
		}

		description := strings.TrimSpace(article.Find("div.home-desc").First().Text())
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
			SourceName:  hackerNewsName,
			PublishedAt: now,
			IngestedAt:  now,
		})
		return true
	})

	return records, nil
}
