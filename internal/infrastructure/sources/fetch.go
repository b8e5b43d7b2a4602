package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cvewatch/internal/classify"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const defaultTimeout = 30 * time.Second

// Config carries the data-driven part of an adapter: where to fetch, how
// many records to keep, and the severity fallback vocabulary.
type Config struct {
	Endpoint string
	Limit    int
	Keywords classify.KeywordRule
}

func (c *Config) applyDefaults(endpoint string, limit int, keywords classify.KeywordRule) {
	if c.Endpoint == "" {
		c.Endpoint = endpoint
	}
	if c.Limit <= 0 {
		c.Limit = limit
	}
	if len(c.Keywords.High) == 0 && len(c.Keywords.Medium) == 0 {
		c.Keywords = keywords
	}
}

func defaultClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return client
}

func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// absoluteURL resolves href against base and returns an empty string when
// the result is not a well-formed absolute URL.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !parsed.IsAbs() {
		root, err := url.Parse(base)
		if err != nil {
			return ""
		}
		parsed = root.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return ""
	}
	return parsed.String()
}

func parseScore(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return 0, false
	}
	score, err := strconv.ParseFloat(text, 64)
	if err != nil || score < 0 || score > 10 {
		return 0, false
	}
	return score, true
}
