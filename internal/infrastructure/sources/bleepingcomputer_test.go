package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cvewatch/internal/domain"
)

const bleepingFixture = `
<div>
  <div class="bc_latest_news_text">
    <h4><a href="/news/security/zero-day-attacks/">New Zero-Day Exploited in the Wild</a></h4>
    <p>Attackers abuse an unpatched flaw in a VPN appliance.</p>
  </div>
  <div class="bc_latest_news_text">
    <h4><a href="/news/security/ransomware-report/">Ransomware Gang Publishes Stolen Data</a></h4>
    <p>Victim data appeared on a leak site this week.</p>
  </div>
  <div class="bc_latest_news_text">
    <h4></h4>
    <p>Block without a headline is skipped.</p>
  </div>
</div>`

func TestBleepingComputerFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bleepingFixture))
	}))
	defer server.Close()

	source := NewBleepingComputer(server.Client(), Config{Endpoint: server.URL})

	records, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Severity != domain.SeverityHigh {
		t.Fatalf("expected HIGH from zero-day keyword, got %s", first.Severity)
	}
	if first.SourceURL != "https://www.bleepingcomputer.com/news/security/zero-day-attacks/" {
		t.Fatalf("unexpected url: %s", first.SourceURL)
	}

	second := records[1]
	if second.Severity != domain.SeverityMedium {
		t.Fatalf("expected MEDIUM default, got %s", second.Severity)
	}
	if second.Description != "Victim data appeared on a leak site this week." {
		t.Fatalf("unexpected description: %q", second.Description)
	}
}
