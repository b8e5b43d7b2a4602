package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cvewatch/internal/domain"
)

const nvdFixture = `
<table>
  <tr data-testid="vuln-row-0">
    <td><strong>CVE-2024-7777</strong>
      <p>Heap overflow in image parser allows code execution.</p>
      <span class="label">8.1</span>
    </td>
  </tr>
  <tr data-testid="vuln-row-1">
    <td><strong>CVE-2024-8888</strong>
      <p></p>
    </td>
  </tr>
</table>`

func TestNVDFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(nvdFixture))
	}))
	defer server.Close()

	source := NewNVD(server.Client(), Config{Endpoint: server.URL})

	records, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	scored := records[0]
	if scored.ExternalID != "CVE-2024-7777" {
		t.Fatalf("unexpected external id: %s", scored.ExternalID)
	}
	if scored.Severity != domain.SeverityHigh {
		t.Fatalf("expected HIGH for 8.1, got %s", scored.Severity)
	}
	if scored.SourceURL != "https://nvd.nist.gov/vuln/detail/CVE-2024-7777" {
		t.Fatalf("unexpected url: %s", scored.SourceURL)
	}

	unscored := records[1]
	if unscored.Severity != domain.SeverityMedium {
		t.Fatalf("expected MEDIUM without score, got %s", unscored.Severity)
	}
	if unscored.Score != nil {
		t.Fatal("expected nil score without CVSS label")
	}
	if unscored.Description != "Vulnerability CVE-2024-8888" {
		t.Fatalf("unexpected description fallback: %q", unscored.Description)
	}
}
