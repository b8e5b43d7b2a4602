package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"cvewatch/internal/domain"
)

const cveDetailsFixture = `
<table>
  <tr class="srrowns">
    <td>1</td>
    <td><a href="/cve/CVE-2024-1111/">CVE-2024-1111</a></td>
    <td> Remote code execution in the admin console. </td>
    <td>9.8</td>
    <td>x</td>
    <td>x</td>
  </tr>
  <tr class="srrows">
    <td>2</td>
    <td><a href="/cve/CVE-2024-2222/">CVE-2024-2222</a></td>
    <td>Information disclosure via verbose errors.</td>
    <td>-</td>
    <td>x</td>
    <td>x</td>
  </tr>
  <tr class="srrowns">
    <td>3</td>
    <td></td>
    <td>Row without a CVE link is skipped.</td>
    <td>5.0</td>
    <td>x</td>
    <td>x</td>
  </tr>
</table>`

func TestCVEDetailsFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cveDetailsFixture))
	}))
	defer server.Close()

	source := NewCVEDetails(server.Client(), Config{Endpoint: server.URL})

	records, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.ExternalID != "CVE-2024-1111" {
		t.Fatalf("unexpected external id: %s", first.ExternalID)
	}
	if first.Severity != domain.SeverityCritical {
		t.Fatalf("expected CRITICAL for 9.8, got %s", first.Severity)
	}
	if first.Score == nil || *first.Score != 9.8 {
		t.Fatalf("unexpected score: %v", first.Score)
	}
	if first.SourceURL != "https://www.cvedetails.com/cve/CVE-2024-1111/" {
		t.Fatalf("unexpected url: %s", first.SourceURL)
	}
	if first.SourceName != "CVE Details" {
		t.Fatalf("unexpected source name: %s", first.SourceName)
	}
	if first.ID == "" || first.IngestedAt.IsZero() {
		t.Fatal("record identity not populated")
	}

	second := records[1]
	if second.Severity != domain.SeverityLow {
		t.Fatalf("expected LOW for missing score, got %s", second.Severity)
	}
	if second.Score == nil || *second.Score != 0 {
		t.Fatalf("expected zero score for dash, got %v", second.Score)
	}
}

func TestCVEDetailsFetchCapsAtLimit(t *testing.T) {
	t.Parallel()

	var rows string
	for i := 0; i < 20; i++ {
		rows += `<tr class="srrows">
			<td>n</td>
			<td><a href="/cve/CVE-2024-0001/">CVE-2024-0001</a></td>
			<td>desc</td><td>5.0</td><td>x</td><td>x</td></tr>`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<table>" + rows + "</table>"))
	}))
	defer server.Close()

	source := NewCVEDetails(server.Client(), Config{Endpoint: server.URL, Limit: 10})

	records, err := source.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("expected cap of 10, got %d", len(records))
	}
}

func TestCVEDetailsFetchBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewCVEDetails(server.Client(), Config{Endpoint: server.URL})

	if _, err := source.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
