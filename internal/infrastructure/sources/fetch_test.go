package sources

import "testing"

func TestAbsoluteURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		base string
		href string
		want string
	}{
		{"https://www.cvedetails.com", "/cve/CVE-2024-0001/", "https://www.cvedetails.com/cve/CVE-2024-0001/"},
		{"https://thehackernews.com", "https://thehackernews.com/2024/01/post.html", "https://thehackernews.com/2024/01/post.html"},
		{"https://example.org", "javascript:alert(1)", ""},
		{"https://example.org", "", ""},
	}

	for _, tc := range cases {
		if got := absoluteURL(tc.base, tc.href); got != tc.want {
			t.Errorf("absoluteURL(%q, %q) = %q, want %q", tc.base, tc.href, got, tc.want)
		}
	}
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	if score, ok := parseScore(" 9.8 "); !ok || score != 9.8 {
		t.Fatalf("expected 9.8, got %v ok=%v", score, ok)
	}
	if _, ok := parseScore("-"); ok {
		t.Fatal("dash should not parse")
	}
	if _, ok := parseScore(""); ok {
		t.Fatal("empty should not parse")
	}
	if _, ok := parseScore("11.0"); ok {
		t.Fatal("out-of-range score should not parse")
	}
}
