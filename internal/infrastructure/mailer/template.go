package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"cvewatch/internal/domain"
)

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a2e;">
  <h2>Daily CVE Report {{.RunDate.Format "2006-01-02"}}</h2>
  <table cellpadding="6">
    <tr><td>Total threats</td><td><b>{{.TotalCount}}</b></td></tr>
    <tr><td>Critical</td><td><b>{{.CriticalCount}}</b></td></tr>
    <tr><td>High</td><td><b>{{.HighCount}}</b></td></tr>
    <tr><td>Medium</td><td><b>{{.MediumCount}}</b></td></tr>
    <tr><td>Low</td><td><b>{{.LowCount}}</b></td></tr>
  </table>
  {{if .TopThreats}}
  <h3>Top threats</h3>
  <ul>
    {{range .TopThreats}}
    <li><a href="{{.SourceURL}}">{{.Title}}</a> ({{.Severity}}{{if .Score}}, {{printf "%.1f" .ScoreValue}}{{end}}) - {{.SourceName}}</li>
    {{end}}
  </ul>
  {{end}}
</body>
</html>`))

// RenderReport produces the HTML report artifact for one daily summary.
func RenderReport(summary domain.DailySummary) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, summary); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return buf.String(), nil
}
