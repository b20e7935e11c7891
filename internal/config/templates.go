package config

// DefaultDailySummaryTemplate renders monitor.SummaryData into the daily summary body.
const DefaultDailySummaryTemplate = `{{if .AllHealthy}}All services are healthy:{{range .Services}}
- {{.}}: OK{{end}}{{else}}Issues detected:{{range .Issues}}
- {{.}}{{end}}{{if .Actions}}

Actions taken:{{range .Actions}}
- {{.}}{{end}}{{end}}{{end}}`
