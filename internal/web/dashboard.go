package web

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

// DashboardHandler serves the live event dashboard. wsPath is the event hub endpoint
// the page subscribes to.
func DashboardHandler(wsPath string) http.Handler {
	var page bytes.Buffer
	if err := dashboardTemplate.Execute(&page, struct{ WebSocketPath string }{wsPath}); err != nil {
		panic(err)
	}
	body := page.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		_, _ = w.Write(body)
	})
}
