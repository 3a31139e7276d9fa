package health

import (
	"fmt"
	"html"
	"strings"
)

// RenderDashboardHTML returns the HTML status page for GET /.
func RenderDashboardHTML(health CollectResult) string {
	headline := "All Systems Operational"
	if health.Status != "ok" {
		headline = "Degraded Performance"
	}

	var deps strings.Builder
	for _, name := range health.DependencyNames() {
		d := health.Dependencies[name]
		class := "ok"
		if d.Status != "connected" {
			class = "err"
		}
		ping := "-"
		if p, ok := d.PingMs.(*int64); ok && p != nil {
			ping = fmt.Sprintf("%dms", *p)
		}
		label := name
		if d.Backend != "" {
			label = name + " (" + d.Backend + ")"
		}
		fmt.Fprintf(&deps, `<div class="row"><span>%s</span><span class="pill %s">%s · %s</span></div>`,
			html.EscapeString(label), class, html.EscapeString(d.Status), ping)
	}

	lastReq := "-"
	if m, ok := health.Traffic.LastRequest.(map[string]interface{}); ok {
		lastReq = fmt.Sprintf("%v %v", m["method"], m["path"])
	}

	return `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>WebCarros · API Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { --brand: #E11138; --dark: #111827; --bg: #F3F4F6; --muted: #64748b; }
    body { background: var(--bg); color: var(--dark); font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; margin: 0; display: flex; justify-content: center; padding: 40px 16px; }
    .container { width: 100%; max-width: 900px; }
    h1 { font-size: 40px; font-weight: 900; margin: 0 0 8px 0; }
    .subtext { color: var(--muted); margin: 0 0 24px 0; }
    .card { background: #fff; border-radius: 16px; display: grid; grid-template-columns: repeat(3, 1fr); }
    .col { padding: 28px; border-right: 1px solid #eee; }
    .col:last-child { border-right: none; }
    .label { text-transform: uppercase; font-size: 11px; font-weight: 900; letter-spacing: 2px; color: #94a3b8; margin-bottom: 16px; }
    .big { font-size: 36px; font-weight: 900; margin-bottom: 8px; }
    .row { display: flex; justify-content: space-between; padding: 6px 0; font-size: 14px; font-weight: 700; }
    .pill { padding: 3px 10px; border-radius: 8px; font-size: 11px; }
    .ok { background: #ecfdf5; color: #047857; }
    .err { background: #fef2f2; color: #dc2626; }
    footer { margin-top: 16px; font-family: monospace; font-size: 13px; color: var(--muted); display: flex; justify-content: space-between; }
    a { color: var(--brand); }
    @media (max-width: 700px) { .card { grid-template-columns: 1fr; } .col { border-right: none; } }
  </style>
</head>
<body>
  <div class="container">
    <h1>` + headline + `</h1>
    <p class="subtext">Web<b style="color:var(--brand)">Carros</b> API · ` + html.EscapeString(health.Runtime.GoVersion) + ` · ` + html.EscapeString(health.Runtime.Platform) + `</p>
    <div class="card">
      <div class="col">
        <div class="label">Traffic</div>
        <div class="big">` + fmt.Sprint(health.Traffic.TotalRequests) + `</div>
        <div class="row"><span>Successful</span><span>` + fmt.Sprint(health.Traffic.SuccessCount) + `</span></div>
        <div class="row"><span>Failed</span><span>` + fmt.Sprint(health.Traffic.FailedCount) + `</span></div>
        <div class="row"><span>Success Rate</span><span>` + health.Traffic.SuccessRate + `%</span></div>
        <div class="row"><span>Avg Latency</span><span>` + fmt.Sprint(health.Traffic.AvgResponseTime) + `ms</span></div>
      </div>
      <div class="col">
        <div class="label">Runtime</div>
        <div class="big">` + formatUptime(health.Runtime.UptimeSeconds) + `</div>
        <div class="row"><span>Heap Used</span><span>` + fmt.Sprint(health.Runtime.Memory.HeapUsed) + ` MB</span></div>
        <div class="row"><span>Goroutines</span><span>` + fmt.Sprint(health.Runtime.Goroutines) + `</span></div>
      </div>
      <div class="col">
        <div class="label">Dependencies</div>
        ` + deps.String() + `
      </div>
    </div>
    <footer><span>last: ` + html.EscapeString(lastReq) + `</span><span><a href="/health/json">/health/json</a> · <a href="/health/errors">/health/errors</a></span></footer>
  </div>
</body>
</html>`
}

func formatUptime(sec int64) string {
	return fmt.Sprintf("%dh %02dm %02ds", sec/3600, (sec%3600)/60, sec%60)
}
