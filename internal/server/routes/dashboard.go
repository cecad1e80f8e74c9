package routes

import (
	"bytes"
	"html/template"
	"net/url"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/AsemElenawy/simtool-Nanohub/internal/catalog"
	"github.com/AsemElenawy/simtool-Nanohub/internal/server"
)

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"size": catalog.FormatSize,
	"fileURL": func(handle string) string {
		return "/api/files/" + url.PathEscape(handle) + "?download=true"
	},
}).Parse(dashboardHTML))

type dashboardView struct {
	Root       string
	Protected  bool
	Entries    []catalog.Entry
	TotalFiles int
	TotalSize  int64
	ScannedAt  string
}

// DashboardDeps 描述仪表盘依赖。AuthRequired 为 true 时 /api/ 需要令牌，
// 页面不再输出浏览器无法使用的下载链接。
type DashboardDeps struct {
	Catalog      catalog.Source
	Root         string
	Logger       *logrus.Logger
	AuthRequired bool
}

// RegisterDashboardRoutes 挂载只读仪表盘，GET / 与 /dashboard 渲染同一页面。
func RegisterDashboardRoutes(app *fiber.App, deps DashboardDeps) {
	if app == nil || deps.Catalog == nil {
		return
	}
	source := deps.Catalog
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	render := func(c fiber.Ctx) error {
		snapshot, err := source.Scan(c.Context())
		if err != nil {
			logger.WithFields(logrus.Fields{
				"action":     "dashboard",
				"request_id": server.RequestID(c),
			}).WithError(err).Error("catalog_scan_failed")
			return fiber.NewError(fiber.StatusInternalServerError, "catalog scan failed")
		}

		view := dashboardView{
			Root:       deps.Root,
			Protected:  deps.AuthRequired,
			Entries:    snapshot.Entries,
			TotalFiles: snapshot.TotalFiles,
			TotalSize:  snapshot.TotalSize,
			ScannedAt:  snapshot.ScannedAt.UTC().Format("2006-01-02 15:04:05 MST"),
		}
		var buf bytes.Buffer
		if err := dashboardTemplate.Execute(&buf, view); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.Send(buf.Bytes())
	}

	app.Get("/", render)
	app.Get("/dashboard", render)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Simtool Cache</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
th, td { text-align: left; padding: 0.3rem 0.6rem; border-bottom: 1px solid #ddd; }
.entry { margin-bottom: 2rem; }
.muted { color: #777; }
code { background: #f4f4f4; padding: 0 0.2rem; }
</style>
</head>
<body>
<h1>Simtool Cache</h1>
<p class="muted">Cache root: <code>{{.Root}}</code> · scanned {{.ScannedAt}}</p>
<p><strong>{{len .Entries}}</strong> entries · <strong>{{.TotalFiles}}</strong> files · <strong>{{size .TotalSize}}</strong></p>
{{if .Protected}}
<p class="muted">Downloads require a bearer token. Use <code>squidctl fetch ID</code> to retrieve an entry.</p>
{{end}}
{{if not .Entries}}
<p class="muted">The cache is empty.</p>
{{end}}
{{range .Entries}}
<div class="entry">
<h2><code>{{.ID}}</code></h2>
<p class="muted">{{.FileCount}} files · {{size .TotalSize}}</p>
<table>
<tr><th>File</th><th>Size</th><th></th></tr>
{{range .Files}}
<tr><td>{{.Path}}</td><td>{{size .Size}}</td><td>{{if not $.Protected}}<a href="{{fileURL .Handle}}">download</a>{{end}}</td></tr>
{{end}}
</table>
</div>
{{end}}
</body>
</html>
`
