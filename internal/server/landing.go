package server

import "net/http"

const landingHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>NPbot</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; display: flex; align-items: center; justify-content: center; }
  .card { max-width: 600px; width: 90%; background: #1e293b; border-radius: 12px; padding: 2.5rem; box-shadow: 0 25px 50px rgba(0,0,0,0.4); }
  h1 { font-size: 1.75rem; margin-bottom: 0.5rem; color: #f8fafc; }
  .subtitle { color: #94a3b8; margin-bottom: 1.75rem; }
  .section { margin-bottom: 1.5rem; }
  .section-title { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.1em; color: #64748b; margin-bottom: 0.5rem; }
  a { color: #38bdf8; text-decoration: none; }
  a:hover { text-decoration: underline; }
  pre { background: #0f172a; border: 1px solid #334155; border-radius: 8px; padding: 1rem; overflow-x: auto; font-size: 0.85rem; line-height: 1.5; color: #e2e8f0; }
  code { font-family: "SF Mono", "Fira Code", "Fira Mono", Menlo, monospace; }
  .status { display: inline-block; width: 8px; height: 8px; background: #22c55e; border-radius: 50%; margin-right: 0.5rem; }
  .endpoint { font-family: "SF Mono", monospace; font-size: 0.9rem; color: #a5b4fc; }
</style>
</head>
<body>
<div class="card">
  <h1>NPbot</h1>
  <p class="subtitle">Grounded question answering over Nippon India Mutual Fund scheme data, with every answer attributed to an official source page.</p>

  <div class="section">
    <div class="section-title">Ask a question</div>
    <pre><code>curl -X POST /query -d '{"query": "What is the latest NAV of Nippon India Small Cap Fund?"}'</code></pre>
  </div>

  <div class="section">
    <div class="section-title">Endpoints</div>
    <p><span class="status"></span><span class="endpoint">/query</span> &mdash; Answer a question (POST)</p>
    <p><span class="status"></span><a href="/mcp" class="endpoint">/mcp</a> &mdash; MCP Streamable HTTP</p>
    <p><span class="status"></span><a href="/health" class="endpoint">/health</a> &mdash; Health check</p>
  </div>
</div>
</body>
</html>`

// NewLandingHandler serves the landing page at /.
func NewLandingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(landingHTML))
	}
}
