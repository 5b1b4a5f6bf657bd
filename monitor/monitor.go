package monitor

import (
	"github.com/gin-gonic/gin"

	"upset-radar-api/config"
	"upset-radar-api/models"
)

// Dashboard serves a small self-refreshing page showing recent pipeline runs.
func Dashboard(c *gin.Context) {
	c.Data(200, "text/html; charset=utf-8", []byte(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1.0" />
  <title>Pipeline Monitor</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; }
    body {
      background: #0f1117;
      color: #e0e0e0;
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      min-height: 100vh;
      padding: 24px;
    }
    .container { max-width: 1100px; margin: 0 auto; }
    h1 { font-size: 1.75rem; margin-bottom: 1.5rem; color: #a5b4fc; }
    .status-card {
      background: rgba(255, 255, 255, 0.05);
      border: 1px solid rgba(255, 255, 255, 0.1);
      border-radius: 12px;
      padding: 1rem 1.5rem;
      margin-bottom: 1.5rem;
      font-size: 1.1rem;
      font-weight: 600;
    }
    table {
      width: 100%;
      border-collapse: collapse;
      background: rgba(255, 255, 255, 0.03);
      border: 1px solid rgba(255, 255, 255, 0.1);
      border-radius: 12px;
      overflow: hidden;
      font-size: 0.875rem;
    }
    th, td { padding: 0.6rem 0.9rem; text-align: left; }
    th {
      background: rgba(255, 255, 255, 0.06);
      color: #a5b4fc;
      font-weight: 600;
      border-bottom: 1px solid rgba(255, 255, 255, 0.1);
    }
    tr:not(:last-child) td { border-bottom: 1px solid rgba(255, 255, 255, 0.06); }
    .completed { color: #4ade80; }
    .completed_with_errors { color: #facc15; }
    .failed { color: #f87171; }
    .running { color: #60a5fa; }
  </style>
</head>
<body>
  <div class="container">
    <h1>Upset Radar Pipeline</h1>
    <div class="status-card" id="status">Status: checking...</div>
    <table>
      <thead>
        <tr>
          <th>Job</th><th>Status</th><th>Started</th><th>Duration</th>
          <th>Processed</th><th>Created</th><th>Updated</th><th>Errors</th>
        </tr>
      </thead>
      <tbody id="runs"><tr><td colspan="8">Loading...</td></tr></tbody>
    </table>
  </div>

  <script>
    const statusEl = document.getElementById('status');
    const runsEl = document.getElementById('runs');

    function fetchStatus() {
      fetch('/api/v1/health')
        .then(res => res.json())
        .then(data => { statusEl.textContent = 'Status: ' + (data.status === 'ok' ? 'online' : 'degraded'); })
        .catch(() => { statusEl.textContent = 'Status: offline'; });
    }

    function fetchRuns() {
      fetch('/monitor/runs')
        .then(res => res.json())
        .then(data => {
          const rows = (data.runs || []).map(r =>
            '<tr><td>' + r.job_name + '</td>' +
            '<td class="' + r.status + '">' + r.status + '</td>' +
            '<td>' + new Date(r.started_at).toLocaleString() + '</td>' +
            '<td>' + (r.duration_seconds == null ? '-' : r.duration_seconds.toFixed(1) + 's') + '</td>' +
            '<td>' + r.records_processed + '</td>' +
            '<td>' + r.records_created + '</td>' +
            '<td>' + r.records_updated + '</td>' +
            '<td>' + (r.error_message || '-') + '</td></tr>'
          );
          runsEl.innerHTML = rows.join('') || '<tr><td colspan="8">No runs yet</td></tr>';
        });
    }

    fetchStatus();
    fetchRuns();
    setInterval(fetchStatus, 10000);
    setInterval(fetchRuns, 10000);
  </script>
</body>
</html>`))
}

// Runs returns the most recent pipeline runs as JSON for the dashboard.
func Runs(c *gin.Context) {
	var runs []models.PipelineRun
	if err := config.DB.Order("started_at DESC").Limit(50).Find(&runs).Error; err != nil {
		c.JSON(500, gin.H{"error": "Unable to load runs"})
		return
	}
	c.JSON(200, gin.H{"runs": runs})
}
