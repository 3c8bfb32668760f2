package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/ripclip/ripclip/internal/domain"
	"github.com/ripclip/ripclip/internal/workspace"
	"github.com/ripclip/ripclip/pkg/transcode"
)

var startTime = time.Now()

// ActiveClientCounter reports how many clients the rate limiter is
// currently tracking. Only the in-memory store can answer this.
type ActiveClientCounter interface {
	ClientCount() int
}

// ReadinessPinger verifies a dependency is reachable.
type ReadinessPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the service card and health check endpoints.
type HealthHandler struct {
	version    string
	workspaces *workspace.Manager
	counter    ActiveClientCounter // nil with the Redis limiter
	pinger     ReadinessPinger     // nil with history disabled
}

// NewHealthHandler creates a new health handler. counter and pinger may
// be nil.
func NewHealthHandler(version string, workspaces *workspace.Manager, counter ActiveClientCounter, pinger ReadinessPinger) *HealthHandler {
	return &HealthHandler{
		version:    version,
		workspaces: workspaces,
		counter:    counter,
		pinger:     pinger,
	}
}

// InfoResponse is the service card returned at the root path.
type InfoResponse struct {
	Status             string            `json:"status"`
	Service            string            `json:"service"`
	Version            string            `json:"version"`
	SupportedPlatforms []string          `json:"supported_platforms"`
	Filters            []string          `json:"filters"`
	Endpoints          map[string]string `json:"endpoints"`
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	ActiveIPs *int   `json:"active_ips,omitempty"`
}

// Info handles GET / - the service card.
func (h *HealthHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Status:             "operational",
		Service:            "ripclip",
		Version:            h.version,
		SupportedPlatforms: domain.SupportedPlatforms(),
		Filters:            transcode.Filters(),
		Endpoints: map[string]string{
			"preview":  "/preview?url={video_url}",
			"profile":  "/profile?profile_url={profile_url}&page=1&limit=24",
			"download": "/download?url={video_url}&profile={name}&index=1",
			"history":  "/history?limit=50&offset=0",
			"health":   "/health",
			"ready":    "/ready",
			"stats":    "/stats",
		},
	})
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.counter != nil {
		n := h.counter.ClientCount()
		resp.ActiveIPs = &n
	}

	writeJSON(w, http.StatusOK, resp)
}

// Ready handles GET /ready - readiness probe. Checks the workspace root
// and, when enabled, the history database.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := os.Stat(h.workspaces.Root()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	if h.pinger != nil {
		if err := h.pinger.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:    "error",
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SystemStats contains system resource statistics.
type SystemStats struct {
	Uptime           int64   `json:"uptime_seconds"`
	UptimeHuman      string  `json:"uptime_human"`
	MemAllocMB       int64   `json:"mem_alloc_mb"`
	MemSysMB         int64   `json:"mem_sys_mb"`
	NumGoroutines    int     `json:"num_goroutines"`
	NumCPU           int     `json:"num_cpu"`
	CPUPct           float64 `json:"cpu_pct"`
	DiskUsedBytes    int64   `json:"disk_used_bytes"`
	DiskFreeBytes    int64   `json:"disk_free_bytes"`
	DiskTotalBytes   int64   `json:"disk_total_bytes"`
	DiskUsedPct      float64 `json:"disk_used_pct"`
	TempRoot         string  `json:"temp_root"`
	ActiveWorkspaces int     `json:"active_workspaces"`
}

// Stats handles GET /stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	total, free, used, usedPct := getDiskStats(h.workspaces.Root())

	stats := SystemStats{
		Uptime:         int64(uptime.Seconds()),
		UptimeHuman:    formatUptime(uptime),
		MemAllocMB:     int64(m.Alloc / 1024 / 1024),
		MemSysMB:       int64(m.Sys / 1024 / 1024),
		NumGoroutines:  runtime.NumGoroutine(),
		NumCPU:         runtime.NumCPU(),
		CPUPct:         getCPUUsage(),
		DiskUsedBytes:  used,
		DiskFreeBytes:  free,
		DiskTotalBytes: total,
		DiskUsedPct:    usedPct,
		TempRoot:       h.workspaces.Root(),
	}

	if count, err := h.workspaces.ActiveCount(); err == nil {
		stats.ActiveWorkspaces = count
	}

	writeJSON(w, http.StatusOK, stats)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
