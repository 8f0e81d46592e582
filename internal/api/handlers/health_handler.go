package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/reminder-be/internal/monitoring"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// TickReporter exposes the scheduling loop's most recent tick.
type TickReporter interface {
	LastTick() (monitoring.TickStatus, bool)
}

// Pinger checks that the store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports service status. It needs no authentication.
type HealthHandler struct {
	db           Pinger
	ticks        TickReporter
	channel      string
	emailEnabled bool
	started      time.Time
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, ticks TickReporter, channel string, emailEnabled bool) *HealthHandler {
	return &HealthHandler{
		db:           db,
		ticks:        ticks,
		channel:      channel,
		emailEnabled: emailEnabled,
		started:      time.Now(),
	}
}

type hostStats struct {
	UptimeSeconds uint64  `json:"uptimeSeconds"`
	MemoryUsedPct float64 `json:"memoryUsedPercent"`
	MemoryTotal   uint64  `json:"memoryTotalBytes"`
}

type healthResponse struct {
	Status          string                 `json:"status"`
	Timestamp       time.Time              `json:"timestamp"`
	UptimeSeconds   int64                  `json:"uptimeSeconds"`
	Database        string                 `json:"database"`
	EmailConfigured bool                   `json:"emailConfigured"`
	Channel         string                 `json:"channel"`
	LastTick        *monitoring.TickStatus `json:"lastTick,omitempty"`
	Host            *hostStats             `json:"host,omitempty"`
}

// Get reports "ok", or "degraded" with 503 when the database is unreachable.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:          "ok",
		Timestamp:       time.Now().UTC(),
		UptimeSeconds:   int64(time.Since(h.started).Seconds()),
		Database:        "ok",
		EmailConfigured: h.emailEnabled,
		Channel:         h.channel,
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		log.Warn().Err(err).Msg("Health check: database unreachable")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.ticks != nil {
		if last, ok := h.ticks.LastTick(); ok {
			resp.LastTick = &last
		}
	}
	resp.Host = collectHostStats(ctx)

	writeJSON(w, status, resp)
}

// collectHostStats is best effort; some platforms do not expose every figure.
func collectHostStats(ctx context.Context) *hostStats {
	var stats hostStats
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		stats.UptimeSeconds = uptime
	} else {
		log.Debug().Err(err).Msg("Health check: host uptime unavailable")
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryUsedPct = vm.UsedPercent
		stats.MemoryTotal = vm.Total
	} else {
		log.Debug().Err(err).Msg("Health check: memory stats unavailable")
	}
	return &stats
}
