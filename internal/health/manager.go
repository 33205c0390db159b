// Package health implements periodic health checks for the brickd
// subsystems: the database, the disk holding it and world responsiveness.
package health

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/config"
	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/server"
	"github.com/brickd-project/brickd/internal/util"
)

// Check states.
const (
	StatusOK       = "ok"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Disk alert thresholds in percent used.
const (
	DiskWarningPercent  = 90.0
	DiskCriticalPercent = 95.0
)

const pingTimeout = 5 * time.Second

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LagSource reports the current world latency alert, if any.
type LagSource interface {
	CheckThresholds() *server.LagAlert
}

// Result is the outcome of the latest run of one check.
type Result struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

type check struct {
	name string
	fn   func(context.Context) (string, string)
}

// Manager runs the health checks and keeps their latest results.
type Manager struct {
	cfg      *config.Config
	eventBus *events.EventBus
	checks   []check

	diskUsage func(path string) (*util.DiskUsage, error)

	mu      sync.RWMutex
	results map[string]Result
}

// NewManager creates a health check manager. db and lag may be nil, in
// which case their checks are skipped.
func NewManager(cfg *config.Config, eventBus *events.EventBus, db Pinger, lag LagSource) *Manager {
	m := &Manager{
		cfg:       cfg,
		eventBus:  eventBus,
		diskUsage: util.GetDiskUsage,
		results:   make(map[string]Result),
	}
	if db != nil {
		m.checks = append(m.checks, check{"database", func(ctx context.Context) (string, string) {
			return checkDatabase(ctx, db)
		}})
	}
	m.checks = append(m.checks, check{"disk", m.checkDisk})
	if lag != nil {
		m.checks = append(m.checks, check{"world", func(context.Context) (string, string) {
			return checkWorld(lag)
		}})
	}
	return m
}

// Start runs every check now and then on the configured interval until ctx
// is done. A zero interval disables the checks.
func (m *Manager) Start(ctx context.Context) {
	interval := time.Duration(m.cfg.GetApplicationData().Timers.HealthInterval) * time.Second
	if interval <= 0 {
		log.Info().Msg("health checks disabled")
		return
	}

	log.Info().Int("checks", len(m.checks)).Str("interval", interval.String()).Msg("health check manager started")
	m.RunChecks(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("health check manager stopped")
			return
		case <-ticker.C:
			m.RunChecks(ctx)
		}
	}
}

// RunChecks runs every check once.
func (m *Manager) RunChecks(ctx context.Context) {
	for _, c := range m.checks {
		status, message := c.fn(ctx)
		m.record(c.name, status, message)
	}
}

// record stores a result and publishes an alert when the state changed.
func (m *Manager) record(name, status, message string) {
	m.mu.Lock()
	prev, seen := m.results[name]
	m.results[name] = Result{Name: name, Status: status, Message: message, CheckedAt: time.Now()}
	m.mu.Unlock()

	if seen && prev.Status == status {
		return
	}
	if !seen && status == StatusOK {
		return
	}

	evt := log.Info()
	if status != StatusOK {
		evt = log.Warn()
	}
	evt.Str("check", name).Str("status", status).Msg(message)

	if m.eventBus != nil {
		m.eventBus.Publish(events.EventHealthAlert, "health", events.HealthPayload{
			Check:   name,
			Status:  status,
			Message: message,
		})
	}
}

// Report returns the latest result of every check, sorted by name.
func (m *Manager) Report() []Result {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Result, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Healthy reports whether no check is critical.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.Status == StatusCritical {
			return false
		}
	}
	return true
}

func checkDatabase(ctx context.Context, db Pinger) (string, string) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		return StatusCritical, err.Error()
	}
	return StatusOK, "database reachable"
}

// checkDisk watches the filesystem holding the database.
func (m *Manager) checkDisk(context.Context) (string, string) {
	dir := filepath.Dir(m.cfg.GetApplicationData().Database.Path)
	usage, err := m.diskUsage(dir)
	if err != nil {
		return StatusWarning, fmt.Sprintf("disk usage unavailable: %v", err)
	}

	message := fmt.Sprintf("disk usage at %.1f%% (%s free of %s)",
		usage.UsedPercent, humanize.IBytes(usage.Free), humanize.IBytes(usage.Total))
	switch {
	case usage.UsedPercent >= DiskCriticalPercent:
		return StatusCritical, message
	case usage.UsedPercent >= DiskWarningPercent:
		return StatusWarning, message
	}
	return StatusOK, message
}

func checkWorld(lag LagSource) (string, string) {
	alert := lag.CheckThresholds()
	if alert == nil {
		return StatusOK, "world responsive"
	}
	if alert.Level == "critical" {
		return StatusCritical, alert.Message
	}
	return StatusWarning, alert.Message
}
