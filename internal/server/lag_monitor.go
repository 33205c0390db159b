package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brickd-project/brickd/internal/events"
	"github.com/brickd-project/brickd/internal/world"
)

// Lag thresholds for a world round trip.
const (
	LagWarningLatency  = 250 * time.Millisecond
	LagCriticalLatency = time.Second

	lagHistorySize = 600
)

// LagMonitor measures how long the world goroutine takes to pick up work.
// A long round trip means the tick loop or a handler is blocking.
type LagMonitor struct {
	mu       sync.RWMutex
	world    *world.World
	eventBus *events.EventBus

	history []LagSample
	max     time.Duration

	warningLatency  time.Duration
	criticalLatency time.Duration
}

// LagSample is a single round trip measurement.
type LagSample struct {
	Timestamp time.Time     `json:"timestamp"`
	Latency   time.Duration `json:"latency_ns"`
}

// LagStats summarizes the recorded samples.
type LagStats struct {
	Samples   int     `json:"samples"`
	LastMS    float64 `json:"last_ms"`
	AvgMS     float64 `json:"avg_ms"`
	MaxMS     float64 `json:"max_ms"`
	SlowCount int     `json:"slow_count"`
}

// LagAlert represents a lag threshold alert.
type LagAlert struct {
	Level   string        `json:"level"`
	Latency time.Duration `json:"latency"`
	Slow    int           `json:"slow"`
	Message string        `json:"message"`
}

// NewLagMonitor creates a new lag monitor.
func NewLagMonitor(w *world.World, eventBus *events.EventBus) *LagMonitor {
	return &LagMonitor{
		world:           w,
		eventBus:        eventBus,
		history:         make([]LagSample, 0, lagHistorySize),
		warningLatency:  LagWarningLatency,
		criticalLatency: LagCriticalLatency,
	}
}

// Probe measures one world round trip and records it.
func (lm *LagMonitor) Probe(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := lm.world.Call(ctx, func() {}); err != nil {
		return 0, err
	}
	latency := time.Since(start)
	lm.record(LagSample{Timestamp: start, Latency: latency})
	return latency, nil
}

func (lm *LagMonitor) record(s LagSample) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lm.history = append(lm.history, s)
	if len(lm.history) > lagHistorySize {
		lm.history = lm.history[len(lm.history)-lagHistorySize:]
	}
	if s.Latency > lm.max {
		lm.max = s.Latency
	}
}

// Stats returns a summary of the recorded samples.
func (lm *LagMonitor) Stats() LagStats {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	stats := LagStats{Samples: len(lm.history), MaxMS: ms(lm.max)}
	if len(lm.history) == 0 {
		return stats
	}

	var total time.Duration
	for _, s := range lm.history {
		total += s.Latency
		if s.Latency >= lm.warningLatency {
			stats.SlowCount++
		}
	}
	stats.LastMS = ms(lm.history[len(lm.history)-1].Latency)
	stats.AvgMS = ms(total / time.Duration(len(lm.history)))
	return stats
}

// CheckThresholds evaluates the latest sample against the thresholds.
func (lm *LagMonitor) CheckThresholds() *LagAlert {
	lm.mu.RLock()
	defer lm.mu.RUnlock()

	if len(lm.history) == 0 {
		return nil
	}
	last := lm.history[len(lm.history)-1].Latency

	slow := 0
	for _, s := range lm.history {
		if s.Latency >= lm.warningLatency {
			slow++
		}
	}

	var level string
	switch {
	case last >= lm.criticalLatency:
		level = "critical"
	case last >= lm.warningLatency:
		level = "warning"
	default:
		return nil
	}
	return &LagAlert{
		Level:   level,
		Latency: last,
		Slow:    slow,
		Message: fmt.Sprintf("world round trip took %s (%d slow samples)", last.Round(time.Millisecond), slow),
	}
}

// Start probes the world every interval until ctx is done.
func (lm *LagMonitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := lm.Probe(ctx); err != nil {
				return
			}
			alert := lm.CheckThresholds()
			if alert == nil {
				continue
			}
			log.Warn().
				Str("level", alert.Level).
				Dur("latency", alert.Latency).
				Int("slow", alert.Slow).
				Msg("world lag threshold alert")

			lm.eventBus.Publish(events.EventWorldLag, "lag_monitor", events.LagPayload{
				Level:     alert.Level,
				LatencyMS: ms(alert.Latency),
				Slow:      alert.Slow,
			})
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
