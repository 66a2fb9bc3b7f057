// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for the helpdesk client. It renders text/plain in Prometheus
// exposition format without pulling in the heavy client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide metrics collector.
var Collector = NewCollector()

// MetricsCollector aggregates counters and gauges.
type MetricsCollector struct {
	counters  sync.Map // name -> *Counter
	gauges    sync.Map // name -> *Gauge
	startTime time.Time
}

// NewCollector creates an empty collector.
func NewCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	if v, ok := c.counters.Load(name); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help}
	actual, _ := c.counters.LoadOrStore(name, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	if v, ok := c.gauges.Load(name); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help}
	actual, _ := c.gauges.LoadOrStore(name, g)
	return actual.(*Gauge)
}

// Handler renders the collector in Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		fmt.Fprintf(&sb, "# HELP helpdesk_uptime_seconds Time since start in seconds\n")
		fmt.Fprintf(&sb, "# TYPE helpdesk_uptime_seconds gauge\n")
		fmt.Fprintf(&sb, "helpdesk_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

		c.counters.Range(func(_, value any) bool {
			ctr := value.(*Counter)
			fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
			fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
			return true
		})

		c.gauges.Range(func(_, value any) bool {
			g := value.(*Gauge)
			fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
			fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
			return true
		})

		fmt.Fprint(w, sb.String())
	}
}

// --- Pre-defined metrics used across the client ---

var (
	ReconnectsTotal     = Collector.Counter("helpdesk_reconnects_total", "Successful gateway dials, first connect included")
	EventsInTotal       = Collector.Counter("helpdesk_events_in_total", "Inbound gateway events decoded")
	EventsOutTotal      = Collector.Counter("helpdesk_events_out_total", "Outbound gateway events written")
	MessagesMergedTotal = Collector.Counter("helpdesk_messages_merged_total", "Inbound messages merged into the directory")
	OrphansDroppedTotal = Collector.Counter("helpdesk_orphans_dropped_total", "Orphan messages dropped after the buffer window expired")
	StaleReplaysTotal   = Collector.Counter("helpdesk_stale_replays_total", "History replays ignored by the staleness guard")
	StaleLoadsTotal     = Collector.Counter("helpdesk_stale_loads_total", "Bulk loads ignored because a newer connection superseded them")
	BulkLoadsTotal      = Collector.Counter("helpdesk_bulk_loads_total", "Completed session bulk loads")

	ConnectionUp      = Collector.Gauge("helpdesk_connection_up", "1 while the gateway socket is established")
	DirectorySessions = Collector.Gauge("helpdesk_directory_sessions", "Sessions currently held in the local directory")
	OrphansWaiting    = Collector.Gauge("helpdesk_orphans_waiting", "Orphan messages buffered awaiting their session")
)
