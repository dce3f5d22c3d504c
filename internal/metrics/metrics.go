// Package metrics implements network.Metrics with real Prometheus
// collectors, grounded on TCPInfoCollector's Describe/Collect pattern in
// runZeroInc-sockstats/pkg/exporter, adapted from per-connection TCP_INFO
// gauges to per-tick netcode gauges and counters. It stays entirely
// separate from pkg/network, which only depends on the Metrics interface
// — this package is the one place that reaches for
// prometheus/client_golang.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements network.Metrics (structurally; pkg/network depends
// only on the interface shape, not on this package, to stay free of any
// particular metrics backend).
type Collector struct {
	tickDuration     prometheus.Histogram
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	packetsDropped   *prometheus.CounterVec
	clientsConnected prometheus.Gauge
	disconnects      *prometheus.CounterVec
	cmdBufferOverrun prometheus.Counter
}

// New registers every collector against reg (typically
// prometheus.NewRegistry(), not the global DefaultRegisterer, so tests can
// spin up an isolated Collector without colliding on re-registration).
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "skirmish",
			Subsystem: "server",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock time spent in one Server.Update call.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "skirmish",
			Subsystem: "network",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to UDP sockets.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "skirmish",
			Subsystem: "network",
			Name:      "bytes_received_total",
			Help:      "Total bytes read from UDP sockets.",
		}),
		packetsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skirmish",
			Subsystem: "network",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped, labeled by reason (stale-or-malformed, fragment-broken, baseline-missing, decode, stale-command, ...).",
		}, []string{"reason"}),
		clientsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "skirmish",
			Subsystem: "server",
			Name:      "clients_connected",
			Help:      "Currently connected client count.",
		}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "skirmish",
			Subsystem: "server",
			Name:      "client_disconnects_total",
			Help:      "Client disconnects, labeled by reason.",
		}, []string{"reason"}),
		cmdBufferOverrun: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "skirmish",
			Subsystem: "server",
			Name:      "command_buffer_overflow_total",
			Help:      "Times a queued command aged out of the command buffer before being applied.",
		}),
	}
}

// TickDuration implements network.Metrics.
func (c *Collector) TickDuration(d time.Duration) { c.tickDuration.Observe(d.Seconds()) }

// BytesSent implements network.Metrics.
func (c *Collector) BytesSent(n int) { c.bytesSent.Add(float64(n)) }

// BytesReceived implements network.Metrics.
func (c *Collector) BytesReceived(n int) { c.bytesReceived.Add(float64(n)) }

// PacketDropped implements network.Metrics.
func (c *Collector) PacketDropped(reason string) { c.packetsDropped.WithLabelValues(reason).Inc() }

// ClientConnected implements network.Metrics.
func (c *Collector) ClientConnected() { c.clientsConnected.Inc() }

// ClientDisconnected implements network.Metrics.
func (c *Collector) ClientDisconnected(reason string) {
	c.clientsConnected.Dec()
	c.disconnects.WithLabelValues(reason).Inc()
}

// CommandBufferOverflow implements network.Metrics.
func (c *Collector) CommandBufferOverflow() { c.cmdBufferOverrun.Inc() }

// Server exposes a Collector's registry on a /metrics HTTP endpoint, the
// one concession spec.md's single-threaded cooperative loop makes to a
// second goroutine: a Prometheus exporter always runs on its own listener,
// and never touches the tick loop's owned state directly — it only reads
// through the same atomically-updated collectors the tick loop writes.
type Server struct {
	httpServer *http.Server
}

// NewServer builds an HTTP server exposing reg's metrics at /metrics on
// addr. Call Serve to run it; call Shutdown to stop it.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Serve blocks serving metrics until Shutdown is called or ListenAndServe
// fails for a reason other than a clean shutdown.
func (s *Server) Serve() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: listen %q: %w", s.httpServer.Addr, err)
	}
	return nil
}

// Shutdown gracefully stops the metrics HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
