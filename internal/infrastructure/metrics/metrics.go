package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "convoy"

// Metrics defines our Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	routeCacheLookups     *prometheus.CounterVec
	routeUpstreamRequests *prometheus.CounterVec
	routeUpstreamDuration prometheus.Histogram
	routeThrottledCalls   prometheus.Counter

	broadcasts        *prometheus.CounterVec
	droppedMessages   prometheus.Counter
	activeConnections prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		routeCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_cache_lookups_total",
			Help:      "Route cache lookups by result (hit, miss).",
		}, []string{"result"}),
		routeUpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_upstream_requests_total",
			Help:      "Requests sent to the routing provider by outcome.",
		}, []string{"outcome"}),
		routeUpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "route_upstream_duration_seconds",
			Help:      "Routing provider latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		routeThrottledCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_calls_within_min_interval_total",
			Help:      "Upstream route calls issued sooner than the minimum interval after the previous one.",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Room broadcasts by event type.",
		}, []string{"type"}),
		droppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_messages_total",
			Help:      "Outbound messages dropped because a client buffer was full.",
		}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Open websocket connections.",
		}),
	}

	m.registry.MustRegister(
		m.requestCount,
		m.requestDuration,
		m.routeCacheLookups,
		m.routeUpstreamRequests,
		m.routeUpstreamDuration,
		m.routeThrottledCalls,
		m.broadcasts,
		m.droppedMessages,
		m.activeConnections,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// RegisterRoomGauge exposes the live room count read from fn.
func (m *Metrics) RegisterRoomGauge(fn func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_rooms",
		Help:      "Rooms currently held in memory.",
	}, func() float64 {
		return float64(fn())
	}))
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) RouteCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.routeCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.routeCacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) RouteUpstream(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.routeUpstreamRequests.WithLabelValues(outcome).Inc()
	m.routeUpstreamDuration.Observe(d.Seconds())
}

func (m *Metrics) RouteThrottled() {
	if m == nil {
		return
	}
	m.routeThrottledCalls.Inc()
}

func (m *Metrics) Broadcast(eventType string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(eventType).Inc()
}

func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.droppedMessages.Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}
