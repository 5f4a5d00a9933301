package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/api/route", 200, time.Millisecond)
	m.RouteCacheLookup(true)
	m.RouteThrottled()
	m.Broadcast("state")
	m.MessageDropped()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.RegisterRoomGauge(func() int { return 1 })
}

func TestCounters(t *testing.T) {
	m := New()

	m.RouteCacheLookup(true)
	m.RouteCacheLookup(false)
	m.RouteCacheLookup(false)
	m.RouteThrottled()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	if got := testutil.ToFloat64(m.routeCacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("expected 2 misses, got %v", got)
	}
	if got := testutil.ToFloat64(m.routeThrottledCalls); got != 1 {
		t.Fatalf("expected 1 throttled call, got %v", got)
	}
	if got := testutil.ToFloat64(m.activeConnections); got != 1 {
		t.Fatalf("expected 1 active connection, got %v", got)
	}
}

func TestHandlerExposesRoomGauge(t *testing.T) {
	m := New()
	m.RegisterRoomGauge(func() int { return 3 })
	m.ObserveRequest("GET", "/api/rooms/{roomCode}", 404, 5*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rr.Body)
	text := string(body)
	if !strings.Contains(text, "convoy_active_rooms 3") {
		t.Fatalf("expected room gauge in output:\n%s", text)
	}
	if !strings.Contains(text, `convoy_http_requests_total{method="GET",route="/api/rooms/{roomCode}",status="404"} 1`) {
		t.Fatalf("expected request counter in output:\n%s", text)
	}
}
