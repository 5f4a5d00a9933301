package routing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type countingQuerier struct {
	mu     sync.Mutex
	calls  int
	result Result
}

func (c *countingQuerier) Query(ctx context.Context, from, to Coordinate) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	return c.result
}

func (c *countingQuerier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

func TestCachedQuerierServesWithinTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	upstream := &countingQuerier{result: Result{OK: true, DistanceM: 1000, DurationS: 60}}
	q := NewCachedQuerier(upstream, CachedQuerierOptions{TTL: 12 * time.Second, Clock: clock})

	a := Coordinate{Lat: 52.370001, Lon: 4.890001}
	b := Coordinate{Lat: 52.4, Lon: 4.9}

	q.QueryDirection(context.Background(), DirectionForward, a, b)
	clock.Advance(11 * time.Second)

	// sub-precision jitter rounds to the same key
	res := q.QueryDirection(context.Background(), DirectionForward, Coordinate{Lat: 52.370003, Lon: 4.890004}, b)
	if !res.OK || res.DurationS != 60 {
		t.Fatalf("expected cached result, got %+v", res)
	}
	if upstream.count() != 1 {
		t.Fatalf("expected one upstream call within TTL, got %d", upstream.count())
	}

	clock.Advance(time.Second)
	q.QueryDirection(context.Background(), DirectionForward, a, b)
	if upstream.count() != 2 {
		t.Fatalf("expected a fresh call after TTL, got %d", upstream.count())
	}
}

func TestCachedQuerierKeysByDirection(t *testing.T) {
	upstream := &countingQuerier{result: Result{OK: true}}
	q := NewCachedQuerier(upstream, CachedQuerierOptions{Clock: clockwork.NewFakeClock()})

	a := Coordinate{Lat: 1, Lon: 1}
	b := Coordinate{Lat: 2, Lon: 2}

	q.QueryDirection(context.Background(), DirectionForward, a, b)
	q.QueryDirection(context.Background(), DirectionReverse, b, a)
	q.QueryDirection(context.Background(), DirectionReverse, a, b)

	if upstream.count() != 3 {
		t.Fatalf("expected each direction cached separately, got %d calls", upstream.count())
	}
}

func TestCachedQuerierMinIntervalNeverBlocks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	upstream := &countingQuerier{result: Result{OK: true}}
	q := NewCachedQuerier(upstream, CachedQuerierOptions{MinInterval: 4 * time.Second, Clock: clock})

	q.Query(context.Background(), Coordinate{Lat: 1, Lon: 1}, Coordinate{Lat: 2, Lon: 2})
	clock.Advance(time.Second)
	q.Query(context.Background(), Coordinate{Lat: 3, Lon: 3}, Coordinate{Lat: 4, Lon: 4})

	if upstream.count() != 2 {
		t.Fatalf("expected both calls to go through, got %d", upstream.count())
	}
	if q.Throttled() != 1 {
		t.Fatalf("expected one call counted inside the interval, got %d", q.Throttled())
	}
	if !q.LastCall().Equal(clock.Now()) {
		t.Fatalf("expected last call recorded at %v, got %v", clock.Now(), q.LastCall())
	}

	clock.Advance(5 * time.Second)
	q.Query(context.Background(), Coordinate{Lat: 5, Lon: 5}, Coordinate{Lat: 6, Lon: 6})
	if q.Throttled() != 1 {
		t.Fatalf("expected spaced call not counted, got %d", q.Throttled())
	}
}

func TestCachedQuerierInvalidInputSkipsUpstream(t *testing.T) {
	upstream := &countingQuerier{result: Result{OK: true}}
	q := NewCachedQuerier(upstream, CachedQuerierOptions{})

	var zero float64
	res := q.Query(context.Background(), Coordinate{Lat: 1 / zero, Lon: 1}, Coordinate{Lat: 1, Lon: 1})
	if res.OK || res.Kind != KindBadRequest || upstream.count() != 0 {
		t.Fatalf("expected bad request without upstream call, got %+v", res)
	}
}
