package routing

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/convoy/internal/infrastructure/logging"
	"github.com/hilthontt/convoy/internal/infrastructure/metrics"
	"github.com/jonboulle/clockwork"
)

const DefaultMinInterval = 4 * time.Second

type CachedQuerierOptions struct {
	TTL         time.Duration
	MinInterval time.Duration
	Clock       clockwork.Clock
	Logger      logging.Logger
	Metrics     *metrics.Metrics
}

// CachedQuerier is the calling side of the route gateway. It answers from a
// TTL cache when it can and records the time of every upstream call. Calls
// closer together than MinInterval are counted, never delayed.
type CachedQuerier struct {
	upstream    Querier
	cache       *Cache
	minInterval time.Duration
	clock       clockwork.Clock
	logger      logging.Logger
	metrics     *metrics.Metrics

	mu        sync.Mutex
	lastCall  time.Time
	throttled int
}

func NewCachedQuerier(upstream Querier, opts CachedQuerierOptions) *CachedQuerier {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	return &CachedQuerier{
		upstream:    upstream,
		cache:       NewCache(opts.TTL, opts.Clock),
		minInterval: opts.MinInterval,
		clock:       opts.Clock,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

func (q *CachedQuerier) Query(ctx context.Context, from, to Coordinate) Result {
	return q.QueryDirection(ctx, DirectionNone, from, to)
}

func (q *CachedQuerier) QueryDirection(ctx context.Context, dir Direction, from, to Coordinate) Result {
	if !from.Finite() || !to.Finite() {
		return Failure(KindBadRequest, ReasonInvalidCoordinates)
	}

	key := CacheKey(dir, from, to)
	if result, ok := q.cache.Get(key); ok {
		q.metrics.RouteCacheLookup(true)
		return result
	}
	q.metrics.RouteCacheLookup(false)

	q.recordCall()

	result := q.upstream.Query(ctx, from, to)
	// failures are cached too; a caller wanting a fresh answer waits out the TTL
	q.cache.Set(key, result)

	return result
}

func (q *CachedQuerier) recordCall() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	if !q.lastCall.IsZero() && now.Sub(q.lastCall) < q.minInterval {
		q.throttled++
		q.metrics.RouteThrottled()
		q.logger.Debug(logging.Routing, logging.Cache, "route call within minimum interval", map[logging.ExtraKey]any{
			"sinceLast": now.Sub(q.lastCall).String(),
		})
	}
	q.lastCall = now
}

// LastCall reports when the upstream was last asked.
func (q *CachedQuerier) LastCall() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.lastCall
}

// Throttled counts upstream calls that came sooner than MinInterval after the previous one.
func (q *CachedQuerier) Throttled() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.throttled
}
