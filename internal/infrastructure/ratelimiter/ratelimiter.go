package ratelimiter

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	bucketKeyPrefix   = "rl:bucket:"
	lastFillKeyPrefix = "rl:fill:"
	defaultSourceKey  = "X-RateLimit-Key"
)

type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
}

// RateLimiter is a per-source token bucket. Buckets refill continuously at
// the configured rate and hold at most maxBurst tokens.
type RateLimiter struct {
	maxRatePerMillisecond float64
	maxBurst              int
	cache                 GetterSetter
	cacheTTL              time.Duration
	sourceHeaderKey       string
	clock                 clockwork.Clock
	locks                 sync.Map // map[string]*sync.Mutex
}

func (rl *RateLimiter) getLock(sourceKey string) *sync.Mutex {
	lock, _ := rl.locks.LoadOrStore(sourceKey, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// tokens are stored in thousandths so fractional refill survives between calls
const tokenScale = 1000

type bucketState struct {
	milliTokens int64
	lastFill    int64 // Unix milliseconds
}

func (rl *RateLimiter) full(now int64) bucketState {
	return bucketState{milliTokens: int64(rl.maxBurst) * tokenScale, lastFill: now}
}

func (rl *RateLimiter) getState(sourceKey string, now int64) bucketState {
	bucket, bucketErr := rl.cache.Get(bucketKeyPrefix + sourceKey)
	lastFill, fillErr := rl.cache.Get(lastFillKeyPrefix + sourceKey)

	if errors.Is(bucketErr, ErrCacheMiss) || errors.Is(fillErr, ErrCacheMiss) {
		return rl.full(now)
	}

	// on cache error (not miss), fail open with full bucket
	if bucketErr != nil || fillErr != nil {
		return rl.full(now)
	}

	return bucketState{milliTokens: bucket, lastFill: lastFill}
}

func (rl *RateLimiter) setState(sourceKey string, state bucketState) {
	_ = rl.cache.SetWithExpiration(bucketKeyPrefix+sourceKey, state.milliTokens, rl.cacheTTL)
	_ = rl.cache.SetWithExpiration(lastFillKeyPrefix+sourceKey, state.lastFill, rl.cacheTTL)
}

func (rl *RateLimiter) refillTokens(state bucketState, now int64) bucketState {
	elapsed := now - state.lastFill
	if elapsed <= 0 {
		return state
	}

	added := float64(elapsed) * rl.maxRatePerMillisecond * tokenScale
	capacity := float64(rl.maxBurst) * tokenScale
	tokens := math.Min(float64(state.milliTokens)+added, capacity)

	return bucketState{milliTokens: int64(tokens), lastFill: now}
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := rl.clock.Now().UnixMilli()
	state := rl.refillTokens(rl.getState(sourceKey, now), now)
	rl.setState(sourceKey, state)

	return int(state.milliTokens / tokenScale)
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	lock := rl.getLock(sourceKey)
	lock.Lock()
	defer lock.Unlock()

	now := rl.clock.Now().UnixMilli()
	state := rl.refillTokens(rl.getState(sourceKey, now), now)

	if state.milliTokens >= tokenScale {
		state.milliTokens -= tokenScale
		rl.setState(sourceKey, state)
		return true
	}

	rl.setState(sourceKey, state)
	return false
}

// GetSourceKey prefers the configured header (first hop when it carries a
// list) and falls back to the remote host.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
		first, _, _ := strings.Cut(key, ",")
		return strings.TrimSpace(first)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	Cache            GetterSetter
	CacheTTL         time.Duration
	SourceHeaderKey  string
	Clock            clockwork.Clock
}

func New(options Options) *RateLimiter {
	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}

	if options.Cache == nil {
		options.Cache = NewInMemory(options.Clock)
	}

	if options.CacheTTL == 0 {
		options.CacheTTL = 10 * time.Second
	}

	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}

	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	return &RateLimiter{
		maxRatePerMillisecond: float64(options.MaxRatePerSecond) / 1000.0,
		maxBurst:              options.MaxBurst,
		cache:                 options.Cache,
		cacheTTL:              options.CacheTTL,
		sourceHeaderKey:       options.SourceHeaderKey,
		clock:                 options.Clock,
	}
}

func (rl *RateLimiter) Close() error {
	return rl.cache.Close()
}
