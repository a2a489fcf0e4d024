// Package tilecache implements the two-tier tile cache: an in-process LRU
// (L1) backed by an optional shared L2 store, with single-flight
// coalescing of concurrent builds for the same key. There is no purge API
// — the sanctioned invalidation path is bumping the fingerprint that feeds
// into the cache key, exactly as the fingerprint is derived from the
// enabled factor set and scoring parameters that produced a tile.
package tilecache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/monitoring"
	"github.com/osiedlownik/geoscore/pkg/tracing"
)

// Kind distinguishes the two tile families the cache serves, which have
// different size/TTL budgets per the pipeline's cache policy.
type Kind string

const (
	KindHeatmap  Kind = "heatmap"
	KindProperty Kind = "property"
)

// Budget holds the size/TTL policy for one Kind.
type Budget struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultBudgets are the documented per-kind cache budgets.
var DefaultBudgets = map[Kind]Budget{
	KindHeatmap:  {MaxEntries: 10000, TTL: 24 * time.Hour},
	KindProperty: {MaxEntries: 1000, TTL: 12 * time.Hour},
}

// Key identifies one cached tile build.
type Key struct {
	Kind        Kind
	Z, X, Y     int
	Fingerprint string
}

// String renders the key for logging and as the L2 store's opaque key.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d:%d:%s", k.Kind, k.Z, k.X, k.Y, k.Fingerprint)
}

// L2 is the shared-cache contract consumed by the pipeline: an opaque
// byte store whose failures must degrade silently to L1-only operation,
// never surfaced to the caller as an error.
type L2 interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// BuildFunc produces the bytes for a cache miss. Encoding/decoding is left
// to the caller (pkg/httpapi's heatmap service encodes a model.TileResult
// with encoding/gob).
type BuildFunc func(ctx context.Context) ([]byte, error)

// Cache is a two-tier, single-flight tile cache for one Kind.
type Cache struct {
	kind   Kind
	budget Budget
	l1     *lru.Cache[string, entry]
	l2     L2 // nil disables L2
	group  singleflight.Group
	mu     sync.Mutex // guards inFlight
	inFlight map[string]bool
}

// New creates a Cache for kind using the documented default budget. l2 may
// be nil to run L1-only.
func New(kind Kind, l2 L2) (*Cache, error) {
	budget := DefaultBudgets[kind]
	l1, err := lru.New[string, entry](budget.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating L1 cache for %s: %w", kind, err)
	}
	return &Cache{kind: kind, budget: budget, l1: l1, l2: l2, inFlight: make(map[string]bool)}, nil
}

// Get returns the cached bytes for key, building them with build on a
// miss. Concurrent Get calls for the same key share one build; if every
// caller's context is cancelled before the build finishes, the build
// itself still runs to completion and populates the cache for the next
// caller — an orphaned single-flight build is not aborted.
func (c *Cache) Get(ctx context.Context, key Key, build BuildFunc) ([]byte, error) {
	keyStr := key.String()

	if v, ok := c.l1.Get(keyStr); ok && time.Now().Before(v.expiresAt) {
		monitoring.RecordCacheHit(tracing.CacheTierL1, string(c.kind))
		return v.data, nil
	}
	monitoring.RecordCacheMiss(tracing.CacheTierL1, string(c.kind))

	if c.l2 != nil {
		if data, ok, err := c.l2.Get(ctx, keyStr); err != nil {
			slog.Warn("tile cache L2 get failed, degrading to L1-only", "key", keyStr, "error", err)
		} else if ok {
			monitoring.RecordCacheHit(tracing.CacheTierL2, string(c.kind))
			c.l1.Add(keyStr, entry{data: data, expiresAt: time.Now().Add(c.budget.TTL)})
			return data, nil
		} else {
			monitoring.RecordCacheMiss(tracing.CacheTierL2, string(c.kind))
		}
	}

	c.markInFlight(keyStr, true)
	defer c.markInFlight(keyStr, false)

	v, err, shared := c.group.Do(keyStr, func() (interface{}, error) {
		// Detached from the caller's context deliberately: this build must
		// complete and populate the cache even if every waiter's request
		// context is cancelled mid-flight.
		buildCtx := context.WithoutCancel(ctx)
		data, err := build(buildCtx)
		if err != nil {
			return nil, err
		}
		c.l1.Add(keyStr, entry{data: data, expiresAt: time.Now().Add(c.budget.TTL)})
		if c.l2 != nil {
			if err := c.l2.Set(buildCtx, keyStr, data, c.budget.TTL); err != nil {
				slog.Warn("tile cache L2 set failed, continuing L1-only", "key", keyStr, "error", err)
			}
		}
		return data, nil
	})
	if shared {
		monitoring.RecordSingleFlightCoalesced(string(c.kind))
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) markInFlight(key string, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.inFlight[key] = true
	} else {
		delete(c.inFlight, key)
	}
	monitoring.CacheInFlight.WithLabelValues(string(c.kind)).Set(float64(len(c.inFlight)))
}

// Len reports the current L1 entry count, surfaced as a gauge by callers.
func (c *Cache) Len() int {
	n := c.l1.Len()
	monitoring.UpdateCacheSize(string(c.kind), n)
	return n
}

// Fingerprint mirrors model.TileResult's SourceFingerprint contract: a
// stable hash over the enabled factor set and scoring parameters so that
// permuting the factor slice's order never changes the resulting key.
func Fingerprint(factors []model.Factor, params model.ScoringParams, gridSize float64, zoom int) string {
	return fingerprint(factors, params, gridSize, zoom)
}
