// Package coordinator implements the Request Coordinator: it turns one
// viewport request into an ordered, capped, batched set of tile fetches
// against the tile cache, so a single slow or oversized request cannot
// starve the worker pool or blow past the per-request tile budget.
package coordinator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/osiedlownik/geoscore/pkg/core"
	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/tiles"
)

// Budget holds the per-kind caps and batching policy spec.md §4.7 assigns
// separately to heatmap and property requests.
type Budget struct {
	MaxViewportTiles int
	MaxTotalTiles    int
	BatchSize        int
	BatchDelay       time.Duration
	TileTimeout      time.Duration
}

// HeatmapBudget is the documented heatmap cap/batch set.
var HeatmapBudget = Budget{
	MaxViewportTiles: 36,
	MaxTotalTiles:    64,
	BatchSize:        5,
	BatchDelay:       1 * time.Millisecond,
	TileTimeout:      60 * time.Second,
}

// PropertyBudget is the documented property cap/batch set — a smaller cap
// and a much longer inter-batch delay, since the property pipeline fans
// out to an external listings source it must not hammer.
var PropertyBudget = Budget{
	MaxViewportTiles: 25,
	MaxTotalTiles:    50,
	BatchSize:        5,
	BatchDelay:       100 * time.Millisecond,
	TileTimeout:      60 * time.Second,
}

// TileFetcher resolves one tile, typically a tilecache.Cache.Get call
// wrapped to decode into T.
type TileFetcher[T any] func(ctx context.Context, t tiles.Tile) (T, error)

// TileOutcome pairs a resolved tile with its result or error. A request
// with some tiles failing and others succeeding still returns every
// outcome — the coordinator never discards a partial batch's successes
// because one tile-mate failed.
type TileOutcome[T any] struct {
	Tile   tiles.Tile
	Result T
	Err    error
}

// Coordinator resolves a viewport into an ordered set of tile outcomes.
type Coordinator[T any] struct {
	budget Budget
	fetch  TileFetcher[T]
}

// New creates a Coordinator using budget to fetch tiles with fetch.
func New[T any](budget Budget, fetch TileFetcher[T]) *Coordinator[T] {
	return &Coordinator[T]{budget: budget, fetch: fetch}
}

// Resolve covers bounds at the serving zoom, expands by radiusTiles tiles
// of context, caps and batches the work per budget, and returns outcomes
// in viewport-first order. If the viewport alone exceeds
// budget.MaxViewportTiles it returns a TooLarge error without doing any
// work; if the expanded set exceeds budget.MaxTotalTiles, radiusTiles is
// shrunk one step at a time (bottoming at 0) until it fits.
func (c *Coordinator[T]) Resolve(ctx context.Context, bounds geo.Bounds, radiusTiles int) ([]TileOutcome[T], error) {
	viewportTiles := tiles.BoundsToTiles(bounds)
	if len(viewportTiles) > c.budget.MaxViewportTiles {
		return nil, core.TooLargeError(len(viewportTiles), c.budget.MaxViewportTiles)
	}

	tileSize := tiles.SizeMeters(tiles.ServingZoom, bounds.Center().Lat)
	expanded := tiles.ExpandByRadius(bounds, float64(radiusTiles)*tileSize)
	for r := radiusTiles; r > 0 && len(viewportTiles)+len(expanded) > c.budget.MaxTotalTiles; r-- {
		expanded = tiles.ExpandByRadius(bounds, float64(r-1)*tileSize)
	}
	if len(viewportTiles)+len(expanded) > c.budget.MaxTotalTiles {
		expanded = nil
	}

	ordered := make([]tiles.Tile, 0, len(viewportTiles)+len(expanded))
	ordered = append(ordered, viewportTiles...)
	ordered = append(ordered, expanded...)

	return c.dispatch(ctx, ordered)
}

// dispatch walks ordered in batches of budget.BatchSize, fetching each
// batch's tiles concurrently and waiting budget.BatchDelay between
// batches. A cancelled context stops dispatch before the next batch but
// lets an in-flight batch finish, per the coordinator's cancellation
// contract.
func (c *Coordinator[T]) dispatch(ctx context.Context, ordered []tiles.Tile) ([]TileOutcome[T], error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	out := make([]TileOutcome[T], len(ordered))
	for start := 0; start < len(ordered); start += c.budget.BatchSize {
		end := start + c.budget.BatchSize
		if end > len(ordered) {
			end = len(ordered)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				tileCtx, cancel := context.WithTimeout(gctx, c.budget.TileTimeout)
				defer cancel()
				result, err := c.fetch(tileCtx, ordered[i])
				out[i] = TileOutcome[T]{Tile: ordered[i], Result: result, Err: err}
				return nil
			})
		}
		// Per-tile fetch failures are captured in out[i].Err, not returned
		// here — one tile's failure must not fail its batch-mates.
		_ = g.Wait()

		if end < len(ordered) {
			if ctx.Err() != nil {
				break
			}
			select {
			case <-ctx.Done():
			case <-time.After(c.budget.BatchDelay):
			}
		}
	}
	return out, nil
}
