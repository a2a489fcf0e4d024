// Package evaluator distributes scoring-grid evaluation across worker
// goroutines. Workers call the same pkg/scoring and pkg/spatialindex code
// the single-threaded path uses — there is no separate worker bundle to
// keep in sync, since Go links one binary rather than shipping a script to
// each worker.
package evaluator

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/scoring"
	"github.com/osiedlownik/geoscore/pkg/spatialindex"
)

// singleWorkerThreshold is the grid-point count below which a single
// worker evaluates the whole grid; above it, work is split across goroutines.
const singleWorkerThreshold = 10000

// maxWorkers bounds the worker count regardless of hardware or grid size.
const maxWorkers = 8

// pointsPerWorker is the target grid-point count per worker, used to derive
// the worker count for large grids.
const pointsPerWorker = 3000

// Input bundles everything a worker needs to score its share of the grid.
type Input struct {
	Factors      []model.Factor
	Indexes      map[string]*spatialindex.Index
	FactorWeight map[string]float64
	Params       model.ScoringParams
}

// Evaluate scores every point in grid, returning values in the same order
// as grid (row-major, per the tile's point ordering contract). If any
// worker fails it logs the failure and falls back to a single-threaded
// re-evaluation of the whole grid, trading throughput for a guaranteed
// result rather than returning a partially-scored tile.
func Evaluate(ctx context.Context, grid []geo.LatLng, in Input) []model.HeatmapPoint {
	n := len(grid)
	if n == 0 {
		return nil
	}

	workers := workerCount(n)
	if workers <= 1 {
		return evaluateRange(grid, in, 0, n)
	}

	results := make([]model.HeatmapPoint, n)
	chunk := (n + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if start >= n {
			break
		}
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				results[i] = evaluatePoint(grid[i], in)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			// Cancellation: discard in-flight results and propagate an
			// empty slice, the caller (tile builder) translates this into
			// a deadline marker rather than a partial tile.
			return nil
		}
		slog.Error("parallel evaluator worker failed, falling back to single-threaded evaluation", "error", err)
		return evaluateRange(grid, in, 0, n)
	}

	return results
}

// workerCount implements the worker-count policy: below the threshold, a
// single worker; above it, min(runtime, maxWorkers, ceil(n/pointsPerWorker)).
func workerCount(n int) int {
	if n < singleWorkerThreshold {
		return 1
	}
	byGrid := (n + pointsPerWorker - 1) / pointsPerWorker
	w := runtime.GOMAXPROCS(0)
	if byGrid < w {
		w = byGrid
	}
	if w > maxWorkers {
		w = maxWorkers
	}
	if w < 1 {
		w = 1
	}
	return w
}

func evaluateRange(grid []geo.LatLng, in Input, start, end int) []model.HeatmapPoint {
	out := make([]model.HeatmapPoint, end-start)
	for i := start; i < end; i++ {
		out[i-start] = evaluatePoint(grid[i], in)
	}
	return out
}

func evaluatePoint(p geo.LatLng, in Input) model.HeatmapPoint {
	breakdowns := make([]model.FactorBreakdown, 0, len(in.Factors))
	for _, f := range in.Factors {
		if !f.Enabled {
			continue
		}
		breakdowns = append(breakdowns, scoring.FactorValue(p, f, in.Indexes[f.ID], in.Params))
	}
	k := scoring.Aggregate(breakdowns, in.FactorWeight, in.Params.Lambda)
	return model.HeatmapPoint{Lat: p.Lat, Lng: p.Lng, Value: k}
}
