// Package tilebuilder orchestrates one tile build: fetching each enabled
// factor's POIs padded by its own max distance, indexing them, generating
// the tile's scoring grid, running the evaluator, and assembling the
// result with a fingerprint the tile cache keys on.
package tilebuilder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/osiedlownik/geoscore/pkg/core"
	"github.com/osiedlownik/geoscore/pkg/evaluator"
	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/monitoring"
	"github.com/osiedlownik/geoscore/pkg/scoring"
	"github.com/osiedlownik/geoscore/pkg/spatialindex"
	"github.com/osiedlownik/geoscore/pkg/tiles"
	"github.com/osiedlownik/geoscore/pkg/tilecache"
)

// POISource is the contract tilebuilder needs from the POI store: fetch
// every POI for one factor's tags within bounds. pkg/poi.Store satisfies
// this directly.
type POISource interface {
	FetchPOIs(ctx context.Context, factorID string, tags map[string]string, bounds geo.Bounds) ([]model.POI, error)
}

// Builder builds a single tile's HeatmapPoint grid.
type Builder struct {
	pois POISource
}

// New creates a Builder backed by pois.
func New(pois POISource) *Builder {
	return &Builder{pois: pois}
}

// Build produces the full TileResult for t given the requested factors and
// scoring params. A factor is skipped from the index set (but still
// contributes its "absent" value everywhere) if its own POI fetch fails
// while at least one other factor's fetch succeeds; the build only fails
// outright if every enabled factor's fetch fails, per the no-partial-
// degradation rule.
func (b *Builder) Build(ctx context.Context, t tiles.Tile, factors []model.Factor, params model.ScoringParams) (*model.TileResult, error) {
	enabled := make([]model.Factor, 0, len(factors))
	for _, f := range factors {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}

	bounds := tiles.TileBounds(t)
	indexes := make(map[string]*spatialindex.Index, len(enabled))
	weights := make(map[string]float64, len(enabled))
	fetchFailures := 0

	for _, f := range enabled {
		weights[f.ID] = f.Weight
		padded := bounds.Expand(f.MaxDistance)
		pois, err := b.pois.FetchPOIs(ctx, f.ID, f.OSMTags, padded)
		if err != nil {
			fetchFailures++
			slog.Error("tile builder: factor POI fetch failed, treating factor as absent for this tile",
				"tile", t, "factor", f.ID, "error", err)
			continue
		}
		indexes[f.ID] = spatialindex.Build(f.ID, pois)
	}

	if len(enabled) > 0 && fetchFailures == len(enabled) {
		monitoring.RecordTileBuild("heatmap", 0, false)
		return nil, core.StoreError(fmt.Sprintf("all %d enabled factors failed to fetch POIs for tile %v", len(enabled), t))
	}

	gridSize := tiles.GridSize(t.Z)
	grid := buildGrid(bounds, gridSize)

	points := evaluator.Evaluate(ctx, grid, evaluator.Input{
		Factors:      enabled,
		Indexes:      indexes,
		FactorWeight: weights,
		Params:       params,
	})
	if points == nil && len(grid) > 0 {
		monitoring.RecordTileBuild("heatmap", 0, false)
		return nil, core.DeadlineError()
	}

	if params.NormalizeToViewport {
		normalizeToViewport(points)
	}

	result := &model.TileResult{
		Tile:              model.TileCoord{Z: t.Z, X: t.X, Y: t.Y},
		Points:            points,
		SourceFingerprint: tilecache.Fingerprint(factors, params, gridSize, t.Z),
	}
	monitoring.RecordTileBuild("heatmap", 0, true)
	return result, nil
}

// BuildPoint computes the aggregate score and the full per-factor breakdown
// for a single point, used by the popup endpoint (spec.md §1's "companion
// path"). Unlike Build there is no grid or tile fingerprint: each enabled
// factor's POIs are fetched in a bounds padded by that factor's own
// MaxDistance around p. Factors is sorted by descending |contribution|.
func (b *Builder) BuildPoint(ctx context.Context, p geo.LatLng, factors []model.Factor, params model.ScoringParams) (*model.PointBreakdown, error) {
	enabled := make([]model.Factor, 0, len(factors))
	for _, f := range factors {
		if f.Enabled {
			enabled = append(enabled, f)
		}
	}

	weights := make(map[string]float64, len(enabled))
	breakdowns := make([]model.FactorBreakdown, 0, len(enabled))
	fetchFailures := 0

	point := geo.Bounds{North: p.Lat, South: p.Lat, East: p.Lng, West: p.Lng}
	for _, f := range enabled {
		weights[f.ID] = f.Weight
		padded := point.Expand(f.MaxDistance)
		pois, err := b.pois.FetchPOIs(ctx, f.ID, f.OSMTags, padded)
		if err != nil {
			fetchFailures++
			slog.Error("tile builder: factor POI fetch failed for point breakdown, treating factor as absent",
				"factor", f.ID, "error", err)
			breakdowns = append(breakdowns, scoring.FactorValue(p, f, nil, params))
			continue
		}
		idx := spatialindex.Build(f.ID, pois)
		breakdowns = append(breakdowns, scoring.FactorValue(p, f, idx, params))
	}

	if len(enabled) > 0 && fetchFailures == len(enabled) {
		return nil, core.StoreError(fmt.Sprintf("all %d enabled factors failed to fetch POIs for point breakdown", len(enabled)))
	}

	sort.Slice(breakdowns, func(i, j int) bool {
		return math.Abs(breakdowns[i].Contribution) > math.Abs(breakdowns[j].Contribution)
	})

	k := scoring.Aggregate(breakdowns, weights, params.Lambda)
	return &model.PointBreakdown{Point: p, K: k, Factors: breakdowns}, nil
}

// buildGrid lays out a row-major grid of lat/lng points over bounds spaced
// gridMeters apart, south-to-north by row and west-to-east within a row,
// per the pipeline's point-ordering guarantee.
func buildGrid(bounds geo.Bounds, gridMeters float64) []geo.LatLng {
	dLat := gridMeters / geo.MetersPerDegreeLat
	dLng := geo.DegreesLngPerMeter(bounds.Center().Lat) * gridMeters
	if dLat <= 0 || dLng <= 0 {
		return nil
	}

	var grid []geo.LatLng
	for lat := bounds.South; lat <= bounds.North; lat += dLat {
		for lng := bounds.West; lng <= bounds.East; lng += dLng {
			grid = append(grid, geo.LatLng{Lat: lat, Lng: lng})
		}
	}
	return grid
}

// normalizeToViewport rescales points' values so the minimum observed value
// in this tile maps to 0 and the maximum maps to 1, stretching contrast
// within a single viewport at the cost of cross-tile comparability.
func normalizeToViewport(points []model.HeatmapPoint) {
	if len(points) == 0 {
		return
	}
	min, max := points[0].Value, points[0].Value
	for _, p := range points[1:] {
		if p.Value < min {
			min = p.Value
		}
		if p.Value > max {
			max = p.Value
		}
	}
	span := max - min
	if span <= 0 {
		return
	}
	for i := range points {
		points[i].Value = (points[i].Value - min) / span
	}
}

// sortedFactorIDs returns the ids of factors in lexical order.
func sortedFactorIDs(factors []model.Factor) []string {
	ids := make([]string, 0, len(factors))
	for _, f := range factors {
		ids = append(ids, f.ID)
	}
	sort.Strings(ids)
	return ids
}
