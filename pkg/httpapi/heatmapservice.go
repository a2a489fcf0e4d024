package httpapi

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/tiles"
	"github.com/osiedlownik/geoscore/pkg/tilecache"
)

// tileBuilder is the contract heatmapService needs from pkg/tilebuilder.
type tileBuilder interface {
	Build(ctx context.Context, t tiles.Tile, factors []model.Factor, params model.ScoringParams) (*model.TileResult, error)
	BuildPoint(ctx context.Context, p geo.LatLng, factors []model.Factor, params model.ScoringParams) (*model.PointBreakdown, error)
}

// heatmapService wires the Tile Builder behind the two-tier tile cache
// and satisfies both TileService and Prewarmer for the HTTP handlers.
type heatmapService struct {
	builder tileBuilder
	cache   *tilecache.Cache
}

// NewHeatmapService creates the TileService/Prewarmer implementation used
// by cmd/geoscore-server to construct a HeatmapHandler.
func NewHeatmapService(builder tileBuilder, cache *tilecache.Cache) *heatmapService {
	return &heatmapService{builder: builder, cache: cache}
}

func (s *heatmapService) BuildTile(ctx context.Context, t tiles.Tile, factors []model.Factor, params model.ScoringParams) (*model.TileResult, error) {
	gridSize := tiles.GridSize(t.Z)
	key := tilecache.Key{
		Kind:        tilecache.KindHeatmap,
		Z:           t.Z,
		X:           t.X,
		Y:           t.Y,
		Fingerprint: tilecache.Fingerprint(factors, params, gridSize, t.Z),
	}

	data, err := s.cache.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
		result, err := s.builder.Build(ctx, t, factors, params)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(result); err != nil {
			return nil, fmt.Errorf("encoding tile result: %w", err)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return nil, err
	}

	var result model.TileResult
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding cached tile result: %w", err)
	}
	return &result, nil
}

// BuildPoint delegates directly to the tile builder — a point breakdown is
// popup-scoped and not cached, since each popup query is for a distinct
// point rather than a reusable tile-aligned grid.
func (s *heatmapService) BuildPoint(ctx context.Context, p geo.LatLng, factors []model.Factor, params model.ScoringParams) (*model.PointBreakdown, error) {
	return s.builder.BuildPoint(ctx, p, factors, params)
}

// Prewarm builds (and thereby caches) every tile covering bounds,
// returning how many tiles were built.
func (s *heatmapService) Prewarm(ctx context.Context, bounds geo.Bounds, factors []model.Factor, params model.ScoringParams) (int, error) {
	for _, t := range tiles.BoundsToTiles(bounds) {
		if _, err := s.BuildTile(ctx, t, factors, params); err != nil {
			return 0, fmt.Errorf("prewarming tile %v: %w", t, err)
		}
	}
	return len(tiles.BoundsToTiles(bounds)), nil
}
