package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/tiles"
)

func smallViewport() geo.Bounds {
	center := geo.LatLng{Lat: 52.2297, Lng: 21.0122}
	t := tiles.LatLngToTile(center, tiles.ServingZoom)
	return tiles.TileBounds(t)
}

func TestResolveReturnsTooLargeWhenViewportExceedsCap(t *testing.T) {
	budget := HeatmapBudget
	budget.MaxViewportTiles = 0
	c := New(budget, func(ctx context.Context, tile tiles.Tile) (int, error) { return 1, nil })

	_, err := c.Resolve(context.Background(), smallViewport(), 0)
	if err == nil {
		t.Fatal("expected a too-large error")
	}
}

func TestResolveNeverDoesWorkWhenViewportExceedsCap(t *testing.T) {
	var calls int32
	budget := HeatmapBudget
	budget.MaxViewportTiles = 0
	c := New(budget, func(ctx context.Context, tile tiles.Tile) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})
	_, _ = c.Resolve(context.Background(), smallViewport(), 0)
	if calls != 0 {
		t.Fatalf("expected no fetches when over cap, got %d", calls)
	}
}

func TestResolveOrdersViewportTilesBeforeExpansion(t *testing.T) {
	budget := HeatmapBudget
	c := New(budget, func(ctx context.Context, tile tiles.Tile) (tiles.Tile, error) { return tile, nil })

	bounds := smallViewport()
	viewportCount := len(tiles.BoundsToTiles(bounds))

	outcomes, err := c.Resolve(context.Background(), bounds, 1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(outcomes) < viewportCount {
		t.Fatalf("expected at least %d outcomes, got %d", viewportCount, len(outcomes))
	}

	core := make(map[tiles.Tile]bool)
	for _, vt := range tiles.BoundsToTiles(bounds) {
		core[vt] = true
	}
	for i := 0; i < viewportCount; i++ {
		if !core[outcomes[i].Tile] {
			t.Fatalf("expected viewport tile at position %d, got %v", i, outcomes[i].Tile)
		}
	}
}

func TestResolvePropagatesPerTileErrorsWithoutFailingBatch(t *testing.T) {
	budget := HeatmapBudget
	bounds := smallViewport()
	failTile := tiles.BoundsToTiles(bounds)[0]

	c := New(budget, func(ctx context.Context, tile tiles.Tile) (string, error) {
		if tile == failTile {
			return "", errors.New("build failed")
		}
		return "ok", nil
	})

	outcomes, err := c.Resolve(context.Background(), bounds, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	var sawFailure, sawSuccess bool
	for _, o := range outcomes {
		if o.Err != nil {
			sawFailure = true
		} else if o.Result == "ok" {
			sawSuccess = true
		}
	}
	if !sawFailure || !sawSuccess {
		t.Fatal("expected a mix of one failed tile and successful batch-mates")
	}
}

func TestResolveDoesNoWorkWhenContextAlreadyCancelled(t *testing.T) {
	var calls int32
	c := New(HeatmapBudget, func(ctx context.Context, tile tiles.Tile) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Resolve(ctx, smallViewport(), 0)
	if err == nil {
		t.Fatal("expected an error for an already-cancelled context")
	}
	if calls != 0 {
		t.Fatalf("expected no fetches with a pre-cancelled context, got %d", calls)
	}
}

func TestResolveBatchesRespectBatchSize(t *testing.T) {
	budget := HeatmapBudget
	budget.BatchSize = 2
	budget.BatchDelay = 5 * time.Millisecond

	var maxConcurrent, current int32
	c := New(budget, func(ctx context.Context, tile tiles.Tile) (int, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			old := atomic.LoadInt32(&maxConcurrent)
			if n <= old || atomic.CompareAndSwapInt32(&maxConcurrent, old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return 1, nil
	})

	_, err := c.Resolve(context.Background(), smallViewport(), 1)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if maxConcurrent > int32(budget.BatchSize) {
		t.Fatalf("expected concurrency to stay within batch size %d, observed %d", budget.BatchSize, maxConcurrent)
	}
}
