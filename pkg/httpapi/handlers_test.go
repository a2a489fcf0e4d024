package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/osiedlownik/geoscore/pkg/core"
	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/property"
	"github.com/osiedlownik/geoscore/pkg/tiles"
)

type stubTileService struct {
	result *model.TileResult
	err    error
}

func (s *stubTileService) BuildTile(ctx context.Context, t tiles.Tile, factors []model.Factor, params model.ScoringParams) (*model.TileResult, error) {
	return s.result, s.err
}

func validFactors() []model.Factor {
	return []model.Factor{{ID: "grocery", Weight: 10, MaxDistance: 1000, Enabled: true}}
}

func validParams() model.ScoringParams {
	return model.ScoringParams{DistanceCurve: model.CurveLinear, Sensitivity: 1}
}

func validBounds() geo.Bounds {
	return geo.Bounds{North: 52.24, South: 52.22, East: 21.02, West: 21.00}
}

type stubPrewarmer struct {
	n   int
	err error
}

func (s *stubPrewarmer) Prewarm(ctx context.Context, bounds geo.Bounds, factors []model.Factor, params model.ScoringParams) (int, error) {
	return s.n, s.err
}

type stubPointService struct {
	breakdown *model.PointBreakdown
	err       error
}

func (s *stubPointService) BuildPoint(ctx context.Context, p geo.LatLng, factors []model.Factor, params model.ScoringParams) (*model.PointBreakdown, error) {
	return s.breakdown, s.err
}

func TestServeViewportReturns504WhenEveryTileFails(t *testing.T) {
	h := &HeatmapHandler{Tiles: &stubTileService{err: core.DeadlineError()}}

	body, _ := json.Marshal(heatmapViewportRequest{
		Bounds:  validBounds(),
		Factors: validFactors(),
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-viewport", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeViewport(rec, req)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504 when every tile fails, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServeViewportReturns200WhenAnyTileSucceeds(t *testing.T) {
	h := &HeatmapHandler{Tiles: &stubTileService{result: &model.TileResult{
		Tile:   model.TileCoord{Z: 13, X: 1, Y: 1},
		Points: []model.HeatmapPoint{{Value: 0.5}},
	}}}

	body, _ := json.Marshal(heatmapViewportRequest{
		Bounds:  validBounds(),
		Factors: validFactors(),
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-viewport", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeViewport(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when at least one tile succeeds, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestServeTileReturnsResult(t *testing.T) {
	h := &HeatmapHandler{Tiles: &stubTileService{result: &model.TileResult{
		Tile:   model.TileCoord{Z: 13, X: 1, Y: 1},
		Points: []model.HeatmapPoint{{Lat: 1, Lng: 1, Value: 0.5}},
	}}}

	body, _ := json.Marshal(heatmapTileRequest{
		Tile:    tiles.Tile{Z: 13, X: 1, Y: 1},
		Factors: validFactors(),
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-tile", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeTile(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var result model.TileResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(result.Points) != 1 {
		t.Fatalf("unexpected points: %+v", result.Points)
	}
}

func TestServeTileRejectsInvalidFactors(t *testing.T) {
	h := &HeatmapHandler{Tiles: &stubTileService{}}

	body, _ := json.Marshal(heatmapTileRequest{
		Tile:    tiles.Tile{Z: 13, X: 1, Y: 1},
		Factors: []model.Factor{{ID: "bad", Weight: 999, MaxDistance: 1000, Enabled: true}},
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-tile", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeTile(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range weight, got %d", rec.Code)
	}
}

func TestServeTileMapsStoreErrorTo502(t *testing.T) {
	h := &HeatmapHandler{Tiles: &stubTileService{err: core.StoreError("down")}}

	body, _ := json.Marshal(heatmapTileRequest{
		Tile:    tiles.Tile{Z: 13, X: 1, Y: 1},
		Factors: validFactors(),
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-tile", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeTile(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for a store error, got %d", rec.Code)
	}
}

func TestServeTileMapsUnknownErrorToInternal(t *testing.T) {
	h := &HeatmapHandler{Tiles: &stubTileService{err: errors.New("boom")}}

	body, _ := json.Marshal(heatmapTileRequest{
		Tile:    tiles.Tile{Z: 13, X: 1, Y: 1},
		Factors: validFactors(),
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-tile", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeTile(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for an un-typed error, got %d", rec.Code)
	}
}

func TestServePointReturnsBreakdown(t *testing.T) {
	h := &HeatmapHandler{Points: &stubPointService{breakdown: &model.PointBreakdown{
		Point: geo.LatLng{Lat: 1, Lng: 1},
		K:     0.4,
		Factors: []model.FactorBreakdown{
			{FactorID: "grocery", Score: 0.2, Contribution: 12, Weight: 50},
			{FactorID: "highway", Score: 0.8, Contribution: -40, Weight: -50},
		},
	}}}

	body, _ := json.Marshal(heatmapPointRequest{
		Point:   geo.LatLng{Lat: 1, Lng: 1},
		Factors: validFactors(),
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-point", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServePoint(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var got model.PointBreakdown
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(got.Factors) != 2 {
		t.Fatalf("unexpected factor count: %+v", got.Factors)
	}
}

func TestServePointMapsStoreErrorTo502(t *testing.T) {
	h := &HeatmapHandler{Points: &stubPointService{err: core.StoreError("down")}}

	body, _ := json.Marshal(heatmapPointRequest{
		Point:   geo.LatLng{Lat: 1, Lng: 1},
		Factors: validFactors(),
		Params:  validParams(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/heatmap-point", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServePoint(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 for a store error, got %d", rec.Code)
	}
}

type stubPropertySource struct {
	page property.ListingsPage
	err  error
}

func (s *stubPropertySource) Get(ctx context.Context, t tiles.Tile, filter property.Filter) (property.ListingsPage, error) {
	return s.page, s.err
}

func TestServePropertyTileReturnsListings(t *testing.T) {
	h := &PropertyHandler{Listings: &stubPropertySource{page: property.ListingsPage{
		Tile:     tiles.Tile{Z: 13, X: 2, Y: 2},
		Listings: []property.Listing{{ID: "l1", Source: "test"}},
	}}}

	body, _ := json.Marshal(propertyTileRequest{Tile: tiles.Tile{Z: 13, X: 2, Y: 2}, Filter: property.Filter{Transaction: property.TransactionSale}})
	req := httptest.NewRequest(http.MethodPost, "/api/property-tile", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeTile(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewReader([]byte(`{"bogus":1}`)))
	var v heatmapTileRequest
	if err := decodeJSON(req, &v); err == nil {
		t.Fatal("expected an error for an unknown field")
	}
}
