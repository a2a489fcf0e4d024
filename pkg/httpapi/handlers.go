package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/osiedlownik/geoscore/pkg/core"
	"github.com/osiedlownik/geoscore/pkg/coordinator"
	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/property"
	"github.com/osiedlownik/geoscore/pkg/tiles"
)

// TileService resolves a single tile's HeatmapPoints, used by both the
// single-tile and viewport handlers.
type TileService interface {
	BuildTile(ctx context.Context, t tiles.Tile, factors []model.Factor, params model.ScoringParams) (*model.TileResult, error)
}

// Prewarmer triggers building (and caching) every tile covering bounds,
// used by the admin prewarm endpoint.
type Prewarmer interface {
	Prewarm(ctx context.Context, bounds geo.Bounds, factors []model.Factor, params model.ScoringParams) (int, error)
}

// PointService resolves the full per-factor breakdown for a single point,
// used by the popup endpoint.
type PointService interface {
	BuildPoint(ctx context.Context, p geo.LatLng, factors []model.Factor, params model.ScoringParams) (*model.PointBreakdown, error)
}

// HeatmapHandler serves the heatmap-tile, heatmap-viewport, popup-breakdown
// and admin prewarm endpoints.
type HeatmapHandler struct {
	Tiles   TileService
	Points  PointService
	Budget  coordinator.Budget
	Prewarm Prewarmer
}

type heatmapTileRequest struct {
	Tile    tiles.Tile          `json:"tile"`
	Factors []model.Factor      `json:"factors"`
	Params  model.ScoringParams `json:"params"`
}

// ServeTile builds (or serves from cache) a single named tile.
func (h *HeatmapHandler) ServeTile(w http.ResponseWriter, r *http.Request) {
	var req heatmapTileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.NewError(core.KindInvalidInput, err.Error()))
		return
	}
	if err := validateFactorsAndParams(req.Factors, req.Params); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.Tiles.BuildTile(r.Context(), req.Tile, req.Factors, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type heatmapViewportRequest struct {
	Bounds      geo.Bounds          `json:"bounds"`
	Factors     []model.Factor      `json:"factors"`
	Params      model.ScoringParams `json:"params"`
	RadiusTiles int                 `json:"radiusTiles"`
}

type viewportResponse struct {
	Tiles []tileOutcomeJSON `json:"tiles"`
}

type tileOutcomeJSON struct {
	Tile  tiles.Tile       `json:"tile"`
	Data  *model.TileResult `json:"data,omitempty"`
	Error string            `json:"error,omitempty"`
}

// ServeViewport resolves every tile covering (and around) a viewport via
// the Request Coordinator.
func (h *HeatmapHandler) ServeViewport(w http.ResponseWriter, r *http.Request) {
	var req heatmapViewportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.NewError(core.KindInvalidInput, err.Error()))
		return
	}
	if err := core.ValidateBounds(req.Bounds); err != nil {
		writeError(w, err)
		return
	}
	if err := validateFactorsAndParams(req.Factors, req.Params); err != nil {
		writeError(w, err)
		return
	}

	budget := h.Budget
	if budget == (coordinator.Budget{}) {
		budget = coordinator.HeatmapBudget
	}
	coord := coordinator.New(budget, func(ctx context.Context, t tiles.Tile) (*model.TileResult, error) {
		return h.Tiles.BuildTile(ctx, t, req.Factors, req.Params)
	})

	outcomes, err := coord.Resolve(r.Context(), req.Bounds, req.RadiusTiles)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := viewportResponse{Tiles: make([]tileOutcomeJSON, len(outcomes))}
	allFailed := len(outcomes) > 0
	for i, o := range outcomes {
		entry := tileOutcomeJSON{Tile: o.Tile}
		if o.Err != nil {
			entry.Error = o.Err.Error()
		} else {
			entry.Data = o.Result
			allFailed = false
		}
		resp.Tiles[i] = entry
	}

	// Per spec: 200 if any tile in the batch succeeded, 504 if every tile
	// failed its per-tile deadline — a batch is not an all-or-nothing unit,
	// but an entirely empty one reads to the caller as a deadline failure.
	status := http.StatusOK
	if allFailed {
		status = core.KindDeadline.HTTPStatus()
	}
	writeJSON(w, status, resp)
}

type heatmapPointRequest struct {
	Point   geo.LatLng          `json:"point"`
	Factors []model.Factor      `json:"factors"`
	Params  model.ScoringParams `json:"params"`
}

// ServePoint computes the full per-factor breakdown for a single point,
// used to populate a map popup.
func (h *HeatmapHandler) ServePoint(w http.ResponseWriter, r *http.Request) {
	var req heatmapPointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.NewError(core.KindInvalidInput, err.Error()))
		return
	}
	if err := validateFactorsAndParams(req.Factors, req.Params); err != nil {
		writeError(w, err)
		return
	}

	breakdown, err := h.Points.BuildPoint(r.Context(), req.Point, req.Factors, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

type prewarmRequest struct {
	Bounds  geo.Bounds          `json:"bounds"`
	Factors []model.Factor      `json:"factors"`
	Params  model.ScoringParams `json:"params"`
}

type prewarmResponse struct {
	TilesBuilt int `json:"tilesBuilt"`
}

// ServePrewarm triggers a build (populating the tile cache) for every
// tile covering bounds, gated by the admin bearer token at the router.
func (h *HeatmapHandler) ServePrewarm(w http.ResponseWriter, r *http.Request) {
	var req prewarmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.NewError(core.KindInvalidInput, err.Error()))
		return
	}
	if err := core.ValidateBounds(req.Bounds); err != nil {
		writeError(w, err)
		return
	}
	if err := validateFactorsAndParams(req.Factors, req.Params); err != nil {
		writeError(w, err)
		return
	}

	n, err := h.Prewarm.Prewarm(r.Context(), req.Bounds, req.Factors, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prewarmResponse{TilesBuilt: n})
}

// PropertySource resolves a single property tile's listings page.
type PropertySource interface {
	Get(ctx context.Context, t tiles.Tile, filter property.Filter) (property.ListingsPage, error)
}

// PropertyHandler serves the property-tile endpoint.
type PropertyHandler struct {
	Listings PropertySource
}

type propertyTileRequest struct {
	Tile   tiles.Tile       `json:"tile"`
	Filter property.Filter `json:"filter"`
}

func (h *PropertyHandler) ServeTile(w http.ResponseWriter, r *http.Request) {
	var req propertyTileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, core.NewError(core.KindInvalidInput, err.Error()))
		return
	}

	page, err := h.Listings.Get(r.Context(), req.Tile, req.Filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func validateFactorsAndParams(factors []model.Factor, params model.ScoringParams) error {
	if err := core.ValidateFactors(factors); err != nil {
		return err
	}
	return core.ValidateScoringParams(params)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to the error-kind HTTP status table, wrapping any
// error that isn't already a *core.Error as an internal error — the
// kernel, index, and builder packages never construct HTTP responses
// themselves, so this is the one place that translation happens.
func writeError(w http.ResponseWriter, err error) {
	var coreErr *core.Error
	if !errors.As(err, &coreErr) {
		coreErr = core.NewError(core.KindInternal, err.Error())
	}
	writeJSON(w, coreErr.Kind.HTTPStatus(), coreErr)
}
