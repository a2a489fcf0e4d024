// Package model holds the domain types shared across the scoring kernel,
// the POI store, the tile builder and the HTTP layer. Keeping them in one
// package (mirroring the model package used elsewhere in this codebase's
// lineage) avoids import cycles between pkg/poi, pkg/scoring and
// pkg/tilebuilder, all of which need the same shapes.
package model

import "github.com/osiedlownik/geoscore/pkg/geo"

// Curve names a distance-decay curve. Unknown values must be rejected at
// the input-validation boundary — the scoring kernel assumes Valid().
type Curve string

const (
	CurveLinear Curve = "linear"
	CurveLog    Curve = "log"
	CurveExp    Curve = "exp"
	CurvePower  Curve = "power"
)

// Valid reports whether c is one of the recognized curve names.
func (c Curve) Valid() bool {
	switch c {
	case CurveLinear, CurveLog, CurveExp, CurvePower:
		return true
	}
	return false
}

// Factor describes one weighted influence on the score: a positive weight
// rewards proximity, a negative weight penalizes it.
type Factor struct {
	ID          string            `json:"id"`
	Weight      float64           `json:"weight"` // [-100, 100]
	MaxDistance float64           `json:"maxDistance"` // meters
	Enabled     bool              `json:"enabled"`
	OSMTags     map[string]string `json:"osmTags,omitempty"`
}

// POI is a single point of interest belonging to one factor. The same
// (lat,lng) may legitimately appear under more than one factor id — POIs
// are never deduplicated across factors, each factor's index is built and
// scored independently.
type POI struct {
	ID       string  `json:"id"`
	FactorID string  `json:"factorId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Name     string  `json:"name,omitempty"`
}

// Point returns the POI's coordinates as a geo.LatLng.
func (p POI) Point() geo.LatLng {
	return geo.LatLng{Lat: p.Lat, Lng: p.Lng}
}

// ScoringParams configures the scoring kernel for one tile build.
type ScoringParams struct {
	DistanceCurve        Curve   `json:"distanceCurve"`
	Sensitivity           float64 `json:"sensitivity"` // [0.1, 10]
	Lambda                float64 `json:"lambda"`
	NormalizeToViewport   bool    `json:"normalizeToViewport"`
}

// HeatmapPoint is one evaluated grid cell.
type HeatmapPoint struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Value float64 `json:"value"` // [0,1], 0 = best, 1 = worst
}

// FactorBreakdown explains one factor's contribution to a single point's
// score, used to populate popups in the client. It is never tiled — it is
// computed for one point at a time via the popup endpoint, not stored on a
// TileResult.
type FactorBreakdown struct {
	FactorID          string  `json:"factorId"`
	Weight            float64 `json:"weight"`
	Distance          float64 `json:"distance,omitempty"`
	MaxDistance       float64 `json:"maxDistance"`
	Score             float64 `json:"score"`
	IsNegative        bool    `json:"isNegative"`
	Contribution      float64 `json:"contribution"`
	EffectiveExponent float64 `json:"effectiveExponent"`
	NoPOIs            bool    `json:"noPOIs"`
	NearbyCount       int     `json:"nearbyCount"`
}

// PointBreakdown is the full per-factor explanation for one point's
// aggregate score, returned by the popup endpoint. Factors is sorted by
// descending |contribution|.
type PointBreakdown struct {
	Point   geo.LatLng        `json:"point"`
	K       float64           `json:"k"`
	Factors []FactorBreakdown `json:"factors"`
}

// TileResult is the fully-built output for one tile.
type TileResult struct {
	Tile              TileCoord      `json:"tile"`
	Points            []HeatmapPoint `json:"points"`
	SourceFingerprint string         `json:"sourceFingerprint"`
}

// TileCoord mirrors pkg/tiles.Tile without importing it, keeping model
// free of a dependency on the tile-geometry package it is consumed by.
type TileCoord struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}
