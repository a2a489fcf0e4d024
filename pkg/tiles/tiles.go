// Package tiles implements slippy-map tile geometry: converting between
// lat/lng coordinates and (z,x,y) tile indices, covering a viewport with
// tiles at the fixed serving zoom, and deriving the scoring grid spacing
// for a given zoom level.
package tiles

import (
	"math"

	"github.com/osiedlownik/geoscore/pkg/geo"
)

// ServingZoom is the fixed zoom level (Z*) at which heatmap tiles are built
// and cached. Viewports at any display zoom are covered with tiles at this
// level so that a single cache entry can serve every display zoom.
const ServingZoom = 13

// Tile identifies a single slippy-map tile.
type Tile struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// LatLngToTile returns the tile containing p at the given zoom, using the
// standard Web Mercator slippy-tile projection.
func LatLngToTile(p geo.LatLng, zoom int) Tile {
	n := math.Exp2(float64(zoom))
	x := int((p.Lng + 180.0) / 360.0 * n)
	latRad := p.Lat * math.Pi / 180.0
	y := int((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n)
	x = clampInt(x, 0, int(n)-1)
	y = clampInt(y, 0, int(n)-1)
	return Tile{Z: zoom, X: x, Y: y}
}

// TileBounds returns the lat/lng bounds covered by a tile.
func TileBounds(t Tile) geo.Bounds {
	n := math.Exp2(float64(t.Z))
	west := float64(t.X)/n*360.0 - 180.0
	east := float64(t.X+1)/n*360.0 - 180.0
	north := tileYToLat(float64(t.Y), n)
	south := tileYToLat(float64(t.Y+1), n)
	return geo.Bounds{North: north, South: south, East: east, West: west}
}

func tileYToLat(y, n float64) float64 {
	yRatio := math.Pi * (1.0 - 2.0*y/n)
	return 180.0 / math.Pi * math.Atan(math.Sinh(yRatio))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundsToTiles returns every tile at ServingZoom that intersects bounds,
// in row-major order (north-to-south, west-to-east within a row), which is
// the order the HTTP layer reports tiles in.
func BoundsToTiles(b geo.Bounds) []Tile {
	nw := LatLngToTile(geo.LatLng{Lat: b.North, Lng: b.West}, ServingZoom)
	se := LatLngToTile(geo.LatLng{Lat: b.South, Lng: b.East}, ServingZoom)

	minX, maxX := nw.X, se.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	minY, maxY := nw.Y, se.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	var out []Tile
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			out = append(out, Tile{Z: ServingZoom, X: x, Y: y})
		}
	}
	return out
}

// ExpandByRadius returns every tile within radiusMeters of bounds, beyond
// the tiles already covering bounds itself, in row-major order. Tiles that
// also fall inside bounds are excluded so the caller can order
// viewport-tiles first and expansion-tiles second without duplicates.
func ExpandByRadius(b geo.Bounds, radiusMeters float64) []Tile {
	expanded := b.Expand(radiusMeters)
	all := BoundsToTiles(expanded)
	core := make(map[Tile]bool)
	for _, t := range BoundsToTiles(b) {
		core[t] = true
	}
	var out []Tile
	for _, t := range all {
		if !core[t] {
			out = append(out, t)
		}
	}
	return out
}

// earthCircumferenceMeters is the equatorial circumference used to derive
// a tile's edge length in meters at a given zoom and latitude.
const earthCircumferenceMeters = 40075016.686

// SizeMeters returns the approximate edge length in meters of a tile at
// the given zoom level, measured along a parallel at lat. Used to convert
// a radius expressed in tiles into a radius in meters for Bounds.Expand.
func SizeMeters(zoom int, lat float64) float64 {
	return earthCircumferenceMeters * math.Cos(lat*math.Pi/180) / math.Exp2(float64(zoom))
}

// Grid spacing policy constants (spec.md §4.5).
const (
	baseGridMeters   = 200.0
	gridZoomBase     = 10
	minGridMeters    = 50.0
	maxGridCellMeter = 300.0
)

// GridSize returns the scoring-grid cell spacing in meters for the given
// zoom level: it halves for every zoom level above gridZoomBase, clamped to
// [minGridMeters, maxGridCellMeter].
func GridSize(zoom int) float64 {
	size := baseGridMeters / math.Exp2(float64(zoom-gridZoomBase))
	return geo.Clamp(size, minGridMeters, maxGridCellMeter)
}
