// Package spatialindex implements a uniform-grid bucket index over a set
// of points of interest, used by the scoring kernel to answer nearest-point
// and count-within-radius queries without a full linear scan per grid cell.
package spatialindex

import (
	"math"

	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
)

// DefaultCellSize is the bucket edge length in degrees of latitude,
// approximately 1.1km.
const DefaultCellSize = 0.01

type cellKey struct {
	x, y int
}

// Index buckets POIs for a single factor into a uniform grid keyed by
// (floor(lat/cell), floor(lng/cell)).
type Index struct {
	factorID string
	cellSize float64
	buckets  map[cellKey][]model.POI
	count    int
}

// Build constructs an Index over pois, all of which must belong to the same
// factor (callers build one Index per factor, per spec).
func Build(factorID string, pois []model.POI) *Index {
	return BuildWithCellSize(factorID, pois, DefaultCellSize)
}

// BuildWithCellSize is Build with an explicit bucket size, exposed for tests
// that need to exercise ring expansion deterministically.
func BuildWithCellSize(factorID string, pois []model.POI, cellSize float64) *Index {
	idx := &Index{
		factorID: factorID,
		cellSize: cellSize,
		buckets:  make(map[cellKey][]model.POI, len(pois)),
	}
	for _, p := range pois {
		k := idx.keyOf(p.Lat, p.Lng)
		idx.buckets[k] = append(idx.buckets[k], p)
		idx.count++
	}
	return idx
}

// Factor returns the factor id this index was built for.
func (idx *Index) Factor() string { return idx.factorID }

// Len returns the number of POIs indexed.
func (idx *Index) Len() int { return idx.count }

func (idx *Index) keyOf(lat, lng float64) cellKey {
	return cellKey{
		x: int(math.Floor(lat / idx.cellSize)),
		y: int(math.Floor(lng / idx.cellSize)),
	}
}

// NearestDistance returns the distance in meters from p to the closest
// indexed POI, and whether any POI exists within cap meters. It expands
// concentric rings of buckets around p's cell, stopping once a ring's
// closest-possible distance exceeds the best distance found so far (or cap,
// if no candidate has been found yet).
func (idx *Index) NearestDistance(p geo.LatLng, cap float64) (float64, bool) {
	if idx.count == 0 {
		return 0, false
	}

	center := idx.keyOf(p.Lat, p.Lng)
	best := math.Inf(1)
	found := false

	// Meters per degree along a meridian, on the same sphere geo.Distance uses.
	degMeters := geo.Distance(geo.LatLng{}, geo.LatLng{Lat: 1})

	for ring := 0; ; ring++ {
		// A ring's nearest possible distance to p is (ring-1) cells away,
		// since the center cell itself (ring 0) may contain a point
		// anywhere within it. A cell is narrower east-west than
		// north-south, so the bound uses its east-west width at the most
		// poleward latitude the ring reaches.
		edgeLat := math.Min(math.Abs(p.Lat)+float64(ring+1)*idx.cellSize, 90)
		cellMeters := idx.cellSize * degMeters * math.Cos(edgeLat*math.Pi/180)
		minPossible := float64(ring-1) * cellMeters
		if minPossible < 0 {
			minPossible = 0
		}
		if found && minPossible > best {
			break
		}
		if !found && minPossible > cap {
			break
		}

		anyCell := false
		for _, k := range ringCells(center, ring) {
			bucket, ok := idx.buckets[k]
			if !ok {
				continue
			}
			anyCell = true
			for _, poi := range bucket {
				d := geo.Distance(p, poi.Point())
				if d < best {
					best = d
					found = true
				}
			}
		}
		_ = anyCell

		// Safety valve: once the ring spans the whole globe every bucket
		// has been visited — prevents an infinite loop if cap is Inf and
		// the index is sparse.
		if float64(ring)*idx.cellSize > 360 {
			break
		}
	}

	if !found || best > cap {
		return best, found && best <= cap
	}
	return best, true
}

// CountWithinRadius returns how many indexed POIs lie within radiusMeters
// of p (inclusive), enumerating the bounding cells and filtering by exact
// haversine distance.
func (idx *Index) CountWithinRadius(p geo.LatLng, radiusMeters float64) int {
	if idx.count == 0 {
		return 0
	}
	cellMeters := idx.cellSize * geo.MetersPerDegreeLat
	ringSpan := int(math.Ceil(radiusMeters/cellMeters)) + 1

	center := idx.keyOf(p.Lat, p.Lng)
	count := 0
	for dx := -ringSpan; dx <= ringSpan; dx++ {
		for dy := -ringSpan; dy <= ringSpan; dy++ {
			k := cellKey{x: center.x + dx, y: center.y + dy}
			bucket, ok := idx.buckets[k]
			if !ok {
				continue
			}
			for _, poi := range bucket {
				if geo.Distance(p, poi.Point()) <= radiusMeters {
					count++
				}
			}
		}
	}
	return count
}

// ringCells returns the cell keys forming the square ring at the given
// radius around center (ring 0 is just the center cell itself).
func ringCells(center cellKey, ring int) []cellKey {
	if ring == 0 {
		return []cellKey{center}
	}
	var cells []cellKey
	for dx := -ring; dx <= ring; dx++ {
		cells = append(cells, cellKey{x: center.x + dx, y: center.y - ring})
		cells = append(cells, cellKey{x: center.x + dx, y: center.y + ring})
	}
	for dy := -ring + 1; dy <= ring-1; dy++ {
		cells = append(cells, cellKey{x: center.x - ring, y: center.y + dy})
		cells = append(cells, cellKey{x: center.x + ring, y: center.y + dy})
	}
	return cells
}
