// Package poi implements the POI Store Adapter: it fetches points of
// interest for one factor within a bounding box from PostgreSQL/PostGIS,
// coalescing concurrent overlapping fetches with singleflight and caching
// results in an LRU with a soft TTL, mirroring the lru+singleflight combo
// this codebase already uses for its geocoding cache.
package poi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/osiedlownik/geoscore/pkg/core"
	"github.com/osiedlownik/geoscore/pkg/geo"
	"github.com/osiedlownik/geoscore/pkg/model"
	"github.com/osiedlownik/geoscore/pkg/monitoring"
)

const (
	cacheSize = 4096
	cacheTTL  = 24 * time.Hour
)

// Record mirrors one row of the osm_pois table.
type Record struct {
	ID       int64
	FactorID string
	Lat      float64
	Lng      float64
	Name     *string
	Tags     json.RawMessage
}

// SyncMetadata mirrors poi_sync_metadata, read only by the out-of-scope
// ingestion pipeline — the serving path never queries this table, but the
// type documents the contract the ingestion side and this store agree on.
type SyncMetadata struct {
	FactorID   string
	LastSyncAt time.Time
	SourceRev  string
}

type cacheEntry struct {
	pois      []model.POI
	expiresAt time.Time
}

// Store fetches POIs from Postgres/PostGIS for one factor's tags within a
// bounding box.
type Store struct {
	pool    *pgxpool.Pool
	cache   *lru.Cache[string, cacheEntry]
	group   singleflight.Group
	queryFn func(ctx context.Context, factorID string, tags map[string]string, bounds geo.Bounds) ([]model.POI, error)
}

// NewStore creates a Store backed by pool.
func NewStore(pool *pgxpool.Pool) (*Store, error) {
	c, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating POI cache: %w", err)
	}
	s := &Store{pool: pool, cache: c}
	s.queryFn = s.query
	return s, nil
}

func cacheKey(factorID string, b geo.Bounds) string {
	return fmt.Sprintf("%s:%.5f:%.5f:%.5f:%.5f", factorID, b.North, b.South, b.East, b.West)
}

// FetchPOIs returns every POI matching factor within bounds, consulting the
// cache first, then coalescing concurrent identical fetches, then querying
// Postgres. It never partially fails: an error here means no data at all
// could be produced for this factor, which the tile builder must treat as
// a StoreUnavailable condition for the whole tile if no other factor has
// cached data either.
func (s *Store) FetchPOIs(ctx context.Context, factorID string, tags map[string]string, bounds geo.Bounds) ([]model.POI, error) {
	key := cacheKey(factorID, bounds)

	if entry, ok := s.cache.Get(key); ok && time.Now().Before(entry.expiresAt) {
		monitoring.RecordCacheHit("l1", "poi")
		return entry.pois, nil
	}
	monitoring.RecordCacheMiss("l1", "poi")

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.queryAndCache(ctx, factorID, tags, bounds, key)
	})
	if shared {
		monitoring.RecordSingleFlightCoalesced("poi")
	}
	if err != nil {
		return nil, err
	}
	return v.([]model.POI), nil
}

func (s *Store) queryAndCache(ctx context.Context, factorID string, tags map[string]string, bounds geo.Bounds, key string) ([]model.POI, error) {
	start := time.Now()
	pois, err := s.queryFn(ctx, factorID, tags, bounds)
	monitoring.RecordPOIStoreRequest(time.Since(start), err == nil)
	if err != nil {
		slog.Error("poi store query failed", "factor", factorID, "error", err)
		return nil, core.StoreError(fmt.Sprintf("fetching POIs for factor %s: %v", factorID, err))
	}

	s.cache.Add(key, cacheEntry{pois: pois, expiresAt: time.Now().Add(cacheTTL)})
	return pois, nil
}

func (s *Store) query(ctx context.Context, factorID string, tags map[string]string, bounds geo.Bounds) ([]model.POI, error) {
	const q = `
		SELECT id, factor_id, lat, lng, name
		FROM osm_pois
		WHERE factor_id = $1
		  AND ST_Intersects(geom, ST_MakeEnvelope($2, $3, $4, $5, 4326))
	`
	rows, err := s.pool.Query(ctx, q, factorID, bounds.West, bounds.South, bounds.East, bounds.North)
	if err != nil {
		return nil, fmt.Errorf("querying osm_pois: %w", err)
	}
	defer rows.Close()

	var out []model.POI
	for rows.Next() {
		var r Record
		var name *string
		if err := rows.Scan(&r.ID, &r.FactorID, &r.Lat, &r.Lng, &name); err != nil {
			return nil, fmt.Errorf("scanning osm_pois row: %w", err)
		}
		p := model.POI{
			ID:       fmt.Sprintf("%d", r.ID),
			FactorID: r.FactorID,
			Lat:      r.Lat,
			Lng:      r.Lng,
		}
		if name != nil {
			p.Name = *name
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
