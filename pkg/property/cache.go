package property

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/osiedlownik/geoscore/pkg/tilecache"
	"github.com/osiedlownik/geoscore/pkg/tiles"
)

// Cache wraps the shared tile cache for property listings, keyed with
// kind="property" and the documented 1000-entry/12h budget.
type Cache struct {
	cache  *tilecache.Cache
	source Source
}

// NewCache creates a Cache backed by l2 (nil disables L2) fetching misses
// from source.
func NewCache(l2 tilecache.L2, source Source) (*Cache, error) {
	c, err := tilecache.New(tilecache.KindProperty, l2)
	if err != nil {
		return nil, fmt.Errorf("creating property cache: %w", err)
	}
	return &Cache{cache: c, source: source}, nil
}

// Get returns the listings page for tile and filter, building it via the
// configured Source on a miss.
func (c *Cache) Get(ctx context.Context, tile tiles.Tile, filter Filter) (ListingsPage, error) {
	key := tilecache.Key{
		Kind:        tilecache.KindProperty,
		Z:           tile.Z,
		X:           tile.X,
		Y:           tile.Y,
		Fingerprint: filter.Fingerprint(),
	}

	data, err := c.cache.Get(ctx, key, func(ctx context.Context) ([]byte, error) {
		page, err := c.source.FetchListings(ctx, tile, filter)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(page); err != nil {
			return nil, fmt.Errorf("encoding listings page: %w", err)
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		return ListingsPage{}, err
	}

	var page ListingsPage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&page); err != nil {
		return ListingsPage{}, fmt.Errorf("decoding cached listings page: %w", err)
	}
	return page, nil
}
