// Package property implements the tile-shaped contract surface the (out
// of scope) property-listings pipeline needs in order to reuse the Tile
// Geometry, Tile Cache, and Request Coordinator built for heatmaps. It
// does not implement real-estate search itself — HTTPSource is a thin
// adapter over an external listings API, left unimplemented beyond the
// wire shape.
package property

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/osiedlownik/geoscore/pkg/core"
	"github.com/osiedlownik/geoscore/pkg/tiles"
)

// Transaction distinguishes sale from rental listings.
type Transaction string

const (
	TransactionSale Transaction = "sale"
	TransactionRent Transaction = "rent"
)

// Filter narrows a property-tile request: transaction type, estate types,
// price/area range, room count, and the set of data sources to query. It
// forms the property-specific half of the tile cache's fingerprint.
type Filter struct {
	Transaction Transaction `json:"transaction"`
	EstateTypes []string    `json:"estateTypes,omitempty"`
	MinPrice    float64     `json:"minPrice,omitempty"`
	MaxPrice    float64     `json:"maxPrice,omitempty"`
	MinAreaM2   float64     `json:"minAreaM2,omitempty"`
	MaxAreaM2   float64     `json:"maxAreaM2,omitempty"`
	MinRooms    int         `json:"minRooms,omitempty"`
	MaxRooms    int         `json:"maxRooms,omitempty"`
	Sources     []string    `json:"sources,omitempty"`
}

// Fingerprint renders a stable, order-independent key fragment for f,
// consumed alongside the tile's own fingerprint by pkg/tilecache.
func (f Filter) Fingerprint() string {
	estateTypes := append([]string(nil), f.EstateTypes...)
	sort.Strings(estateTypes)
	sources := append([]string(nil), f.Sources...)
	sort.Strings(sources)

	var b strings.Builder
	fmt.Fprintf(&b, "txn=%s;price=%s-%s;area=%s-%s;rooms=%d-%d;types=%s;sources=%s",
		f.Transaction,
		strconv.FormatFloat(f.MinPrice, 'f', -1, 64),
		strconv.FormatFloat(f.MaxPrice, 'f', -1, 64),
		strconv.FormatFloat(f.MinAreaM2, 'f', -1, 64),
		strconv.FormatFloat(f.MaxAreaM2, 'f', -1, 64),
		f.MinRooms, f.MaxRooms,
		strings.Join(estateTypes, ","),
		strings.Join(sources, ","),
	)
	return b.String()
}

// Listing is one property result within a tile.
type Listing struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Price    float64 `json:"price"`
	AreaM2   float64 `json:"areaM2"`
	Rooms    int     `json:"rooms"`
	URL      string  `json:"url,omitempty"`
}

// ListingsPage is the result of fetching one tile's listings.
type ListingsPage struct {
	Tile     tiles.Tile `json:"tile"`
	Listings []Listing  `json:"listings"`
}

// Source fetches one tile's listings for a filter. pkg/coordinator's
// TileFetcher is satisfied by wrapping a Source with a Filter closed over.
type Source interface {
	FetchListings(ctx context.Context, tile tiles.Tile, filter Filter) (ListingsPage, error)
}

// HTTPSource calls an external listings API over HTTP. The API's shape is
// out of scope — this adapter documents the contract (tile bounds and
// filter in, a JSON ListingsPage out) the rest of the pipeline depends on,
// using the same retrying request helper the rest of the codebase uses
// for outbound calls.
type HTTPSource struct {
	BaseURL      string
	Client       *http.Client
	RetryOptions core.RetryOptions
}

// NewHTTPSource creates an HTTPSource against baseURL using the package's
// default client and retry policy.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{BaseURL: baseURL, Client: core.DefaultClient, RetryOptions: core.DefaultRetryOptions}
}

func (s *HTTPSource) FetchListings(ctx context.Context, tile tiles.Tile, filter Filter) (ListingsPage, error) {
	bounds := tiles.TileBounds(tile)
	url := fmt.Sprintf("%s/listings?z=%d&x=%d&y=%d&north=%f&south=%f&east=%f&west=%f",
		s.BaseURL, tile.Z, tile.X, tile.Y, bounds.North, bounds.South, bounds.East, bounds.West)

	body, err := json.Marshal(filter)
	if err != nil {
		return ListingsPage{}, fmt.Errorf("encoding property filter: %w", err)
	}

	factory := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := core.WithRetryFactory(ctx, factory, s.Client, s.RetryOptions)
	if err != nil {
		return ListingsPage{}, fmt.Errorf("fetching listings for tile %v: %w", tile, err)
	}
	defer resp.Body.Close()

	var page ListingsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return ListingsPage{}, fmt.Errorf("decoding listings response: %w", err)
	}
	return page, nil
}
