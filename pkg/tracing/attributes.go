package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys used across the pipeline's spans.
const (
	AttrTileZ          = "tile.z"
	AttrTileX          = "tile.x"
	AttrTileY          = "tile.y"
	AttrTileKind       = "tile.kind"
	AttrFactorCount    = "tile.factor_count"
	AttrPointCount     = "tile.point_count"

	AttrStoreOperation = "poi_store.operation"
	AttrStoreFactor    = "poi_store.factor_id"

	AttrCacheType = "cache.type"
	AttrCacheHit  = "cache.hit"
	AttrCacheKey  = "cache.key"
	AttrCacheTier = "cache.tier"

	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"
	AttrHTTPPath       = "http.path"
	AttrHTTPRequestID  = "http.request_id"

	AttrErrorKind    = "error.kind"
	AttrErrorMessage = "error.message"
)

// Status values recorded as span/metric labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Cache tier and kind names.
const (
	CacheTierL1 = "l1"
	CacheTierL2 = "l2"

	CacheKindHeatmap = "heatmap"
	CacheKindProperty = "property"
)

// TileAttributes returns the standard attribute set for a tile-build span.
func TileAttributes(kind string, z, x, y, factorCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrTileKind, kind),
		attribute.Int(AttrTileZ, z),
		attribute.Int(AttrTileX, x),
		attribute.Int(AttrTileY, y),
		attribute.Int(AttrFactorCount, factorCount),
	}
}

// CacheAttributes returns attributes for a cache operation.
func CacheAttributes(tier string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheTier, tier),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes describing err, or nil if err is nil.
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
