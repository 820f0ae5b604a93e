package storage

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lakekeeper/catalog/internal/domain/storage"
	"github.com/lakekeeper/catalog/internal/obs"
)

// URLStyleCacheTTL bounds how long a detected URL style is cached per
// warehouse before a fresh detection is attempted.
const URLStyleCacheTTL = 10 * time.Minute

// URLStyleCache caches the resolved (virtual-host vs path) signing style
// per warehouse so Auto mode does not re-probe on every signing request.
type URLStyleCache struct {
	client *redis.Client
}

// NewURLStyleCache builds a URLStyleCache over client.
func NewURLStyleCache(client *redis.Client) *URLStyleCache {
	return &URLStyleCache{client: client}
}

func (c *URLStyleCache) key(warehouseID string) string {
	return "catalog:url-style:" + warehouseID
}

// Get returns the cached style for warehouseID, or ("", false) on a miss.
func (c *URLStyleCache) Get(ctx context.Context, warehouseID string) (storage.URLStyle, bool) {
	ctx, span := obs.Tracer(ctx).Start(ctx, "storage.urlstyle.get")
	defer span.End()

	val, err := c.client.Get(ctx, c.key(warehouseID)).Result()
	if err != nil {
		return "", false
	}

	return storage.URLStyle(val), true
}

// Set caches style for warehouseID with URLStyleCacheTTL.
func (c *URLStyleCache) Set(ctx context.Context, warehouseID string, style storage.URLStyle) error {
	ctx, span := obs.Tracer(ctx).Start(ctx, "storage.urlstyle.set")
	defer span.End()

	if err := c.client.Set(ctx, c.key(warehouseID), string(style), URLStyleCacheTTL).Err(); err != nil {
		obs.HandleSpanError(&span, "cache url style failed", err)
		return err
	}

	return nil
}

// DetectURLStyle classifies a request URL against a bucket as either
// virtual-hosted ("bucket.s3.region.amazonaws.com") or path-style
// ("s3.region.amazonaws.com/bucket").
func DetectURLStyle(requestURL, bucket string) storage.URLStyle {
	if strings.HasPrefix(requestURL, "https://"+bucket+".") || strings.HasPrefix(requestURL, "http://"+bucket+".") {
		return storage.URLStyleVirtualHost
	}

	return storage.URLStylePath
}

// ResolveURLStyle implements Auto mode: check the cache, otherwise try
// virtual-host detection first (the common case for AWS S3) and fall
// back to path-style, caching whichever one it settles on.
func (c *URLStyleCache) ResolveURLStyle(ctx context.Context, warehouseID, configured string, requestURL, bucket string) storage.URLStyle {
	if configured != string(storage.URLStyleAuto) {
		return storage.URLStyle(configured)
	}

	if style, ok := c.Get(ctx, warehouseID); ok {
		return style
	}

	style := DetectURLStyle(requestURL, bucket)

	_ = c.Set(ctx, warehouseID, style)

	return style
}
