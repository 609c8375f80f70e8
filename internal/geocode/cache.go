package geocode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"leadrouter_backend/internal/geo"

	"github.com/redis/go-redis/v9"
)

// Cache stores provider results so repeated leads from the same ZIP do
// not re-hit the external service. A nil Cache disables caching.
type Cache interface {
	Get(ctx context.Context, zip string) (geo.Coordinates, bool)
	Set(ctx context.Context, zip string, coords geo.Coordinates)
}

// RedisCache caches provider results in redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a redis-backed geocode cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(zip string) string {
	return "geocode:zip:" + zip
}

// Get returns a cached coordinate pair. Cache errors are treated as misses.
func (c *RedisCache) Get(ctx context.Context, zip string) (geo.Coordinates, bool) {
	raw, err := c.client.Get(ctx, cacheKey(zip)).Result()
	if err != nil {
		return geo.Coordinates{}, false
	}

	parts := strings.SplitN(raw, ",", 2)
	if len(parts) != 2 {
		return geo.Coordinates{}, false
	}

	lat, errLat := strconv.ParseFloat(parts[0], 64)
	lon, errLon := strconv.ParseFloat(parts[1], 64)
	if errLat != nil || errLon != nil {
		return geo.Coordinates{}, false
	}

	return geo.Coordinates{Latitude: lat, Longitude: lon}, true
}

// Set stores a coordinate pair. Failures are ignored; the cache is advisory.
func (c *RedisCache) Set(ctx context.Context, zip string, coords geo.Coordinates) {
	value := fmt.Sprintf("%.6f,%.6f", coords.Latitude, coords.Longitude)
	_ = c.client.Set(ctx, cacheKey(zip), value, c.ttl).Err()
}
