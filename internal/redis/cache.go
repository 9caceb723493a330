package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Cache key pattern:
// - helplist:{page}:{limit} - short TTL, admin conversation list page

// AdminListCache absorbs bursts of admin dashboard polling against the
// conversation list. Entries expire by TTL only; a delete actively drops all
// list pages since a vanished conversation should not linger in summaries.
type AdminListCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewAdminListCache creates a cache with the given TTL (a few seconds).
func NewAdminListCache(client *goredis.Client, ttl time.Duration) *AdminListCache {
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &AdminListCache{client: client, ttl: ttl}
}

func listKey(page, limit int) string {
	return fmt.Sprintf("helplist:%d:%d", page, limit)
}

// Get retrieves a cached list page. A miss returns ok=false with no error.
func (c *AdminListCache) Get(ctx context.Context, page, limit int, dest any) (bool, error) {
	data, err := c.client.Get(ctx, listKey(page, limit)).Result()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a list page under the cache TTL.
func (c *AdminListCache) Set(ctx context.Context, page, limit int, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, listKey(page, limit), data, c.ttl).Err()
}

// InvalidateAll removes every cached list page.
func (c *AdminListCache) InvalidateAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "helplist:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}
