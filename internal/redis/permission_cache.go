package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - perm:{user_id}:{permission} - 5m TTL, Auth service decision
// - user:{user_id} - 5m TTL, batch-resolved user names for views

// PermissionCacheConfig contains TTLs for the auth-derived caches.
type PermissionCacheConfig struct {
	PermissionTTL time.Duration
	UserTTL       time.Duration
}

func DefaultPermissionCacheConfig() PermissionCacheConfig {
	return PermissionCacheConfig{
		PermissionTTL: 5 * time.Minute,
		UserTTL:       5 * time.Minute,
	}
}

// PermissionCache caches Auth service permission decisions and resolved user
// summaries. Entries are invalidated explicitly when a user logs out or is
// deactivated; otherwise they age out on TTL.
type PermissionCache struct {
	client *goredis.Client
	config PermissionCacheConfig
}

func NewPermissionCache(client *goredis.Client, config PermissionCacheConfig) *PermissionCache {
	return &PermissionCache{client: client, config: config}
}

// GetPermission returns (allowed, found, err); found=false is a cache miss.
func (c *PermissionCache) GetPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, bool, error) {
	key := fmt.Sprintf("perm:%s:%s", userID.String(), permission)
	val, err := c.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (c *PermissionCache) SetPermission(ctx context.Context, userID uuid.UUID, permission string, allowed bool) error {
	key := fmt.Sprintf("perm:%s:%s", userID.String(), permission)
	val := "0"
	if allowed {
		val = "1"
	}
	return c.client.Set(ctx, key, val, c.config.PermissionTTL).Err()
}

// InvalidateUser drops every cached decision for a user.
func (c *PermissionCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	pattern := fmt.Sprintf("perm:%s:*", userID.String())
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	keys = append(keys, fmt.Sprintf("user:%s", userID.String()))
	return c.client.Del(ctx, keys...).Err()
}

// UserSummary is the cached subset of an Auth-service user record.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
}

func (c *PermissionCache) GetUser(ctx context.Context, userID uuid.UUID) (*UserSummary, error) {
	key := fmt.Sprintf("user:%s", userID.String())
	data, err := c.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var u UserSummary
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *PermissionCache) SetUser(ctx context.Context, u *UserSummary) error {
	key := fmt.Sprintf("user:%s", u.ID.String())
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.config.UserTTL).Err()
}

// GetUsers resolves several users at once, returning hits and the ids that
// must be fetched from the Auth service.
func (c *PermissionCache) GetUsers(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]*UserSummary, []uuid.UUID, error) {
	result := make(map[uuid.UUID]*UserSummary)
	var misses []uuid.UUID

	if len(userIDs) == 0 {
		return result, misses, nil
	}

	pipe := c.client.Pipeline()
	cmds := make(map[uuid.UUID]*goredis.StringCmd)
	for _, userID := range userIDs {
		cmds[userID] = pipe.Get(ctx, fmt.Sprintf("user:%s", userID.String()))
	}
	_, _ = pipe.Exec(ctx)

	for userID, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			misses = append(misses, userID)
			continue
		}
		var u UserSummary
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			misses = append(misses, userID)
			continue
		}
		result[userID] = &u
	}
	return result, misses, nil
}

func (c *PermissionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
