// Package rediscache keeps the id to username mapping of followers in Redis
// so that users who vanished from the network can still be named.
package rediscache

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"unfollowninja/internal/model"
)

// UsernameKeyPrefix identifies username entries in Redis. Entries never expire.
const UsernameKeyPrefix = "username:"

// Cache stores follower usernames in Redis.
type Cache struct {
	client rueidis.Client
	logger *zap.Logger
}

// New wraps an existing rueidis client.
func New(client rueidis.Client, logger *zap.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger.Named("username_cache"),
	}
}

// Dial connects to the Redis server at addr.
func Dial(addr string, logger *zap.Logger) (*Cache, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return New(client, logger), nil
}

// Close releases the underlying client.
func (c *Cache) Close() { c.client.Close() }

// CachedUsername returns the last known username of id, or "" on a miss.
func (c *Cache) CachedUsername(ctx context.Context, id string) (string, error) {
	name, err := c.client.Do(ctx, c.client.B().Get().Key(UsernameKeyPrefix+id).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}
		c.logger.Warn("Failed to get username from Redis",
			zap.String("userID", id),
			zap.Error(err))
		return "", fmt.Errorf("failed to get username for user %s: %w", id, err)
	}
	return name, nil
}

// CacheUsernames records the usernames of users.
// Users without an id or username are skipped.
func (c *Cache) CacheUsernames(ctx context.Context, users []model.User) error {
	cmds := make(rueidis.Commands, 0, len(users))
	for _, u := range users {
		if u.ID == "" || u.Username == "" {
			continue
		}
		cmds = append(cmds, c.client.B().Set().Key(UsernameKeyPrefix+u.ID).Value(u.Username).Build())
	}
	if len(cmds) == 0 {
		return nil
	}
	for _, resp := range c.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			c.logger.Warn("Failed to cache usernames in Redis", zap.Error(err))
			return fmt.Errorf("failed to cache usernames: %w", err)
		}
	}
	c.logger.Debug("Cached usernames", zap.Int("count", len(cmds)))
	return nil
}
