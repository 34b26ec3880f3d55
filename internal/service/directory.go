package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/PomeloX/internal/cache"
	"github.com/atinyakov/PomeloX/internal/models"
)

// DefaultUserTTL is how long remote user lookups are cached.
const DefaultUserTTL = 60 * time.Second

// directory resolves remote users, caching lookups for a short time.
type directory struct {
	upstream Upstream
	cache    cache.Cache
	ttl      time.Duration
	log      *zap.Logger
}

// self returns the user owning token.
func (d *directory) self(ctx context.Context, token string) (*models.RemoteUser, error) {
	return d.lookup(ctx, cache.UserKey("session:"+tokenDigest(token)), token, "")
}

// user returns the user with userID, fetched with the caller's token.
func (d *directory) user(ctx context.Context, token, userID string) (*models.RemoteUser, error) {
	return d.lookup(ctx, cache.UserKey(userID), token, userID)
}

func (d *directory) lookup(ctx context.Context, key, token, userID string) (*models.RemoteUser, error) {
	var u models.RemoteUser
	err := cache.GetJSON(ctx, d.cache, key, &u)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		d.log.Warn("user cache read failed", zap.String("key", key), zap.Error(err))
	}

	fetched, err := d.upstream.UserInfo(ctx, token, userID)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, d.cache, key, fetched, d.ttl); err != nil {
		d.log.Warn("user cache write failed", zap.String("key", key), zap.Error(err))
	}
	return fetched, nil
}

// tokenDigest keeps raw session tokens out of cache keys.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}
