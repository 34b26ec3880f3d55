// Package cache provides a small TTL key/value store backed by Redis or by
// process memory.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get for absent or expired keys.
var ErrMiss = errors.New("cache miss")

// Cache stores opaque values with a time to live. A non-positive ttl keeps
// the value until it is deleted.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key namespaces.
const (
	prefixActivity = "pomelox:activity:"
	prefixUser     = "pomelox:user:"
	prefixRevoked  = "pomelox:revoked:"
)

// ActivityKey is the key of a decoded activity hash.
func ActivityKey(hash string) string { return prefixActivity + hash }

// UserKey is the key of a cached remote user lookup.
func UserKey(userID string) string { return prefixUser + userID }

// RevokedKey is the key marking a signed token ID as revoked.
func RevokedKey(jti string) string { return prefixRevoked + jti }

// GetJSON loads key into out.
func GetJSON(ctx context.Context, c Cache, key string, out any) error {
	b, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.Set(ctx, key, b, ttl)
}
