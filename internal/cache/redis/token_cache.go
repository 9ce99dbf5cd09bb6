package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// TokenCache implements domain.TokenCache using Redis string values with
// JSON-serialized mappings.
//
// Key schema:
//
//	token:{tokenID} - JSON TokenMapping
//
// Token ids are deterministically derived at market creation and never
// remapped, so entries carry no TTL and are never invalidated.
type TokenCache struct {
	rdb *redis.Client
}

// NewTokenCache creates a TokenCache backed by the given Client.
func NewTokenCache(c *Client) *TokenCache {
	return &TokenCache{rdb: c.Underlying()}
}

func tokenKey(tokenID string) string { return "token:" + tokenID }

// Set stores a token mapping.
func (tc *TokenCache) Set(ctx context.Context, m domain.TokenMapping) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal mapping for token %s: %w", m.TokenID, err)
	}
	if err := tc.rdb.Set(ctx, tokenKey(m.TokenID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set mapping for token %s: %w", m.TokenID, err)
	}
	return nil
}

// Get retrieves the mapping for a token id. It returns domain.ErrNotFound
// when the key does not exist.
func (tc *TokenCache) Get(ctx context.Context, tokenID string) (domain.TokenMapping, error) {
	data, err := tc.rdb.Get(ctx, tokenKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.TokenMapping{}, domain.ErrNotFound
		}
		return domain.TokenMapping{}, fmt.Errorf("redis: get mapping for token %s: %w", tokenID, err)
	}

	var m domain.TokenMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.TokenMapping{}, fmt.Errorf("redis: unmarshal mapping for token %s: %w", tokenID, err)
	}
	return m, nil
}

// Compile-time interface check.
var _ domain.TokenCache = (*TokenCache)(nil)
