package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"shop_back_end/internal/auth"
)

// TokenRevoker stores revoked token ids and per-user cutoffs in Redis. Keys
// expire with the tokens they cover.
type TokenRevoker struct {
	client *redis.Client
	now    func() time.Time
}

var _ auth.Revoker = (*TokenRevoker)(nil)

func NewTokenRevoker(client *redis.Client) *TokenRevoker {
	return &TokenRevoker{client: client, now: time.Now}
}

func blacklistKey(tokenID string) string { return fmt.Sprintf("blacklist:%s", tokenID) }

func cutoffKey(userID string) string { return fmt.Sprintf("revoked_before:%s", userID) }

// Revoke blacklists a token until it would have expired anyway.
func (r *TokenRevoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(r.client.Set(ctx, blacklistKey(tokenID), "revoked", ttl).Err(), "blacklisting token")
}

// RevokeIssuedBefore invalidates every token of userID issued before cutoff.
// ttl should be the token lifetime.
func (r *TokenRevoker) RevokeIssuedBefore(ctx context.Context, userID string, cutoff time.Time, ttl time.Duration) error {
	err := r.client.Set(ctx, cutoffKey(userID), cutoff.Unix(), ttl).Err()
	return errors.Wrap(err, "storing revocation cutoff")
}

func (r *TokenRevoker) IsRevoked(ctx context.Context, id auth.Identity) (bool, error) {
	pipe := r.client.Pipeline()
	blacklisted := pipe.Exists(ctx, blacklistKey(id.TokenID))
	cutoff := pipe.Get(ctx, cutoffKey(id.UserID.Hex()))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, errors.Wrap(err, "checking token revocation")
	}

	if blacklisted.Val() > 0 {
		return true, nil
	}
	raw, err := cutoff.Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "reading revocation cutoff")
	}
	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, errors.Wrap(err, "parsing revocation cutoff")
	}
	return id.IssuedAt.Unix() < unix, nil
}
