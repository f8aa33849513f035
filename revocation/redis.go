package revocation

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gatekeep/go-jwt-gate/core"
)

// DefaultRedisKey is the set holding revoked entries.
const DefaultRedisKey = "jwtgate:revoked"

// RedisList keeps revoked entries in a Redis set so that several gate
// instances share one list.
type RedisList struct {
	client redis.UniversalClient
	key    string
}

// NewRedisList uses the set at key, or DefaultRedisKey when key is empty.
func NewRedisList(client redis.UniversalClient, key string) *RedisList {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisList{client: client, key: key}
}

// Revoke adds entries to the set.
func (r *RedisList) Revoke(ctx context.Context, entries ...string) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]any, len(entries))
	for i, entry := range entries {
		members[i] = entry
	}
	if err := r.client.SAdd(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("failed to revoke: %w", err)
	}
	return nil
}

// Unrevoke removes entries from the set.
func (r *RedisList) Unrevoke(ctx context.Context, entries ...string) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]any, len(entries))
	for i, entry := range entries {
		members[i] = entry
	}
	if err := r.client.SRem(ctx, r.key, members...).Err(); err != nil {
		return fmt.Errorf("failed to unrevoke: %w", err)
	}
	return nil
}

// Len returns the size of the set.
func (r *RedisList) Len(ctx context.Context) (int64, error) {
	return r.client.SCard(ctx, r.key).Result()
}

// IsRevoked implements core.RevocationChecker. Both the raw token and the
// jti are checked in one round trip.
func (r *RedisList) IsRevoked(ctx context.Context, token string, claims *core.ClaimSet) (bool, error) {
	values := candidates(token, claims)

	pipe := r.client.Pipeline()
	cmds := make([]*redis.BoolCmd, len(values))
	for i, value := range values {
		cmds[i] = pipe.SIsMember(ctx, r.key, value)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to query revocation set %s: %w", r.key, err)
	}

	for _, cmd := range cmds {
		if cmd.Val() {
			return true, nil
		}
	}
	return false, nil
}
