package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/ports"
	"github.com/redis/go-redis/v9"
)

// RedisDirectory is a Redis implementation of the UserDirectory interface
type RedisDirectory struct {
	client *redis.Client
	prefix string
}

// NewRedisDirectory creates a new Redis user directory
func NewRedisDirectory(client *redis.Client) ports.UserDirectory {
	return &RedisDirectory{
		client: client,
		prefix: "vigil:user:",
	}
}

// Get returns the record stored under the normalized address
func (d *RedisDirectory) Get(ctx context.Context, address string) (*core.User, error) {
	key := d.prefix + core.NormalizeAddress(address)

	raw, err := d.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user record: %w", err)
	}

	var user core.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}

	return &user, nil
}

// Create stores a new record as JSON keyed by its normalized address
func (d *RedisDirectory) Create(ctx context.Context, user *core.User) error {
	stored := *user
	stored.Address = core.NormalizeAddress(user.Address)

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}

	key := d.prefix + stored.Address
	if err := d.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store user record: %w", err)
	}

	return nil
}

// SetVerified re-writes the record with the verification flag updated.
// Per-record atomicity is the directory's contract; no extra locking here.
func (d *RedisDirectory) SetVerified(ctx context.Context, address string, verified bool) error {
	user, err := d.Get(ctx, address)
	if err != nil {
		return err
	}

	user.Verified = verified

	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}

	key := d.prefix + core.NormalizeAddress(address)
	if err := d.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to update user record: %w", err)
	}

	return nil
}
