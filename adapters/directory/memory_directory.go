package directory

import (
	"context"
	"sync"

	"github.com/pollpass/vigil/core"
	"github.com/pollpass/vigil/ports"
)

// MemoryDirectory is an in-memory implementation of the UserDirectory interface
type MemoryDirectory struct {
	users map[string]core.User
	mu    sync.RWMutex
}

// NewMemoryDirectory creates a new in-memory user directory
func NewMemoryDirectory() ports.UserDirectory {
	return &MemoryDirectory{
		users: make(map[string]core.User),
	}
}

// Get returns the record for an address
func (d *MemoryDirectory) Get(ctx context.Context, address string) (*core.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	user, exists := d.users[core.NormalizeAddress(address)]
	if !exists {
		return nil, core.ErrNotFound
	}

	return &user, nil
}

// Create stores a new record keyed by its normalized address
func (d *MemoryDirectory) Create(ctx context.Context, user *core.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored := *user
	stored.Address = core.NormalizeAddress(user.Address)
	d.users[stored.Address] = stored

	return nil
}

// SetVerified toggles the proof-of-personhood flag on a record
func (d *MemoryDirectory) SetVerified(ctx context.Context, address string, verified bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := core.NormalizeAddress(address)
	user, exists := d.users[key]
	if !exists {
		return core.ErrNotFound
	}

	user.Verified = verified
	d.users[key] = user

	return nil
}
