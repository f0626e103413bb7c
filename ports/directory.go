package ports

import (
	"context"

	"github.com/pollpass/vigil/core"
)

// UserDirectory is the external record store keyed by wallet address.
// Session claims and cookies are cached views of its records; the
// directory's own per-record atomicity is trusted for updates.
type UserDirectory interface {
	// Get returns the record for an address, or core.ErrNotFound.
	Get(ctx context.Context, address string) (*core.User, error)

	// Create stores a new record. Addresses are unique keys.
	Create(ctx context.Context, user *core.User) error

	// SetVerified toggles the proof-of-personhood flag on a record.
	SetVerified(ctx context.Context, address string, verified bool) error
}
