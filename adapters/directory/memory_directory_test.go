package directory

import (
	"context"
	"testing"

	"github.com/pollpass/vigil/core"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := NewMemoryDirectory()

	t.Run("get missing returns not found", func(t *testing.T) {
		_, err := dir.Get(ctx, "0xabc")
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("create and get normalize the address", func(t *testing.T) {
		err := dir.Create(ctx, &core.User{Address: "0xAbCdEf", Name: core.TemporaryName})
		require.NoError(t, err)

		user, err := dir.Get(ctx, "0xABCDEF")
		require.NoError(t, err)
		require.Equal(t, "0xabcdef", user.Address)
		require.False(t, user.Registered())
	})

	t.Run("set verified", func(t *testing.T) {
		require.NoError(t, dir.SetVerified(ctx, "0xabcdef", true))

		user, err := dir.Get(ctx, "0xabcdef")
		require.NoError(t, err)
		require.True(t, user.Verified)
	})

	t.Run("set verified on missing record", func(t *testing.T) {
		err := dir.SetVerified(ctx, "0xmissing", true)
		require.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("registered once named", func(t *testing.T) {
		require.NoError(t, dir.Create(ctx, &core.User{Address: "0xdef", Name: "alice"}))

		user, err := dir.Get(ctx, "0xdef")
		require.NoError(t, err)
		require.True(t, user.Registered())
	})
}
