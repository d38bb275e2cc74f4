package cmd

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mharding/shopfront/audit"
	"github.com/mharding/shopfront/crypto"
	"github.com/mharding/shopfront/shop"
	"github.com/mharding/shopfront/storage/memory"
)

func newSeedStore(t *testing.T) *shop.Store {
	t.Helper()
	encoded, err := crypto.NewEncodedKey()
	require.NoError(t, err)
	cipher, err := crypto.NewFieldCipher(encoded)
	require.NoError(t, err)
	t.Cleanup(cipher.Destroy)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return shop.NewStore(memory.NewRepository(), crypto.NewFieldCodec(cipher), audit.NewRecorder(logger), logger)
}

func TestSeed(t *testing.T) {
	store := newSeedStore(t)
	ctx := context.Background()
	require.NoError(t, seed(ctx, store))

	admin, err := store.Authenticate("admin@example.com", "admin123")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	customer, err := store.Authenticate("customer@example.com", "customer123")
	require.NoError(t, err)
	assert.Equal(t, "123 Main St, City, State 12345", customer.Address)

	cats, err := store.ListCategories()
	require.NoError(t, err)
	assert.Len(t, cats, 4)

	page, err := store.SearchProducts(shop.ProductFilter{}, shop.Page{Number: 1, PerPage: 100})
	require.NoError(t, err)
	assert.Equal(t, len(seedProducts), page.Total)
}

func TestSeedIsIdempotent(t *testing.T) {
	store := newSeedStore(t)
	ctx := context.Background()
	require.NoError(t, seed(ctx, store))
	require.NoError(t, seed(ctx, store))

	cats, err := store.ListCategories()
	require.NoError(t, err)
	assert.Len(t, cats, 4)
}
