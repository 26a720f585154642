package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaceWithFile turns the snapshot directory into a plain file so every write fails.
func replaceWithFile(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0644))
}

func TestFileStoreWriteFailureIsReported(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = s.AdjustWallet(ctx, "g", "m", Primary, 100)
	require.NoError(t, err)
	require.NoError(t, s.InsertItem(ctx, &ShopItem{ID: "ring", Name: "Ring", CostPrimary: cost(30), Type: ItemCosmetic, Stock: 2}))

	replaceWithFile(t, dir)

	_, err = s.AdjustWallet(ctx, "g", "m", Primary, 500)
	assert.ErrorIs(t, err, ErrUnavailable)
	w, err := s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Primary, "a change that was not saved must not be visible")

	assert.ErrorIs(t, s.InsertItem(ctx, &ShopItem{ID: "frame", Name: "Frame", CostPrimary: cost(5), Type: ItemCosmetic, Stock: UnlimitedStock}), ErrUnavailable)
	_, err = s.GetItem(ctx, "frame")
	assert.ErrorIs(t, err, ErrNotFound)

	expires := time.Now().Add(time.Hour)
	_, err = s.SettlePurchase(ctx, Debit{
		GuildID:     "g",
		MemberID:    "m",
		ItemID:      "ring",
		Currency:    Primary,
		Cost:        30,
		Possession:  &Possession{ID: "p1", GuildID: "g", MemberID: "m", ItemID: "ring", ExpiresAt: &expires},
		Transaction: &Transaction{ID: "t1", GuildID: "g", MemberID: "m", Kind: TxPurchase, ItemID: "ring", Amount: -30},
	})
	assert.ErrorIs(t, err, ErrUnavailable)

	w, err = s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Primary)
	item, err := s.GetItem(ctx, "ring")
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.Stock)
	possessions, err := s.ListPossessions(ctx, "g", "m")
	require.NoError(t, err)
	assert.Empty(t, possessions)
	txs, err := s.ListTransactions(ctx, "g", "m")
	require.NoError(t, err)
	assert.Empty(t, txs)
}
