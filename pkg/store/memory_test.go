package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cost(v int64) *int64 { return &v }

func TestWalletNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	w, err := s.AdjustWallet(ctx, "g", "m", Primary, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Primary)

	_, err = s.AdjustWallet(ctx, "g", "m", Primary, -101)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	w, err = s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Primary)
	assert.Equal(t, int64(0), w.Premium)

	_, err = s.SetWallet(ctx, "g", "m", Premium, -1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSettlePurchaseIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertItem(ctx, &ShopItem{ID: "ring", Name: "Ring", CostPrimary: cost(30), Type: ItemCosmetic, Stock: 1}))
	_, err := s.AdjustWallet(ctx, "g", "m", Primary, 20)
	require.NoError(t, err)

	_, err = s.SettlePurchase(ctx, Debit{GuildID: "g", MemberID: "m", ItemID: "ring", Currency: Primary, Cost: 30})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	item, err := s.GetItem(ctx, "ring")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Stock, "stock must not change when the debit fails")

	_, err = s.AdjustWallet(ctx, "g", "m", Primary, 100)
	require.NoError(t, err)
	w, err := s.SettlePurchase(ctx, Debit{GuildID: "g", MemberID: "m", ItemID: "ring", Currency: Primary, Cost: 30})
	require.NoError(t, err)
	assert.Equal(t, int64(90), w.Primary)

	_, err = s.SettlePurchase(ctx, Debit{GuildID: "g", MemberID: "m", ItemID: "ring", Currency: Primary, Cost: 30})
	assert.ErrorIs(t, err, ErrOutOfStock)
	w, err = s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(90), w.Primary)

	_, err = s.SettlePurchase(ctx, Debit{GuildID: "g", MemberID: "m", ItemID: "missing", Currency: Primary, Cost: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentSettlementNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertItem(ctx, &ShopItem{ID: "badge", Name: "Badge", CostPrimary: cost(1), Type: ItemOther, Stock: 5}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	sold := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			_, _ = s.AdjustWallet(ctx, "g", member, Primary, 10)
			if _, err := s.SettlePurchase(ctx, Debit{GuildID: "g", MemberID: member, ItemID: "badge", Currency: Primary, Cost: 1}); err == nil {
				mu.Lock()
				sold++
				mu.Unlock()
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	assert.Equal(t, 5, sold)
	item, err := s.GetItem(ctx, "badge")
	require.NoError(t, err)
	assert.Equal(t, int64(0), item.Stock)
}

func TestInsertCompletionOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	start := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	c := &MissionCompletion{GuildID: "g", MemberID: "m", MissionID: "weekly", CycleStart: start, CompletedAt: start}

	inserted, err := s.InsertCompletion(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = s.InsertCompletion(ctx, c)
	require.NoError(t, err)
	assert.False(t, inserted)

	next := *c
	next.CycleStart = start.AddDate(0, 0, 7)
	inserted, err = s.InsertCompletion(ctx, &next)
	require.NoError(t, err)
	assert.True(t, inserted)

	exists, err := s.CompletionExists(ctx, CompletionKey("g", "m", "weekly", false, start))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRecordActiveDay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC)

	streak, err := s.RecordActiveDay(ctx, "g", "m", day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), streak)

	streak, _ = s.RecordActiveDay(ctx, "g", "m", day.Add(time.Hour))
	assert.Equal(t, int64(1), streak)

	streak, _ = s.RecordActiveDay(ctx, "g", "m", day.AddDate(0, 0, 1))
	assert.Equal(t, int64(2), streak)

	streak, _ = s.RecordActiveDay(ctx, "g", "m", day.AddDate(0, 0, 4))
	assert.Equal(t, int64(1), streak)
}

func TestTouchCooldown(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

	ok, _, err := s.TouchCooldown(ctx, "g", "m", "daily", now, 22*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, next, err := s.TouchCooldown(ctx, "g", "m", "daily", now.Add(time.Hour), 22*time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, now.Add(22*time.Hour), next)

	ok, _, _ = s.TouchCooldown(ctx, "g", "m", "daily", now.Add(22*time.Hour), 22*time.Hour)
	assert.True(t, ok)
}

func TestRaiseLevel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	previous, err := s.RaiseLevel(ctx, "g", "m", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), previous)

	previous, _ = s.RaiseLevel(ctx, "g", "m", 2)
	assert.Equal(t, int64(3), previous)

	stats, _ := s.GetStats(ctx, "g", "m")
	assert.Equal(t, int64(3), stats.Level)
}

func TestTransactionExternalIDIsUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertTransaction(ctx, &Transaction{ID: "1", GuildID: "g", MemberID: "m", ExternalID: "pay-1"}))
	assert.ErrorIs(t, s.InsertTransaction(ctx, &Transaction{ID: "2", GuildID: "g", MemberID: "m", ExternalID: "pay-1"}), ErrConflict)
	assert.NoError(t, s.InsertTransaction(ctx, &Transaction{ID: "3", GuildID: "g", MemberID: "m"}))
	assert.NoError(t, s.InsertTransaction(ctx, &Transaction{ID: "4", GuildID: "g", MemberID: "m"}))
}

func TestFileStoreRestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = s.AdjustWallet(ctx, "g", "m", Premium, 7)
	require.NoError(t, err)
	require.NoError(t, s.InsertItem(ctx, &ShopItem{ID: "frame", Name: "Frame", CostPremium: cost(5), Type: ItemCosmetic, Stock: UnlimitedStock}))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	w, err := reopened.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(7), w.Premium)
	item, err := reopened.GetItem(ctx, "frame")
	require.NoError(t, err)
	assert.Equal(t, "Frame", item.Name)
}

func TestSettlePurchaseWritesRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertItem(ctx, &ShopItem{ID: "patron", Name: "Patron", CostPremium: cost(15), Type: ItemTimedRole, RoleID: "r", Stock: UnlimitedStock}))
	_, err := s.AdjustWallet(ctx, "g", "m", Premium, 20)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(time.Hour)
	tx := &Transaction{ID: "t1", GuildID: "g", MemberID: "m", Kind: TxPurchase, ItemID: "patron", Currency: Premium, Amount: -15, CreatedAt: now}
	w, err := s.SettlePurchase(ctx, Debit{
		GuildID:     "g",
		MemberID:    "m",
		ItemID:      "patron",
		Currency:    Premium,
		Cost:        15,
		Possession:  &Possession{ID: "p1", GuildID: "g", MemberID: "m", ItemID: "patron", PurchasedAt: now, ExpiresAt: &expires},
		RoleGrant:   &RoleGrant{GuildID: "g", MemberID: "m", RoleID: "r", ItemID: "patron", GrantedAt: now, ExpiresAt: expires},
		Transaction: tx,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.Premium)

	possessions, err := s.ListPossessions(ctx, "g", "m")
	require.NoError(t, err)
	require.Len(t, possessions, 1)
	assert.Equal(t, "p1", possessions[0].ID)

	grants, err := s.ListExpiredRoleGrants(ctx, expires)
	require.NoError(t, err)
	assert.Len(t, grants, 1)

	txs, err := s.ListTransactions(ctx, "g", "m")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(5), txs[0].PremiumAfter)
}

func TestRaiseProgressNeverLowers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	key := ProgressKey{GuildID: "g", MemberID: "m", MissionID: "level", Condition: "level_reached"}

	p, err := s.RaiseProgress(ctx, key, 3, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Value)
	p, err = s.RaiseProgress(ctx, key, 2, now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.Value)
	p, err = s.RaiseProgress(ctx, key, 5, now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Value)
}
