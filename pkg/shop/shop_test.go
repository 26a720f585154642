package shop

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rbrabson/chronicles/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoles struct {
	mu      sync.Mutex
	fail    error
	granted []string
	revoked []string
}

func (f *fakeRoles) GrantRole(ctx context.Context, guildID, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.granted = append(f.granted, memberID+"/"+roleID)
	return nil
}

func (f *fakeRoles) RevokeRole(ctx context.Context, guildID, memberID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.revoked = append(f.revoked, memberID+"/"+roleID)
	return nil
}

func price(v int64) *int64 {
	return &v
}

func newTestEngine(t *testing.T, now *time.Time) (*Engine, *fakeRoles, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	roles := &fakeRoles{}
	return NewEngine(s, roles, WithClock(func() time.Time { return *now })), roles, s
}

func bonusItem(id string) *store.ShopItem {
	return &store.ShopItem{
		ID:              id,
		Name:            "Eliksir",
		Description:     "Więcej doświadczenia",
		CostPrimary:     price(100),
		Type:            store.ItemOrdinaryBonus,
		BonusValue:      0.1,
		DurationSeconds: price(3600),
		Stock:           store.UnlimitedStock,
	}
}

func TestResolvePrice(t *testing.T) {
	premium := store.Premium
	primary := store.Primary
	dual := &store.ShopItem{ID: "dual", CostPrimary: price(350), CostPremium: price(10)}
	premiumOnly := &store.ShopItem{ID: "premium", CostPremium: price(10)}
	free := &store.ShopItem{ID: "free"}

	tests := []struct {
		name     string
		item     *store.ShopItem
		request  *store.Currency
		currency store.Currency
		cost     int64
		err      error
	}{
		{"default prefers primary", dual, nil, store.Primary, 350, nil},
		{"requested premium", dual, &premium, store.Premium, 10, nil},
		{"requested primary falls back", premiumOnly, &primary, store.Premium, 10, nil},
		{"no price", free, nil, "", 0, ErrNoApplicablePrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			currency, cost, err := resolvePrice(tt.item, tt.request)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.currency, currency)
			assert.Equal(t, tt.cost, cost)
		})
	}
}

func TestPurchaseDualPricingInsufficientPremium(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, _, s := newTestEngine(t, &now)

	item := bonusItem("dual")
	item.CostPrimary = price(350)
	item.CostPremium = price(10)
	require.NoError(t, engine.CreateItem(ctx, item))
	_, err := s.AdjustWallet(ctx, "g", "m", store.Premium, 5)
	require.NoError(t, err)

	premium := store.Premium
	_, err = engine.Purchase(ctx, "g", "m", "dual", &premium)
	require.ErrorIs(t, err, store.ErrInsufficientFunds)
	var funds *InsufficientFundsError
	require.True(t, errors.As(err, &funds))
	assert.Equal(t, store.Premium, funds.Currency)
	assert.Equal(t, int64(10), funds.Cost)
	assert.Equal(t, int64(5), funds.Balance)

	w, err := s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.Premium)
	possessions, err := s.ListPossessions(ctx, "g", "m")
	require.NoError(t, err)
	assert.Empty(t, possessions)
}

func TestConcurrentPurchasesSettleOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, _, s := newTestEngine(t, &now)

	require.NoError(t, engine.CreateItem(ctx, bonusItem("eliksir")))
	_, err := s.AdjustWallet(ctx, "g", "m", store.Primary, 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, rejections int
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Purchase(ctx, "g", "m", "eliksir", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, store.ErrInsufficientFunds):
				rejections++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, rejections)
	w, err := s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Primary)
}

func TestPurchaseOutOfStock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, _, s := newTestEngine(t, &now)

	item := bonusItem("limited")
	item.Stock = 1
	require.NoError(t, engine.CreateItem(ctx, item))
	_, err := s.AdjustWallet(ctx, "g", "m", store.Primary, 500)
	require.NoError(t, err)

	_, err = engine.Purchase(ctx, "g", "m", "limited", nil)
	require.NoError(t, err)
	_, err = engine.Purchase(ctx, "g", "m", "limited", nil)
	var stock *OutOfStockError
	require.True(t, errors.As(err, &stock))
	assert.ErrorIs(t, err, store.ErrOutOfStock)

	w, err := s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(400), w.Primary)

	_, err = engine.Purchase(ctx, "g", "m", "missing", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPossessionIsFrozenAtPurchase(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, _, s := newTestEngine(t, &now)

	require.NoError(t, engine.CreateItem(ctx, bonusItem("eliksir")))
	_, err := s.AdjustWallet(ctx, "g", "m", store.Primary, 100)
	require.NoError(t, err)

	settlement, err := engine.Purchase(ctx, "g", "m", "eliksir", nil)
	require.NoError(t, err)
	require.NotNil(t, settlement.Possession)
	assert.NotEmpty(t, settlement.TransactionID)

	changed := bonusItem("eliksir")
	changed.DurationSeconds = price(7200)
	changed.BonusValue = 0.5
	require.NoError(t, engine.UpdateItem(ctx, changed))

	owned, err := engine.ListActive(ctx, "g", "m")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, now.Add(time.Hour), *owned[0].ExpiresAt)
	assert.Equal(t, 0.1, owned[0].BonusValue)
	require.NotNil(t, owned[0].RemainingSeconds)
	assert.Equal(t, int64(3600), *owned[0].RemainingSeconds)

	bonus, err := engine.XPBonus(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, 0.1, bonus)

	now = now.Add(2 * time.Hour)
	owned, err = engine.ListActive(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(0), *owned[0].RemainingSeconds)
	assert.False(t, owned[0].InEffect())
	bonus, err = engine.XPBonus(ctx, "g", "m")
	require.NoError(t, err)
	assert.Zero(t, bonus)
}

func timedRole() *store.ShopItem {
	return &store.ShopItem{
		ID:              "patron",
		Name:            "Patron",
		Description:     "Rola na tydzień",
		CostPremium:     price(50),
		Type:            store.ItemTimedRole,
		RoleID:          "role-1",
		DurationSeconds: price(7 * 24 * 3600),
		Stock:           store.UnlimitedStock,
	}
}

func TestTimedRolePurchaseAndExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, roles, s := newTestEngine(t, &now)

	require.NoError(t, engine.CreateItem(ctx, timedRole()))
	_, err := s.AdjustWallet(ctx, "g", "m", store.Premium, 50)
	require.NoError(t, err)

	settlement, err := engine.Purchase(ctx, "g", "m", "patron", nil)
	require.NoError(t, err)
	assert.NoError(t, settlement.GrantError)
	require.NotNil(t, settlement.RoleGrant)
	assert.Equal(t, []string{"m/role-1"}, roles.granted)
	assert.Equal(t, int64(0), settlement.Premium)

	revoked, err := engine.ExpireRoles(ctx)
	require.NoError(t, err)
	assert.Zero(t, revoked)

	now = now.AddDate(0, 0, 8)
	revoked, err = engine.ExpireRoles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, revoked)
	assert.Equal(t, []string{"m/role-1"}, roles.revoked)

	grants, err := s.ListExpiredRoleGrants(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestRoleGrantFailureKeepsPayment(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, roles, s := newTestEngine(t, &now)
	roles.fail = errors.New("unknown member")

	require.NoError(t, engine.CreateItem(ctx, timedRole()))
	_, err := s.AdjustWallet(ctx, "g", "m", store.Premium, 60)
	require.NoError(t, err)

	settlement, err := engine.Purchase(ctx, "g", "m", "patron", nil)
	require.NoError(t, err)
	assert.Error(t, settlement.GrantError)
	assert.Equal(t, int64(10), settlement.Premium)
	require.NotNil(t, settlement.Possession)
	assert.Nil(t, settlement.RoleGrant)
	assert.NotEmpty(t, settlement.TransactionID)

	owned, err := engine.ListActive(ctx, "g", "m")
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	grants, err := s.ListExpiredRoleGrants(ctx, now.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, grants, "a role that was never granted must not be swept")
}

// recordingFailures fails every standalone write of a purchase record.
type recordingFailures struct {
	store.Store
}

func (recordingFailures) InsertPossession(ctx context.Context, p *store.Possession) error {
	return store.ErrUnavailable
}

func (recordingFailures) UpsertRoleGrant(ctx context.Context, g *store.RoleGrant) error {
	return store.ErrUnavailable
}

func (recordingFailures) InsertTransaction(ctx context.Context, tx *store.Transaction) error {
	return store.ErrUnavailable
}

func TestPurchaseRecordsAreWrittenWithTheDebit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := recordingFailures{Store: store.NewMemoryStore()}
	engine := NewEngine(s, &fakeRoles{}, WithClock(func() time.Time { return now }))

	require.NoError(t, engine.CreateItem(ctx, bonusItem("eliksir")))
	_, err := s.AdjustWallet(ctx, "g", "m", store.Primary, 100)
	require.NoError(t, err)

	settlement, err := engine.Purchase(ctx, "g", "m", "eliksir", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), settlement.Primary)

	possessions, err := s.ListPossessions(ctx, "g", "m")
	require.NoError(t, err)
	assert.Len(t, possessions, 1)
	txs, err := s.ListTransactions(ctx, "g", "m")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(-100), txs[0].Amount)
	assert.Equal(t, int64(0), txs[0].PrimaryAfter)
}

func TestFailedSettlementKeepsTheMoney(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)
	engine := NewEngine(s, &fakeRoles{}, WithClock(func() time.Time { return now }))

	item := bonusItem("eliksir")
	item.Stock = 1
	require.NoError(t, engine.CreateItem(ctx, item))
	_, err = s.AdjustWallet(ctx, "g", "m", store.Primary, 100)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0644))

	_, err = engine.Purchase(ctx, "g", "m", "eliksir", nil)
	require.ErrorIs(t, err, store.ErrUnavailable)

	w, err := s.GetWallet(ctx, "g", "m")
	require.NoError(t, err)
	assert.Equal(t, int64(100), w.Primary)
	stocked, err := engine.GetItem(ctx, "eliksir")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stocked.Stock)
	possessions, err := s.ListPossessions(ctx, "g", "m")
	require.NoError(t, err)
	assert.Empty(t, possessions)

	require.NoError(t, os.Remove(dir))
	require.NoError(t, os.Mkdir(dir, 0755))
	settlement, err := engine.Purchase(ctx, "g", "m", "eliksir", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), settlement.Primary)
}

func TestItemValidation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newTestEngine(t, &now)

	tests := []struct {
		name   string
		mutate func(*store.ShopItem)
		field  string
	}{
		{"missing id", func(i *store.ShopItem) { i.ID = "" }, "id"},
		{"id with spaces", func(i *store.ShopItem) { i.ID = "a b" }, "id"},
		{"missing name", func(i *store.ShopItem) { i.Name = " " }, "name"},
		{"missing description", func(i *store.ShopItem) { i.Description = "" }, "description"},
		{"unknown type", func(i *store.ShopItem) { i.Type = "potion" }, "item_type"},
		{"no price", func(i *store.ShopItem) { i.CostPrimary = nil }, "cost"},
		{"negative price", func(i *store.ShopItem) { i.CostPrimary = price(-1) }, "cost_primary"},
		{"role on a bonus", func(i *store.ShopItem) { i.RoleID = "r" }, "role_id_to_grant"},
		{"negative stock", func(i *store.ShopItem) { i.Stock = -2 }, "stock"},
		{"zero duration", func(i *store.ShopItem) { i.DurationSeconds = price(0) }, "duration_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := bonusItem("eliksir")
			tt.mutate(item)
			err := engine.CreateItem(ctx, item)
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	role := timedRole()
	role.RoleID = ""
	assert.ErrorIs(t, engine.CreateItem(ctx, role), ErrValidation)
}

func TestCatalogCRUD(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newTestEngine(t, &now)

	require.NoError(t, engine.CreateItem(ctx, bonusItem("b")))
	require.NoError(t, engine.CreateItem(ctx, bonusItem("a")))
	assert.ErrorIs(t, engine.CreateItem(ctx, bonusItem("a")), store.ErrConflict)
	assert.ErrorIs(t, engine.UpdateItem(ctx, bonusItem("c")), store.ErrNotFound)

	items, err := engine.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)

	require.NoError(t, engine.DeleteItem(ctx, "a"))
	_, err = engine.GetItem(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, engine.DeleteItem(ctx, "a"), store.ErrNotFound)
}

func TestSeedKeepsExistingItems(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newTestEngine(t, &now)

	edited := bonusItem("a")
	edited.Name = "Edited"
	require.NoError(t, engine.CreateItem(ctx, edited))

	require.NoError(t, engine.Seed(ctx, []store.ShopItem{*bonusItem("a"), *bonusItem("b")}))
	item, err := engine.GetItem(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Edited", item.Name)
	_, err = engine.GetItem(ctx, "b")
	assert.NoError(t, err)
}
