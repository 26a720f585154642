package shop

import (
	"errors"
	"testing"
	"time"

	"github.com/rbrabson/chronicles/pkg/msg"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
	"github.com/stretchr/testify/assert"
)

func cost(v int64) *int64 { return &v }

func TestPrice(t *testing.T) {
	p := msg.PrinterFor("en-US")
	item := &store.ShopItem{ID: "boost", CostPrimary: cost(1500), CostPremium: cost(10)}
	assert.Equal(t, "1,500 Dukaty / 10 Gwiezdne Kryształy", price(p, item))

	item.CostPrimary = nil
	assert.Equal(t, "10 Gwiezdne Kryształy", price(p, item))
}

func TestDescribeItem(t *testing.T) {
	p := msg.PrinterFor("en-US")
	field := describeItem(p, &store.ShopItem{
		ID: "boost", Name: "Boost", Description: "Więcej XP", Emoji: "✨",
		CostPrimary: cost(200), DurationSeconds: cost(3600), Stock: 3,
	})
	assert.Contains(t, field.Name, "`boost`")
	assert.Contains(t, field.Value, "1 godzina")
	assert.Contains(t, field.Value, "pozostało: 3")
}

func TestErrorMessage(t *testing.T) {
	p := msg.PrinterFor("en-US")
	funds := &shop.InsufficientFundsError{Currency: store.Premium, Balance: 3, Cost: 10}
	assert.Contains(t, errorMessage(p, funds), "masz 3 Gwiezdne Kryształy")
	assert.Contains(t, errorMessage(p, &shop.OutOfStockError{ItemID: "x"}), "wyprzedany")
	assert.Contains(t, errorMessage(p, store.ErrNotFound), "/shop list")
	assert.Contains(t, errorMessage(p, errors.New("boom")), "Coś poszło nie tak")
}

func TestFormatInventory(t *testing.T) {
	p := msg.PrinterFor("en-US")
	left := int64(1800)
	gone := int64(0)
	owned := []*shop.Owned{
		{Possession: &store.Possession{ItemID: "boost", BonusValue: 0.25}, RemainingSeconds: &left},
		{Possession: &store.Possession{ItemID: "old"}, RemainingSeconds: &gone},
		{Possession: &store.Possession{ItemID: "frame"}},
	}
	out := formatInventory(p, owned, map[string]string{"boost": "Boost", "old": "Stary", "frame": "Ramka"})
	assert.Contains(t, out, "Boost")
	assert.Contains(t, out, "+25% XP")
	assert.Contains(t, out, "30 minut")
	assert.Contains(t, out, "na zawsze")
	assert.NotContains(t, out, "Stary")

	assert.Equal(t, "Nie masz żadnych aktywnych przedmiotów.", formatInventory(p, nil, nil))
}

func TestPurchaseMessage(t *testing.T) {
	p := msg.PrinterFor("en-US")
	expires := time.Unix(1700000000, 0)
	out := purchaseMessage(p, "Rola", &shop.Settlement{
		Currency: store.Primary, Cost: 500, ExpiresAt: &expires, GrantError: errors.New("missing permission"),
	})
	assert.Contains(t, out, "<t:1700000000:R>")
	assert.Contains(t, out, "Nie udało się")
}
