package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rbrabson/chronicles/pkg/metrics"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

var errNoRoleGateway = errors.New("no platform connection to grant roles")

// Settlement is the outcome of a successful purchase.
type Settlement struct {
	ItemID        string            `json:"item_purchased"`
	Currency      store.Currency    `json:"currency"`
	Cost          int64             `json:"cost"`
	Primary       int64             `json:"new_balance_primary"`
	Premium       int64             `json:"new_balance_premium"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	Possession    *store.Possession `json:"possession,omitempty"`
	RoleGrant     *store.RoleGrant  `json:"role_grant,omitempty"`
	TransactionID string            `json:"transaction_id"`
	// GrantError is set when the payment went through but the role could not be granted.
	GrantError error `json:"-"`
}

// resolvePrice picks the currency to charge. A requested currency the item is priced in wins,
// otherwise the primary price is preferred over the premium one.
func resolvePrice(item *store.ShopItem, requested *store.Currency) (store.Currency, int64, error) {
	if requested != nil {
		if cost, ok := item.Cost(*requested); ok {
			return *requested, cost, nil
		}
	}
	for _, c := range []store.Currency{store.Primary, store.Premium} {
		if cost, ok := item.Cost(c); ok {
			return c, cost, nil
		}
	}
	return "", 0, fmt.Errorf("%w: %q", ErrNoApplicablePrice, item.ID)
}

// Purchase buys one unit of the item for the member. The debit, the stock decrement and the
// purchase records are applied atomically. A role that cannot be granted afterwards does not
// undo the payment and is reported through Settlement.GrantError.
func (e *Engine) Purchase(ctx context.Context, guildID, memberID, itemID string, currency *store.Currency) (*Settlement, error) {
	log.Trace("--> Purchase")
	defer log.Trace("<-- Purchase")

	settlement, err := e.purchase(ctx, guildID, memberID, itemID, currency)
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, store.ErrInsufficientFunds):
			result = "insufficient_funds"
		case errors.Is(err, store.ErrOutOfStock):
			result = "out_of_stock"
		case errors.Is(err, store.ErrNotFound):
			result = "not_found"
		case errors.Is(err, ErrNoApplicablePrice):
			result = "no_price"
		}
		label := ""
		if currency != nil {
			label = string(*currency)
		}
		metrics.Purchases.WithLabelValues(label, result).Inc()
		return nil, err
	}

	result := "success"
	if settlement.GrantError != nil {
		result = "degraded"
	}
	metrics.Purchases.WithLabelValues(string(settlement.Currency), result).Inc()
	return settlement, nil
}

func (e *Engine) purchase(ctx context.Context, guildID, memberID, itemID string, requested *store.Currency) (*Settlement, error) {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("shop item %q: %w", itemID, err)
	}
	if !item.Type.Valid() {
		return nil, &ValidationError{Field: "item_type", Reason: fmt.Sprintf("%q is not a known item type", item.Type)}
	}
	currency, cost, err := resolvePrice(item, requested)
	if err != nil {
		return nil, err
	}
	if item.Stock != store.UnlimitedStock && item.Stock <= 0 {
		return nil, &OutOfStockError{ItemID: item.ID, Stock: item.Stock}
	}
	wallet, err := e.store.GetWallet(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	if balance := wallet.Balance(currency); balance < cost {
		return nil, &InsufficientFundsError{Currency: currency, Balance: balance, Cost: cost}
	}

	now := e.now()
	debit := store.Debit{
		GuildID:  guildID,
		MemberID: memberID,
		ItemID:   item.ID,
		Currency: currency,
		Cost:     cost,
		Transaction: &store.Transaction{
			ID:        uuid.NewString(),
			GuildID:   guildID,
			MemberID:  memberID,
			Kind:      store.TxPurchase,
			ItemID:    item.ID,
			Currency:  currency,
			Amount:    -cost,
			CreatedAt: now,
		},
	}
	s := &Settlement{ItemID: item.ID, Currency: currency, Cost: cost}
	if d := item.Duration(); d > 0 {
		expiresAt := now.Add(d)
		s.ExpiresAt = &expiresAt
	}
	debit.Possession = &store.Possession{
		ID:          uuid.NewString(),
		GuildID:     guildID,
		MemberID:    memberID,
		ItemID:      item.ID,
		PurchasedAt: now,
		ExpiresAt:   s.ExpiresAt,
		BonusType:   item.Type,
		BonusValue:  item.BonusValue,
	}
	if item.Type == store.ItemTimedRole && s.ExpiresAt != nil {
		debit.RoleGrant = &store.RoleGrant{
			GuildID:   guildID,
			MemberID:  memberID,
			RoleID:    item.RoleID,
			ItemID:    item.ID,
			GrantedAt: now,
			ExpiresAt: *s.ExpiresAt,
		}
	}

	wallet, err = e.store.SettlePurchase(ctx, debit)
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		// Another purchase spent the money between the check and the settlement.
		balance := int64(0)
		if w, rerr := e.store.GetWallet(ctx, guildID, memberID); rerr == nil {
			balance = w.Balance(currency)
		}
		return nil, &InsufficientFundsError{Currency: currency, Balance: balance, Cost: cost}
	case errors.Is(err, store.ErrOutOfStock):
		return nil, &OutOfStockError{ItemID: item.ID}
	case err != nil:
		return nil, fmt.Errorf("settling purchase of %q: %w", item.ID, err)
	}
	s.Primary, s.Premium = wallet.Primary, wallet.Premium
	s.Possession = debit.Possession
	s.RoleGrant = debit.RoleGrant
	s.TransactionID = debit.Transaction.ID

	if item.Type == store.ItemTimedRole {
		e.grant(ctx, item, s)
	}

	log.WithFields(log.Fields{
		"guild":    guildID,
		"member":   memberID,
		"item":     item.ID,
		"currency": currency,
		"cost":     cost,
	}).Info("purchase settled")
	return s, nil
}

// grant gives the member the purchased role. A failure leaves the payment in place and is
// reported through the settlement. The grant record is dropped so the sweep never revokes it.
func (e *Engine) grant(ctx context.Context, item *store.ShopItem, s *Settlement) {
	p := s.Possession
	err := e.grantRole(ctx, p.GuildID, p.MemberID, item.RoleID)
	if err == nil {
		return
	}
	metrics.RoleGrantFailures.Inc()
	log.WithFields(log.Fields{"guild": p.GuildID, "member": p.MemberID, "item": item.ID, "role": item.RoleID, "error": err}).Warn("purchase settled but the role could not be granted")
	s.GrantError = err
	if s.RoleGrant == nil {
		return
	}
	if derr := e.store.DeleteRoleGrant(ctx, s.RoleGrant); derr != nil {
		log.WithFields(log.Fields{"guild": p.GuildID, "member": p.MemberID, "role": item.RoleID, "error": derr}).Error("failed to drop the grant of a role that was not granted")
	}
	s.RoleGrant = nil
}

func (e *Engine) grantRole(ctx context.Context, guildID, memberID, roleID string) error {
	if e.roles == nil {
		return errNoRoleGateway
	}
	return e.roles.GrantRole(ctx, guildID, memberID, roleID)
}
