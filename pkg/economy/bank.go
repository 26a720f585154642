package economy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// LevelUp describes a level change caused by an experience gain.
type LevelUp struct {
	Previous int64
	Current  int64
	Reward   int64
}

// Balance returns the member's wallet, creating an empty one if needed.
func (b *Bank) Balance(ctx context.Context, guildID, memberID string) (*store.Wallet, error) {
	log.Trace("--> Balance")
	defer log.Trace("<-- Balance")

	return b.store.GetWallet(ctx, guildID, memberID)
}

// Give deposits a positive amount into the member's wallet.
func (b *Bank) Give(ctx context.Context, guildID, memberID string, currency store.Currency, amount int64) (*store.Wallet, error) {
	log.Trace("--> Give")
	defer log.Trace("<-- Give")

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return b.adjust(ctx, guildID, memberID, currency, amount)
}

// Take withdraws a positive amount. It fails with store.ErrInsufficientFunds rather than
// leaving a negative balance.
func (b *Bank) Take(ctx context.Context, guildID, memberID string, currency store.Currency, amount int64) (*store.Wallet, error) {
	log.Trace("--> Take")
	defer log.Trace("<-- Take")

	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return b.adjust(ctx, guildID, memberID, currency, -amount)
}

// Set replaces the balance with a non-negative amount.
func (b *Bank) Set(ctx context.Context, guildID, memberID string, currency store.Currency, amount int64) (*store.Wallet, error) {
	log.Trace("--> Set")
	defer log.Trace("<-- Set")

	if !currency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	w, err := b.store.SetWallet(ctx, guildID, memberID, currency, amount)
	if err != nil {
		return nil, err
	}
	b.record(ctx, w, store.TxAdjustment, currency, amount, "")
	return w, nil
}

func (b *Bank) adjust(ctx context.Context, guildID, memberID string, currency store.Currency, delta int64) (*store.Wallet, error) {
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	w, err := b.store.AdjustWallet(ctx, guildID, memberID, currency, delta)
	if err != nil {
		return nil, err
	}
	b.record(ctx, w, store.TxAdjustment, currency, delta, "")
	return w, nil
}

// record writes a transaction row for an applied balance change. Failures are logged only,
// the balance change already happened.
func (b *Bank) record(ctx context.Context, w *store.Wallet, kind string, currency store.Currency, amount int64, externalID string) {
	tx := &store.Transaction{
		ID:           uuid.NewString(),
		GuildID:      w.GuildID,
		MemberID:     w.MemberID,
		Kind:         kind,
		Currency:     currency,
		Amount:       amount,
		PrimaryAfter: w.Primary,
		PremiumAfter: w.Premium,
		ExternalID:   externalID,
		CreatedAt:    b.now(),
	}
	if err := b.store.InsertTransaction(ctx, tx); err != nil {
		log.WithFields(log.Fields{"guild": w.GuildID, "member": w.MemberID, "kind": kind, "error": err}).Error("failed to record transaction")
	}
}

// ClaimDaily grants the daily primary currency reward once per cooldown period.
func (b *Bank) ClaimDaily(ctx context.Context, guildID, memberID string) (*store.Wallet, error) {
	log.Trace("--> ClaimDaily")
	defer log.Trace("<-- ClaimDaily")

	now := b.now()
	ok, next, err := b.store.TouchCooldown(ctx, guildID, memberID, dailyCooldownName, now, b.catalog.Daily.Cooldown())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &DailyCooldownError{Next: next, Remaining: next.Sub(now)}
	}
	w, err := b.store.AdjustWallet(ctx, guildID, memberID, store.Primary, b.catalog.Daily.Amount)
	if err != nil {
		return nil, err
	}
	b.record(ctx, w, store.TxAdjustment, store.Primary, b.catalog.Daily.Amount, "")
	log.WithFields(log.Fields{"guild": guildID, "member": memberID, "amount": b.catalog.Daily.Amount}).Info("daily reward claimed")
	return w, nil
}

// Ranking returns up to limit wallets of the guild with the highest balance in the currency.
func (b *Bank) Ranking(ctx context.Context, guildID string, currency store.Currency, limit int) ([]*store.Wallet, error) {
	log.Trace("--> Ranking")
	defer log.Trace("<-- Ranking")

	wallets, err := b.sorted(ctx, guildID, currency)
	if err != nil {
		return nil, err
	}
	return wallets[:min(limit, len(wallets))], nil
}

// Rank returns the 1-based position of the member in the guild ranking, or 0 if the member
// has no wallet.
func (b *Bank) Rank(ctx context.Context, guildID, memberID string, currency store.Currency) (int, error) {
	wallets, err := b.sorted(ctx, guildID, currency)
	if err != nil {
		return 0, err
	}
	for i, w := range wallets {
		if w.MemberID == memberID {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (b *Bank) sorted(ctx context.Context, guildID string, currency store.Currency) ([]*store.Wallet, error) {
	wallets, err := b.store.ListWallets(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(wallets, func(i, j int) bool {
		bi, bj := wallets[i].Balance(currency), wallets[j].Balance(currency)
		if bi != bj {
			return bi > bj
		}
		return wallets[i].MemberID < wallets[j].MemberID
	})
	return wallets, nil
}

// FinalizePackage credits a premium package bought outside the bot. The external transaction
// id makes the call idempotent: a repeated id fails with store.ErrConflict and credits nothing.
func (b *Bank) FinalizePackage(ctx context.Context, guildID, memberID, packageID, externalTxID string) (*store.Wallet, error) {
	log.Trace("--> FinalizePackage")
	defer log.Trace("<-- FinalizePackage")

	p, ok := b.catalog.Package(packageID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPackageNotFound, packageID)
	}
	if externalTxID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidAmount)
	}

	before, err := b.store.GetWallet(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	tx := &store.Transaction{
		ID:           uuid.NewString(),
		GuildID:      guildID,
		MemberID:     memberID,
		Kind:         store.TxPremiumPackage,
		ItemID:       p.ID,
		Currency:     store.Premium,
		Amount:       p.Amount,
		PrimaryAfter: before.Primary,
		PremiumAfter: before.Premium + p.Amount,
		ExternalID:   externalTxID,
		CreatedAt:    b.now(),
	}
	if err := b.store.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}

	w, err := b.store.AdjustWallet(ctx, guildID, memberID, store.Premium, p.Amount)
	if err != nil {
		log.WithFields(log.Fields{"guild": guildID, "member": memberID, "transaction": externalTxID, "error": err}).Error("package recorded but not credited")
		return nil, err
	}
	log.WithFields(log.Fields{"guild": guildID, "member": memberID, "package": p.ID, "amount": p.Amount}).Info("premium package credited")

	if b.granter != nil {
		if _, err := b.granter.Grant(ctx, guildID, memberID, config.MetricPremiumPurchase); err != nil {
			log.WithFields(log.Fields{"guild": guildID, "member": memberID, "error": err}).Warn("failed to grant premium purchase achievement")
		}
	}
	return w, nil
}

// HasPremiumPurchase reports whether the member ever finalized a premium package.
func (b *Bank) HasPremiumPurchase(ctx context.Context, guildID, memberID string) (bool, error) {
	txs, err := b.store.ListTransactions(ctx, guildID, memberID)
	if err != nil {
		return false, err
	}
	for _, tx := range txs {
		if tx.Kind == store.TxPremiumPackage {
			return true, nil
		}
	}
	return false, nil
}

// AddXP adds experience, raises the level when a threshold is crossed and pays the
// per-level currency reward once for every level gained.
func (b *Bank) AddXP(ctx context.Context, guildID, memberID string, xp int64) (*LevelUp, error) {
	log.Trace("--> AddXP")
	defer log.Trace("<-- AddXP")

	if xp <= 0 {
		return nil, nil
	}
	stats, err := b.store.IncrementStats(ctx, guildID, memberID, store.StatsDelta{XP: xp})
	if err != nil {
		return nil, err
	}
	level := LevelForXP(stats.XP)
	if level <= stats.Level {
		return nil, nil
	}
	previous, err := b.store.RaiseLevel(ctx, guildID, memberID, level)
	if err != nil {
		return nil, err
	}
	if previous >= level {
		// Another update already raised the level.
		return nil, nil
	}

	up := &LevelUp{Previous: previous, Current: level, Reward: (level - previous) * b.catalog.XP.CurrencyPerLevel}
	if up.Reward > 0 {
		w, err := b.store.AdjustWallet(ctx, guildID, memberID, store.Primary, up.Reward)
		if err != nil {
			return up, err
		}
		b.record(ctx, w, store.TxAdjustment, store.Primary, up.Reward, "")
	}
	log.WithFields(log.Fields{"guild": guildID, "member": memberID, "level": level}).Info("level up")
	for _, hook := range b.levelHooks {
		hook(ctx, guildID, memberID, level)
	}
	return up, nil
}

// Reward credits mission or achievement rewards.
func (b *Bank) Reward(ctx context.Context, guildID, memberID string, r config.Rewards) error {
	log.Trace("--> Reward")
	defer log.Trace("<-- Reward")

	var errs []error
	if r.Primary > 0 {
		if _, err := b.adjust(ctx, guildID, memberID, store.Primary, r.Primary); err != nil {
			errs = append(errs, err)
		}
	}
	if r.Premium > 0 {
		if _, err := b.adjust(ctx, guildID, memberID, store.Premium, r.Premium); err != nil {
			errs = append(errs, err)
		}
	}
	if r.XP > 0 {
		if _, err := b.AddXP(ctx, guildID, memberID, r.XP); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
