// Package economy manages member wallets, experience and levels, the daily reward and
// premium currency packages.
package economy

import (
	"context"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/store"
)

const dailyCooldownName = "daily"

// Store is the part of the ledger the bank works with.
type Store interface {
	store.WalletStore
	store.StatsStore
	store.InventoryStore
}

// Granter unlocks one-shot achievements.
type Granter interface {
	Grant(ctx context.Context, guildID, memberID, metric string) ([]string, error)
}

// LevelHook is called after a member reaches a new level.
type LevelHook func(ctx context.Context, guildID, memberID string, level int64)

// Bank is the entry point for all balance and experience changes.
type Bank struct {
	store      Store
	catalog    *config.Catalog
	now        func() time.Time
	granter    Granter
	levelHooks []LevelHook
}

// Option configures a Bank.
type Option func(*Bank)

// WithClock replaces the clock used for timestamps and cooldowns.
func WithClock(now func() time.Time) Option {
	return func(b *Bank) { b.now = now }
}

// NewBank creates a bank over the given store.
func NewBank(s Store, catalog *config.Catalog, opts ...Option) *Bank {
	b := &Bank{
		store:   s,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetGranter sets the achievement granter notified of premium purchases. It must be called
// before the bank is used.
func (b *Bank) SetGranter(g Granter) {
	b.granter = g
}

// OnLevelUp registers a hook run whenever a member gains a level. It must be called before
// the bank is used.
func (b *Bank) OnLevelUp(hook LevelHook) {
	b.levelHooks = append(b.levelHooks, hook)
}
