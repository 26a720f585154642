package store

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// WalletStore keeps member balances. Balances never go below zero.
type WalletStore interface {
	// GetWallet returns the wallet, creating an empty one if the member has none.
	GetWallet(ctx context.Context, guildID, memberID string) (*Wallet, error)
	// AdjustWallet adds delta to the balance. A change that would leave the balance
	// negative fails with ErrInsufficientFunds and leaves the wallet untouched.
	AdjustWallet(ctx context.Context, guildID, memberID string, currency Currency, delta int64) (*Wallet, error)
	SetWallet(ctx context.Context, guildID, memberID string, currency Currency, amount int64) (*Wallet, error)
	ListWallets(ctx context.Context, guildID string) ([]*Wallet, error)
}

// CatalogStore keeps the shop catalog.
type CatalogStore interface {
	GetItem(ctx context.Context, itemID string) (*ShopItem, error)
	InsertItem(ctx context.Context, item *ShopItem) error
	ReplaceItem(ctx context.Context, item *ShopItem) error
	DeleteItem(ctx context.Context, itemID string) error
	ListItems(ctx context.Context) ([]*ShopItem, error)
	// SettlePurchase atomically decrements limited stock, debits the wallet and writes the
	// records carried by the debit. Either all of it happens or none of it does.
	SettlePurchase(ctx context.Context, debit Debit) (*Wallet, error)
}

// InventoryStore keeps purchased items, timed role grants and the transaction log.
type InventoryStore interface {
	InsertPossession(ctx context.Context, p *Possession) error
	ListPossessions(ctx context.Context, guildID, memberID string) ([]*Possession, error)
	UpsertRoleGrant(ctx context.Context, g *RoleGrant) error
	ListExpiredRoleGrants(ctx context.Context, now time.Time) ([]*RoleGrant, error)
	DeleteRoleGrant(ctx context.Context, g *RoleGrant) error
	// InsertTransaction fails with ErrConflict when a transaction with the same non-empty
	// external id was already recorded.
	InsertTransaction(ctx context.Context, tx *Transaction) error
	ListTransactions(ctx context.Context, guildID, memberID string) ([]*Transaction, error)
}

// MissionStore keeps mission progress counters and completions.
type MissionStore interface {
	// GetOrCreateProgress returns the counter, creating it at zero if absent.
	GetOrCreateProgress(ctx context.Context, key ProgressKey, now time.Time) (*MissionProgress, error)
	IncrementProgress(ctx context.Context, key ProgressKey, delta int64, now time.Time) (*MissionProgress, error)
	// RaiseProgress sets the counter to value if it is below it, creating it if absent.
	RaiseProgress(ctx context.Context, key ProgressKey, value int64, now time.Time) (*MissionProgress, error)
	// InsertCompletion records the completion if none with the same key exists and
	// reports whether it was inserted.
	InsertCompletion(ctx context.Context, c *MissionCompletion) (bool, error)
	CompletionExists(ctx context.Context, key string) (bool, error)
	ListCompletions(ctx context.Context, guildID, memberID string) ([]*MissionCompletion, error)
}

// AchievementStore keeps unlocked achievement tiers.
type AchievementStore interface {
	// InsertUnlock records the unlock if absent and reports whether it was inserted.
	InsertUnlock(ctx context.Context, u *AchievementUnlock) (bool, error)
	ListUnlocks(ctx context.Context, guildID, memberID string) ([]*AchievementUnlock, error)
}

// StatsStore keeps member activity counters.
type StatsStore interface {
	// GetStats returns the counters, zero valued if the member has none.
	GetStats(ctx context.Context, guildID, memberID string) (*MemberStats, error)
	IncrementStats(ctx context.Context, guildID, memberID string, delta StatsDelta) (*MemberStats, error)
	// ListStats returns the counters of every member of the guild, ordered by member id.
	ListStats(ctx context.Context, guildID string) ([]*MemberStats, error)
	// RaiseLevel sets the level if it is higher than the stored one and returns the previous level.
	RaiseLevel(ctx context.Context, guildID, memberID string, level int64) (int64, error)
	// RecordActiveDay extends, keeps or restarts the daily streak and returns the new streak.
	RecordActiveDay(ctx context.Context, guildID, memberID string, day time.Time) (int64, error)
	// TouchCooldown records now under name if the previous use is at least cooldown ago.
	// When it is not, it returns false and the time the cooldown ends.
	TouchCooldown(ctx context.Context, guildID, memberID, name string, now time.Time, cooldown time.Duration) (bool, time.Time, error)
}

// WarningStore keeps moderation warnings.
type WarningStore interface {
	InsertWarning(ctx context.Context, w *Warning) error
	// DeleteWarning removes the warning and returns it.
	DeleteWarning(ctx context.Context, warnID string) (*Warning, error)
	ListWarnings(ctx context.Context, guildID, memberID string) ([]*Warning, error)
}

// Store is the full persistence layer shared by all engines.
type Store interface {
	WalletStore
	CatalogStore
	InventoryStore
	MissionStore
	AchievementStore
	StatsStore
	WarningStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Options select and configure a store backend.
type Options struct {
	Type          string
	FileDir       string
	MongoURI      string
	MongoDatabase string
	PostgresURL   string
}

// New creates the store backend selected by the options.
func New(ctx context.Context, opts Options) (Store, error) {
	log.WithField("type", opts.Type).Debug("creating store")
	switch opts.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(opts.FileDir)
	case "mongo", "mongodb":
		return NewMongoStore(ctx, opts.MongoURI, opts.MongoDatabase)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, opts.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown store type %q", opts.Type)
	}
}
