// Package achievement evaluates achievement tiers against member activity and unlocks the
// tiers a member has earned.
package achievement

import (
	"context"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/store"
)

// Store is the part of the ledger achievements are measured against.
type Store interface {
	store.AchievementStore
	store.StatsStore
	store.WalletStore
	store.InventoryStore
}

// Rewarder credits tier rewards.
type Rewarder interface {
	Reward(ctx context.Context, guildID, memberID string, r config.Rewards) error
}

// Option configures the evaluator and the granter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the clock used for unlock timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// snapshot holds the live counters of a member, read once per evaluation.
type snapshot struct {
	stats   *store.MemberStats
	wallet  *store.Wallet
	premium bool
}

func loadSnapshot(ctx context.Context, s Store, guildID, memberID string) (*snapshot, error) {
	stats, err := s.GetStats(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.GetWallet(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	txs, err := s.ListTransactions(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{stats: stats, wallet: wallet}
	for _, tx := range txs {
		if tx.Kind == store.TxPremiumPackage {
			snap.premium = true
			break
		}
	}
	return snap, nil
}

// value returns the live value of the category's metric. One-shot metrics other than a
// premium purchase are only ever set by an explicit grant, so they read as zero.
func (s *snapshot) value(c *config.AchievementCategory) int64 {
	switch c.Metric {
	case config.MetricMessages:
		return s.stats.Messages
	case config.MetricLevel:
		return s.stats.Level
	case config.MetricPrimaryBalance:
		return s.wallet.Primary
	case config.MetricReactions:
		return s.stats.Reactions
	case config.MetricStreak:
		return s.stats.Streak
	case config.MetricContestWins:
		return s.stats.ContestWins
	case config.MetricCommandCategory:
		return s.stats.CommandUsage[c.Scope]
	case config.MetricChannelMessages:
		return s.stats.ChannelMessages[c.Scope]
	case config.MetricPremiumPurchase:
		if s.premium {
			return 1
		}
	}
	return 0
}
