package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/metrics"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

var ErrNotBinary = errors.New("metric is not a one-shot metric")

// Granter unlocks tiers a member has earned and pays their rewards.
type Granter struct {
	store    Store
	catalog  *config.Catalog
	rewarder Rewarder
	now      func() time.Time
}

// NewGranter creates a granter for the catalog's achievements.
func NewGranter(s Store, catalog *config.Catalog, rewarder Rewarder, opts ...Option) *Granter {
	o := newOptions(opts)
	return &Granter{store: s, catalog: catalog, rewarder: rewarder, now: o.now}
}

// CheckAndGrant unlocks every tier of the categories measured by metric whose threshold the
// member has reached. It returns the ids of tiers unlocked by this call.
func (g *Granter) CheckAndGrant(ctx context.Context, guildID, memberID, metric string) ([]string, error) {
	log.Trace("--> CheckAndGrant")
	defer log.Trace("<-- CheckAndGrant")

	categories := g.catalog.CategoriesFor(metric)
	if len(categories) == 0 {
		return nil, nil
	}
	snap, err := loadSnapshot(ctx, g.store, guildID, memberID)
	if err != nil {
		return nil, err
	}
	var unlocked []string
	var errs []error
	for _, c := range categories {
		ids, err := g.unlock(ctx, guildID, memberID, c, snap.value(c))
		unlocked = append(unlocked, ids...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return unlocked, errors.Join(errs...)
}

// Grant unlocks the one-shot achievements of the metric, such as a secret found or a first
// premium purchase.
func (g *Granter) Grant(ctx context.Context, guildID, memberID, metric string) ([]string, error) {
	log.Trace("--> Grant")
	defer log.Trace("<-- Grant")

	if !config.BinaryMetric(metric) {
		return nil, fmt.Errorf("%w: %q", ErrNotBinary, metric)
	}
	var unlocked []string
	var errs []error
	for _, c := range g.catalog.CategoriesFor(metric) {
		ids, err := g.unlock(ctx, guildID, memberID, c, 1)
		unlocked = append(unlocked, ids...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return unlocked, errors.Join(errs...)
}

func (g *Granter) unlock(ctx context.Context, guildID, memberID string, c *config.AchievementCategory, value int64) ([]string, error) {
	var unlocked []string
	for _, t := range c.Tiers {
		if value < t.Threshold {
			continue
		}
		inserted, err := g.store.InsertUnlock(ctx, &store.AchievementUnlock{
			GuildID:    guildID,
			MemberID:   memberID,
			TierID:     t.ID,
			UnlockedAt: g.now(),
		})
		if err != nil {
			return unlocked, fmt.Errorf("unlocking tier %q: %w", t.ID, err)
		}
		if !inserted {
			continue
		}
		unlocked = append(unlocked, t.ID)
		metrics.AchievementUnlocks.WithLabelValues(t.ID).Inc()
		log.WithFields(log.Fields{"guild": guildID, "member": memberID, "tier": t.ID}).Info("achievement unlocked")
		if g.rewarder != nil {
			if err := g.rewarder.Reward(ctx, guildID, memberID, t.Rewards); err != nil {
				return unlocked, fmt.Errorf("rewarding tier %q: %w", t.ID, err)
			}
		}
	}
	return unlocked, nil
}
