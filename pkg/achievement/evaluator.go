package achievement

import (
	"context"
	"sort"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	log "github.com/sirupsen/logrus"
)

// TierStatus is the state of one tier for a member.
type TierStatus struct {
	TierID       string     `json:"tier_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	Badge        string     `json:"badge"`
	CategoryID   string     `json:"category_id"`
	CategoryName string     `json:"category_name"`
	Group        string     `json:"group"`
	Hidden       bool       `json:"hidden"`
	Unlocked     bool       `json:"unlocked"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	// Progress is nil for unlocked tiers and for hidden tiers still locked.
	Progress *int64 `json:"progress"`
	Required int64  `json:"required"`
}

// Evaluator reports achievement progress. It never changes the ledger.
type Evaluator struct {
	store   Store
	catalog *config.Catalog
}

// NewEvaluator creates an evaluator for the catalog's achievements.
func NewEvaluator(s Store, catalog *config.Catalog) *Evaluator {
	return &Evaluator{store: s, catalog: catalog}
}

// Evaluate returns the state of every tier of every category. Unlocked tiers come first,
// each group ordered by name.
func (e *Evaluator) Evaluate(ctx context.Context, guildID, memberID string) ([]*TierStatus, error) {
	log.Trace("--> Evaluate")
	defer log.Trace("<-- Evaluate")

	unlocks, err := e.store.ListUnlocks(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]time.Time, len(unlocks))
	for _, u := range unlocks {
		unlockedAt[u.TierID] = u.UnlockedAt
	}
	snap, err := loadSnapshot(ctx, e.store, guildID, memberID)
	if err != nil {
		return nil, err
	}

	var statuses []*TierStatus
	for i := range e.catalog.Achievements {
		c := &e.catalog.Achievements[i]
		live := snap.value(c)
		for _, t := range c.Tiers {
			s := &TierStatus{
				TierID:       t.ID,
				Name:         t.Name,
				Description:  t.Description,
				Badge:        t.Badge,
				CategoryID:   c.ID,
				CategoryName: c.Name,
				Group:        c.Group,
				Hidden:       c.Hidden,
				Required:     t.Threshold,
			}
			switch at, ok := unlockedAt[t.ID]; {
			case ok:
				s.Unlocked = true
				s.UnlockedAt = &at
			case c.Hidden:
			default:
				progress := min(live, t.Threshold)
				s.Progress = &progress
			}
			statuses = append(statuses, s)
		}
	}

	sort.SliceStable(statuses, func(i, j int) bool {
		a, b := statuses[i], statuses[j]
		if a.Unlocked != b.Unlocked {
			return a.Unlocked
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.TierID < b.TierID
	})
	return statuses, nil
}
