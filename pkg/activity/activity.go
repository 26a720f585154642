// Package activity turns chat events into experience, mission progress and achievements.
package activity

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/store"
)

// Cooldown names kept in the member's stats.
const (
	messageCooldown  = "xp_message"
	reactionCooldown = "xp_reaction"
	streakCooldown   = "streak_bonus"
)

// Bank awards experience.
type Bank interface {
	AddXP(ctx context.Context, guildID, memberID string, xp int64) (*economy.LevelUp, error)
}

// Missions advances mission progress.
type Missions interface {
	AddProgress(ctx context.Context, guildID, memberID, condType, scope string, delta int64) ([]string, error)
	RaiseProgress(ctx context.Context, guildID, memberID, condType string, value int64) ([]string, error)
}

// Achievements unlocks earned achievement tiers.
type Achievements interface {
	CheckAndGrant(ctx context.Context, guildID, memberID, metric string) ([]string, error)
	Grant(ctx context.Context, guildID, memberID, metric string) ([]string, error)
}

// Bonuses reports the experience bonus of the member's active shop items.
type Bonuses interface {
	XPBonus(ctx context.Context, guildID, memberID string) (float64, error)
}

// Services are the engines an event is fed into.
type Services struct {
	Bank         Bank
	Missions     Missions
	Achievements Achievements
	Bonuses      Bonuses
}

// Result describes what a single event earned the member.
type Result struct {
	XP           int64
	Streak       int64
	LevelUp      *economy.LevelUp
	Missions     []string
	Achievements []string
}

// Recorder ingests chat activity.
type Recorder struct {
	stats    store.StatsStore
	catalog  *config.Catalog
	services Services
	now      func() time.Time
	random   func(lo, hi int64) int64
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces the clock used for cooldowns and streaks.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithRandom replaces the source of random experience amounts in [lo, hi].
func WithRandom(random func(lo, hi int64) int64) Option {
	return func(r *Recorder) { r.random = random }
}

func between(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Int64N(hi-lo+1)
}

// NewRecorder creates a recorder feeding events into the given services.
func NewRecorder(s store.StatsStore, catalog *config.Catalog, services Services, opts ...Option) *Recorder {
	r := &Recorder{
		stats:    s,
		catalog:  catalog,
		services: services,
		now:      func() time.Time { return time.Now().UTC() },
		random:   between,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
