// Package mission tracks per-cycle mission progress and records mission completions.
package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/cycle"
	"github.com/rbrabson/chronicles/pkg/metrics"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Mission statuses.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Rewarder credits mission rewards.
type Rewarder interface {
	Reward(ctx context.Context, guildID, memberID string, r config.Rewards) error
}

// Tracker owns mission progress counters and completion records.
type Tracker struct {
	store    store.MissionStore
	catalog  *config.Catalog
	rewarder Rewarder
	now      func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the clock used to pick the current cycle.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker for the catalog's missions.
func NewTracker(s store.MissionStore, catalog *config.Catalog, rewarder Rewarder, opts ...Option) *Tracker {
	t := &Tracker{
		store:    s,
		catalog:  catalog,
		rewarder: rewarder,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) mission(missionID string) (*config.Mission, error) {
	m, ok := t.catalog.Mission(missionID)
	if !ok {
		return nil, fmt.Errorf("%w: mission %q", store.ErrNotFound, missionID)
	}
	return m, nil
}

// CycleStart returns the cycle the mission is currently in. One-time missions return cycle.Epoch.
func (t *Tracker) CycleStart(missionID string) (time.Time, error) {
	m, err := t.mission(missionID)
	if err != nil {
		return time.Time{}, err
	}
	return cycle.Key(m.Recurrence, t.now(), t.catalog.Schedule())
}

// GetOrCreateProgress returns the counter of a mission condition in the given cycle,
// creating it at zero. It never increments.
func (t *Tracker) GetOrCreateProgress(ctx context.Context, guildID, memberID, missionID, condition string, cycleStart time.Time) (int64, error) {
	log.Trace("--> GetOrCreateProgress")
	defer log.Trace("<-- GetOrCreateProgress")

	if _, err := t.mission(missionID); err != nil {
		return 0, err
	}
	key := store.ProgressKey{GuildID: guildID, MemberID: memberID, MissionID: missionID, Condition: condition, CycleStart: cycleStart.UTC()}
	p, err := t.store.GetOrCreateProgress(ctx, key, t.now())
	if err != nil {
		return 0, err
	}
	return p.Value, nil
}

// IsCompletedInCycle reports whether a recurring mission was completed in the cycle.
func (t *Tracker) IsCompletedInCycle(ctx context.Context, guildID, memberID, missionID string, cycleStart time.Time) (bool, error) {
	return t.store.CompletionExists(ctx, store.CompletionKey(guildID, memberID, missionID, false, cycleStart.UTC()))
}

// IsCompletedOnce reports whether a one-time mission was ever completed.
func (t *Tracker) IsCompletedOnce(ctx context.Context, guildID, memberID, missionID string) (bool, error) {
	return t.store.CompletionExists(ctx, store.CompletionKey(guildID, memberID, missionID, true, time.Time{}))
}

// IsCompleted runs the completion check that fits the mission's recurrence.
func (t *Tracker) IsCompleted(ctx context.Context, guildID, memberID string, m *config.Mission, cycleStart time.Time) (bool, error) {
	if m.Recurrence == cycle.OneTime {
		return t.IsCompletedOnce(ctx, guildID, memberID, m.ID)
	}
	return t.IsCompletedInCycle(ctx, guildID, memberID, m.ID, cycleStart)
}

// RecordCompletion marks the mission as completed for the cycle, or forever for one-time
// missions. Recording an existing completion is a no-op. Rewards are granted only by the
// call that inserted the record, and the result reports whether this call did.
func (t *Tracker) RecordCompletion(ctx context.Context, guildID, memberID, missionID string, cycleStart time.Time) (bool, error) {
	log.Trace("--> RecordCompletion")
	defer log.Trace("<-- RecordCompletion")

	m, err := t.mission(missionID)
	if err != nil {
		return false, err
	}
	c := &store.MissionCompletion{
		GuildID:     guildID,
		MemberID:    memberID,
		MissionID:   missionID,
		OneTime:     m.Recurrence == cycle.OneTime,
		CycleStart:  cycleStart.UTC(),
		CompletedAt: t.now(),
	}
	if c.OneTime {
		c.CycleStart = cycle.Epoch
	}
	inserted, err := t.store.InsertCompletion(ctx, c)
	if err != nil || !inserted {
		return false, err
	}

	metrics.MissionCompletions.WithLabelValues(missionID).Inc()
	log.WithFields(log.Fields{"guild": guildID, "member": memberID, "mission": missionID, "cycle": c.CycleStart}).Info("mission completed")
	if t.rewarder != nil {
		if err := t.rewarder.Reward(ctx, guildID, memberID, m.Rewards); err != nil {
			log.WithFields(log.Fields{"guild": guildID, "member": memberID, "mission": missionID, "error": err}).Error("failed to grant mission rewards")
			return true, fmt.Errorf("mission %q completed but rewards failed: %w", missionID, err)
		}
	}
	return true, nil
}
