package mission

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/cycle"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// ConditionStatus is the progress of one mission condition.
type ConditionStatus struct {
	Type     string `json:"type"`
	Current  int64  `json:"current"`
	Required int64  `json:"required"`
}

// Status is the state of a mission for a member in the current cycle.
type Status struct {
	Mission    *config.Mission   `json:"mission"`
	Status     string            `json:"status"`
	CycleStart *time.Time        `json:"cycle_start,omitempty"`
	ResetsAt   *time.Time        `json:"resets_at,omitempty"`
	Conditions []ConditionStatus `json:"conditions"`
}

// Completed is a completion record joined with its mission definition.
type Completed struct {
	Mission     *config.Mission `json:"mission"`
	CycleStart  *time.Time      `json:"cycle_start,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}

// conditionKey names the progress counter of a condition. Scoped conditions get their own counter.
func conditionKey(c config.Condition) string {
	switch c.Type {
	case config.CondCommandCategory:
		return c.Type + ":" + c.Category
	case config.CondCommandUsed:
		return c.Type + ":" + c.Command
	}
	return c.Type
}

// matches reports whether an event of the condition type and scope counts towards c.
func matches(c config.Condition, condType, scope string) bool {
	if c.Type != condType {
		return false
	}
	switch c.Type {
	case config.CondCommandCategory:
		return c.Category == scope
	case config.CondCommandUsed:
		return c.Command == scope
	}
	return true
}

// AddProgress increments every matching condition of missions not yet completed in the
// current cycle by delta. Missions whose conditions are all met are completed. The ids of
// missions completed by this call are returned.
func (t *Tracker) AddProgress(ctx context.Context, guildID, memberID, condType, scope string, delta int64) ([]string, error) {
	log.Trace("--> AddProgress")
	defer log.Trace("<-- AddProgress")

	if delta <= 0 {
		return nil, nil
	}
	return t.update(ctx, guildID, memberID, condType, scope, func(key store.ProgressKey) error {
		_, err := t.store.IncrementProgress(ctx, key, delta, t.now())
		return err
	})
}

// RaiseProgress lifts matching conditions to value when they are below it. It is used for
// conditions that track an absolute value such as the member's level.
func (t *Tracker) RaiseProgress(ctx context.Context, guildID, memberID, condType string, value int64) ([]string, error) {
	log.Trace("--> RaiseProgress")
	defer log.Trace("<-- RaiseProgress")

	return t.update(ctx, guildID, memberID, condType, "", func(key store.ProgressKey) error {
		_, err := t.store.RaiseProgress(ctx, key, value, t.now())
		return err
	})
}

func (t *Tracker) update(ctx context.Context, guildID, memberID, condType, scope string, apply func(store.ProgressKey) error) ([]string, error) {
	var completed []string
	var errs []error
	for i := range t.catalog.Missions {
		m := &t.catalog.Missions[i]
		relevant := false
		for _, c := range m.Conditions {
			if matches(c, condType, scope) {
				relevant = true
				break
			}
		}
		if !relevant {
			continue
		}

		start, err := cycle.Key(m.Recurrence, t.now(), t.catalog.Schedule())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		done, err := t.IsCompleted(ctx, guildID, memberID, m, start)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			continue
		}

		for _, c := range m.Conditions {
			if !matches(c, condType, scope) {
				continue
			}
			key := store.ProgressKey{GuildID: guildID, MemberID: memberID, MissionID: m.ID, Condition: conditionKey(c), CycleStart: start}
			if err := apply(key); err != nil {
				errs = append(errs, err)
			}
		}

		met, err := t.conditionsMet(ctx, guildID, memberID, m, start)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !met {
			continue
		}
		inserted, err := t.RecordCompletion(ctx, guildID, memberID, m.ID, start)
		if err != nil {
			errs = append(errs, err)
		}
		if inserted {
			completed = append(completed, m.ID)
		}
	}
	return completed, errors.Join(errs...)
}

func (t *Tracker) conditionsMet(ctx context.Context, guildID, memberID string, m *config.Mission, start time.Time) (bool, error) {
	if len(m.Conditions) == 0 {
		return false, nil
	}
	for _, c := range m.Conditions {
		current, err := t.GetOrCreateProgress(ctx, guildID, memberID, m.ID, conditionKey(c), start)
		if err != nil {
			return false, err
		}
		if current < c.Required {
			return false, nil
		}
	}
	return true, nil
}

// Statuses returns the state of every mission, in catalog order, for the current cycle.
func (t *Tracker) Statuses(ctx context.Context, guildID, memberID string) ([]*Status, error) {
	log.Trace("--> Statuses")
	defer log.Trace("<-- Statuses")

	statuses := make([]*Status, 0, len(t.catalog.Missions))
	for i := range t.catalog.Missions {
		m := &t.catalog.Missions[i]
		start, err := cycle.Key(m.Recurrence, t.now(), t.catalog.Schedule())
		if err != nil {
			return nil, err
		}
		s := &Status{Mission: m, Status: StatusActive}
		if m.Recurrence != cycle.OneTime {
			end := cycle.End(m.Recurrence, start)
			s.CycleStart = &start
			s.ResetsAt = &end
		}

		done, err := t.IsCompleted(ctx, guildID, memberID, m, start)
		if err != nil {
			return nil, err
		}
		if done {
			s.Status = StatusCompleted
		}
		for _, c := range m.Conditions {
			current, err := t.GetOrCreateProgress(ctx, guildID, memberID, m.ID, conditionKey(c), start)
			if err != nil {
				return nil, err
			}
			s.Conditions = append(s.Conditions, ConditionStatus{Type: c.Type, Current: min(current, c.Required), Required: c.Required})
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// Completed lists the member's completion records, newest first. Records of missions no
// longer in the catalog are skipped.
func (t *Tracker) Completed(ctx context.Context, guildID, memberID string) ([]*Completed, error) {
	log.Trace("--> Completed")
	defer log.Trace("<-- Completed")

	records, err := t.store.ListCompletions(ctx, guildID, memberID)
	if err != nil {
		return nil, err
	}
	completed := make([]*Completed, 0, len(records))
	for _, r := range records {
		m, ok := t.catalog.Mission(r.MissionID)
		if !ok {
			continue
		}
		c := &Completed{Mission: m, CompletedAt: r.CompletedAt}
		if !r.OneTime {
			start := r.CycleStart
			c.CycleStart = &start
		}
		completed = append(completed, c)
	}
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].CompletedAt.After(completed[j].CompletedAt)
	})
	return completed, nil
}
