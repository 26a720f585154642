package activity

import (
	"context"
	"errors"
	"time"

	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// event collects the outcome and the errors of one activity event.
type event struct {
	guildID  string
	memberID string
	result   Result
	errs     []error
}

func (e *event) fail(err error) {
	if err != nil {
		e.errs = append(e.errs, err)
	}
}

func (e *event) done(name string) (*Result, error) {
	err := errors.Join(e.errs...)
	if err != nil {
		log.WithFields(log.Fields{"guild": e.guildID, "member": e.memberID, "event": name, "error": err}).Error("failed to record activity")
	}
	return &e.result, err
}

// Message records a chat message sent in the channel.
func (r *Recorder) Message(ctx context.Context, guildID, memberID, channelID string) (*Result, error) {
	log.Trace("--> Message")
	defer log.Trace("<-- Message")

	e := &event{guildID: guildID, memberID: memberID}
	if _, err := r.stats.IncrementStats(ctx, guildID, memberID, store.StatsDelta{Messages: 1, Channel: channelID}); err != nil {
		e.fail(err)
		return e.done("message")
	}
	r.activeDay(ctx, e)
	xp := r.catalog.XP
	r.awardXP(ctx, e, messageCooldown, xp.MessageMin, xp.MessageMax, time.Duration(xp.MessageCooldownSeconds)*time.Second, 1)
	r.progress(ctx, e, config.CondMessages, "", 1)
	r.check(ctx, e, config.MetricMessages, config.MetricChannelMessages, config.MetricPrimaryBalance)
	return e.done("message")
}

// Reaction records a reaction added to another member's message.
func (r *Recorder) Reaction(ctx context.Context, guildID, memberID string) (*Result, error) {
	log.Trace("--> Reaction")
	defer log.Trace("<-- Reaction")

	e := &event{guildID: guildID, memberID: memberID}
	if _, err := r.stats.IncrementStats(ctx, guildID, memberID, store.StatsDelta{Reactions: 1}); err != nil {
		e.fail(err)
		return e.done("reaction")
	}
	r.activeDay(ctx, e)
	xp := r.catalog.XP
	r.awardXP(ctx, e, reactionCooldown, xp.ReactionMin, xp.ReactionMax, time.Duration(xp.ReactionCooldownSecond)*time.Second, 1)
	r.progress(ctx, e, config.CondReactions, "", 1)
	r.check(ctx, e, config.MetricReactions, config.MetricPrimaryBalance)
	return e.done("reaction")
}

// Command records a bot command used by the member.
func (r *Recorder) Command(ctx context.Context, guildID, memberID, name, category string) (*Result, error) {
	log.Trace("--> Command")
	defer log.Trace("<-- Command")

	e := &event{guildID: guildID, memberID: memberID}
	if _, err := r.stats.IncrementStats(ctx, guildID, memberID, store.StatsDelta{Category: category}); err != nil {
		e.fail(err)
		return e.done("command")
	}
	r.activeDay(ctx, e)
	if category != "" {
		r.progress(ctx, e, config.CondCommandCategory, category, 1)
	}
	r.progress(ctx, e, config.CondCommandUsed, name, 1)
	r.check(ctx, e, config.MetricCommandCategory)
	return e.done("command")
}

// Voice records time spent in voice channels. Experience is paid for every full interval.
func (r *Recorder) Voice(ctx context.Context, guildID, memberID string, seconds int64) (*Result, error) {
	log.Trace("--> Voice")
	defer log.Trace("<-- Voice")

	e := &event{guildID: guildID, memberID: memberID}
	if seconds <= 0 {
		return &e.result, nil
	}
	if _, err := r.stats.IncrementStats(ctx, guildID, memberID, store.StatsDelta{VoiceSeconds: seconds}); err != nil {
		e.fail(err)
		return e.done("voice")
	}
	r.activeDay(ctx, e)
	xp := r.catalog.XP
	if interval := xp.VoiceIntervalMinutes * 60; interval > 0 {
		if ticks := seconds / interval; ticks > 0 {
			r.awardXP(ctx, e, "", xp.VoiceMin, xp.VoiceMax, 0, ticks)
		}
	}
	r.progress(ctx, e, config.CondVoiceSeconds, "", seconds)
	r.check(ctx, e, config.MetricPrimaryBalance)
	return e.done("voice")
}

// ContestWin records a contest won by the member.
func (r *Recorder) ContestWin(ctx context.Context, guildID, memberID string) (*Result, error) {
	log.Trace("--> ContestWin")
	defer log.Trace("<-- ContestWin")

	e := &event{guildID: guildID, memberID: memberID}
	if _, err := r.stats.IncrementStats(ctx, guildID, memberID, store.StatsDelta{ContestWins: 1}); err != nil {
		e.fail(err)
		return e.done("contest")
	}
	r.check(ctx, e, config.MetricContestWins)
	return e.done("contest")
}

// Secret records a hidden discovery, such as a secret command, that unlocks a one-shot achievement.
func (r *Recorder) Secret(ctx context.Context, guildID, memberID, metric string) (*Result, error) {
	log.Trace("--> Secret")
	defer log.Trace("<-- Secret")

	e := &event{guildID: guildID, memberID: memberID}
	if r.services.Achievements != nil {
		ids, err := r.services.Achievements.Grant(ctx, guildID, memberID, metric)
		e.result.Achievements = append(e.result.Achievements, ids...)
		e.fail(err)
	}
	return e.done("secret")
}

// OnLevelUp advances level based missions and achievements. It is registered as a level hook
// on the bank.
func (r *Recorder) OnLevelUp(ctx context.Context, guildID, memberID string, level int64) {
	e := &event{guildID: guildID, memberID: memberID}
	if r.services.Missions != nil {
		_, err := r.services.Missions.RaiseProgress(ctx, guildID, memberID, config.CondLevelReached, level)
		e.fail(err)
	}
	r.check(ctx, e, config.MetricLevel, config.MetricPrimaryBalance)
	e.done("level")
}

// activeDay extends the daily streak. The first activity of a day pays the streak bonus.
func (r *Recorder) activeDay(ctx context.Context, e *event) {
	now := r.now()
	streak, err := r.stats.RecordActiveDay(ctx, e.guildID, e.memberID, now)
	if err != nil {
		e.fail(err)
		return
	}
	e.result.Streak = streak

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first, _, err := r.stats.TouchCooldown(ctx, e.guildID, e.memberID, streakCooldown, day, 24*time.Hour)
	if err != nil {
		e.fail(err)
		return
	}
	if !first {
		return
	}
	xp := r.catalog.XP
	if bonus := xp.StreakBonusPerDay * min(streak, xp.StreakBonusMaxDays); bonus > 0 && streak > 1 {
		r.addXP(ctx, e, bonus)
	}
	r.check(ctx, e, config.MetricStreak)
}

// awardXP pays a random amount of experience per tick, scaled by the member's active bonuses.
// A named cooldown limits how often the event pays out.
func (r *Recorder) awardXP(ctx context.Context, e *event, cooldownName string, lo, hi int64, cooldown time.Duration, ticks int64) {
	if r.services.Bank == nil || hi <= 0 {
		return
	}
	if cooldownName != "" && cooldown > 0 {
		ok, _, err := r.stats.TouchCooldown(ctx, e.guildID, e.memberID, cooldownName, r.now(), cooldown)
		if err != nil {
			e.fail(err)
			return
		}
		if !ok {
			return
		}
	}
	var base int64
	for range ticks {
		base += r.random(lo, hi)
	}
	multiplier := 1.0
	if r.services.Bonuses != nil {
		bonus, err := r.services.Bonuses.XPBonus(ctx, e.guildID, e.memberID)
		e.fail(err)
		multiplier += bonus
	}
	r.addXP(ctx, e, int64(float64(base)*multiplier))
}

func (r *Recorder) addXP(ctx context.Context, e *event, xp int64) {
	if r.services.Bank == nil {
		return
	}
	up, err := r.services.Bank.AddXP(ctx, e.guildID, e.memberID, xp)
	if err != nil {
		e.fail(err)
		return
	}
	e.result.XP += xp
	if up != nil {
		e.result.LevelUp = up
	}
}

func (r *Recorder) progress(ctx context.Context, e *event, condType, scope string, delta int64) {
	if r.services.Missions == nil {
		return
	}
	ids, err := r.services.Missions.AddProgress(ctx, e.guildID, e.memberID, condType, scope, delta)
	e.result.Missions = append(e.result.Missions, ids...)
	e.fail(err)
}

func (r *Recorder) check(ctx context.Context, e *event, metrics ...string) {
	if r.services.Achievements == nil {
		return
	}
	for _, metric := range metrics {
		ids, err := r.services.Achievements.CheckAndGrant(ctx, e.guildID, e.memberID, metric)
		e.result.Achievements = append(e.result.Achievements, ids...)
		e.fail(err)
	}
}
