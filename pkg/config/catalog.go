package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rbrabson/chronicles/pkg/cycle"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var ErrInvalidCatalog = errors.New("invalid catalog")

// Mission condition types.
const (
	CondMessages        = "messages_since_reset"
	CondReactions       = "reactions_since_reset"
	CondVoiceSeconds    = "voice_seconds_since_reset"
	CondCommandCategory = "command_category_since_reset"
	CondCommandUsed     = "command_used"
	CondLevelReached    = "level_reached"
)

// Achievement metric sources.
const (
	MetricMessages        = "messages"
	MetricLevel           = "level"
	MetricPrimaryBalance  = "primary_balance"
	MetricReactions       = "reactions"
	MetricStreak          = "streak"
	MetricContestWins     = "contest_wins"
	MetricCommandCategory = "command_category"
	MetricChannelMessages = "channel_messages"
	MetricPremiumPurchase = "premium_purchase"
	MetricSecretLibrary   = "secret_library"
	MetricSpecialCommand  = "special_command"
)

var conditionTypes = map[string]bool{
	CondMessages: true, CondReactions: true, CondVoiceSeconds: true,
	CondCommandCategory: true, CondCommandUsed: true, CondLevelReached: true,
}

var metricTypes = map[string]bool{
	MetricMessages: true, MetricLevel: true, MetricPrimaryBalance: true, MetricReactions: true,
	MetricStreak: true, MetricContestWins: true, MetricCommandCategory: true, MetricChannelMessages: true,
	MetricPremiumPurchase: true, MetricSecretLibrary: true, MetricSpecialCommand: true,
}

// BinaryMetric reports whether the metric is a one-shot flag rather than a counter.
func BinaryMetric(metric string) bool {
	switch metric {
	case MetricPremiumPurchase, MetricSecretLibrary, MetricSpecialCommand:
		return true
	}
	return false
}

// Rewards granted for completing a mission or unlocking a tier.
type Rewards struct {
	XP      int64 `yaml:"xp" json:"xp"`
	Primary int64 `yaml:"primary" json:"primary"`
	Premium int64 `yaml:"premium" json:"premium"`
}

// Condition is one requirement of a mission.
type Condition struct {
	Type     string `yaml:"type" json:"type"`
	Required int64  `yaml:"required" json:"required"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	Command  string `yaml:"command,omitempty" json:"command,omitempty"`
}

// Mission is a static mission definition.
type Mission struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Description string           `yaml:"description" json:"description"`
	Recurrence  cycle.Recurrence `yaml:"recurrence" json:"recurrence"`
	Conditions  []Condition      `yaml:"conditions" json:"conditions"`
	Rewards     Rewards          `yaml:"rewards" json:"rewards"`
	Icon        string           `yaml:"icon" json:"icon"`
}

// Tier is one threshold of an achievement category.
type Tier struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Threshold   int64   `yaml:"threshold" json:"threshold"`
	Rewards     Rewards `yaml:"rewards" json:"rewards"`
	Badge       string  `yaml:"badge" json:"badge"`
}

// AchievementCategory groups the tiers measured against one metric.
type AchievementCategory struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Metric      string `yaml:"metric" json:"metric"`
	// Scope is the command category or channel id for scoped metrics.
	Scope  string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Icon   string `yaml:"icon" json:"icon"`
	Hidden bool   `yaml:"hidden" json:"hidden"`
	Group  string `yaml:"group" json:"group"`
	Tiers  []Tier `yaml:"tiers" json:"tiers"`
}

// Package is a premium currency bundle sold outside the bot.
type Package struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Amount      int64   `yaml:"amount" json:"amount"`
	Price       float64 `yaml:"price_pln" json:"price_pln"`
	Emoji       string  `yaml:"emoji" json:"emoji"`
}

// XPSettings control how much experience activity earns.
type XPSettings struct {
	MessageMin             int64 `yaml:"message_min" json:"message_min"`
	MessageMax             int64 `yaml:"message_max" json:"message_max"`
	MessageCooldownSeconds int64 `yaml:"message_cooldown_seconds" json:"message_cooldown_seconds"`
	ReactionMin            int64 `yaml:"reaction_min" json:"reaction_min"`
	ReactionMax            int64 `yaml:"reaction_max" json:"reaction_max"`
	ReactionCooldownSecond int64 `yaml:"reaction_cooldown_seconds" json:"reaction_cooldown_seconds"`
	VoiceMin               int64 `yaml:"voice_min" json:"voice_min"`
	VoiceMax               int64 `yaml:"voice_max" json:"voice_max"`
	VoiceIntervalMinutes   int64 `yaml:"voice_interval_minutes" json:"voice_interval_minutes"`
	StreakBonusPerDay      int64 `yaml:"streak_bonus_per_day" json:"streak_bonus_per_day"`
	StreakBonusMaxDays     int64 `yaml:"streak_bonus_max_days" json:"streak_bonus_max_days"`
	CurrencyPerLevel       int64 `yaml:"currency_per_level" json:"currency_per_level"`
}

// DailySettings control the daily primary currency reward.
type DailySettings struct {
	Amount        int64 `yaml:"amount" json:"amount"`
	CooldownHours int64 `yaml:"cooldown_hours" json:"cooldown_hours"`
}

// Cooldown returns the wait between two daily claims.
func (d DailySettings) Cooldown() time.Duration {
	return time.Duration(d.CooldownHours) * time.Hour
}

// ScheduleSettings is the YAML form of the cycle reset schedule.
type ScheduleSettings struct {
	DailyHour     int    `yaml:"daily_hour_utc" json:"daily_hour_utc"`
	WeeklyWeekday string `yaml:"weekly_weekday" json:"weekly_weekday"`
	WeeklyHour    int    `yaml:"weekly_hour_utc" json:"weekly_hour_utc"`
}

// Catalog is the static game configuration. It is loaded once and must not be modified
// afterwards.
type Catalog struct {
	ResetSchedule ScheduleSettings      `yaml:"schedule"`
	Missions      []Mission             `yaml:"missions"`
	Achievements  []AchievementCategory `yaml:"achievements"`
	ShopItems     []store.ShopItem      `yaml:"shop_items"`
	Packages      []Package             `yaml:"premium_packages"`
	XP            XPSettings            `yaml:"xp"`
	Daily         DailySettings         `yaml:"daily"`

	schedule cycle.Schedule
}

// Schedule returns the parsed reset schedule.
func (c *Catalog) Schedule() cycle.Schedule {
	return c.schedule
}

// Mission returns the mission definition with the given id.
func (c *Catalog) Mission(id string) (*Mission, bool) {
	for i := range c.Missions {
		if c.Missions[i].ID == id {
			return &c.Missions[i], true
		}
	}
	return nil, false
}

// Package returns the premium package with the given id.
func (c *Catalog) Package(id string) (*Package, bool) {
	for i := range c.Packages {
		if c.Packages[i].ID == id {
			return &c.Packages[i], true
		}
	}
	return nil, false
}

// CategoriesFor returns the achievement categories measured against the metric.
func (c *Catalog) CategoriesFor(metric string) []*AchievementCategory {
	var categories []*AchievementCategory
	for i := range c.Achievements {
		if c.Achievements[i].Metric == metric {
			categories = append(categories, &c.Achievements[i])
		}
	}
	return categories
}

// LoadCatalog reads the catalog from path. When the file does not exist the built-in
// catalog is used.
func LoadCatalog(path string) (*Catalog, error) {
	log.Trace("--> LoadCatalog")
	defer log.Trace("<-- LoadCatalog")

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.WithField("path", path).Info("catalog file not found, using the built-in catalog")
		return DefaultCatalog()
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(b []byte) (*Catalog, error) {
	c := Catalog{
		ResetSchedule: ScheduleSettings{DailyHour: 4, WeeklyWeekday: "monday", WeeklyHour: 4},
		Daily:         DailySettings{Amount: 50, CooldownHours: 22},
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate checks the catalog and fills in derived values. All problems are reported together.
func (c *Catalog) validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidCatalog}, args...)...))
	}

	c.schedule = cycle.DefaultSchedule()
	if c.ResetSchedule.WeeklyWeekday != "" {
		day, err := cycle.ParseWeekday(c.ResetSchedule.WeeklyWeekday)
		if err != nil {
			invalid("%v", err)
		}
		c.schedule.WeeklyDay = day
	}
	c.schedule.DailyHour = c.ResetSchedule.DailyHour
	c.schedule.WeeklyHour = c.ResetSchedule.WeeklyHour
	if c.schedule.DailyHour < 0 || c.schedule.DailyHour > 23 || c.schedule.WeeklyHour < 0 || c.schedule.WeeklyHour > 23 {
		invalid("reset hours must be between 0 and 23")
	}

	missionIDs := make(map[string]bool)
	for _, m := range c.Missions {
		if m.ID == "" {
			invalid("mission without an id")
			continue
		}
		if missionIDs[m.ID] {
			invalid("duplicate mission id %q", m.ID)
		}
		missionIDs[m.ID] = true
		if !m.Recurrence.Valid() {
			invalid("mission %q has unknown recurrence %q", m.ID, m.Recurrence)
		}
		if len(m.Conditions) == 0 {
			invalid("mission %q has no conditions", m.ID)
		}
		for _, cond := range m.Conditions {
			if !conditionTypes[cond.Type] {
				invalid("mission %q has unknown condition type %q", m.ID, cond.Type)
			}
			if cond.Required <= 0 {
				invalid("mission %q condition %q must require a positive value", m.ID, cond.Type)
			}
			if cond.Type == CondCommandCategory && cond.Category == "" {
				invalid("mission %q condition %q needs a category", m.ID, cond.Type)
			}
			if cond.Type == CondCommandUsed && cond.Command == "" {
				invalid("mission %q condition %q needs a command", m.ID, cond.Type)
			}
		}
	}

	categoryIDs := make(map[string]bool)
	tierIDs := make(map[string]bool)
	for _, a := range c.Achievements {
		if categoryIDs[a.ID] {
			invalid("duplicate achievement id %q", a.ID)
		}
		categoryIDs[a.ID] = true
		if !metricTypes[a.Metric] {
			invalid("achievement %q has unknown metric %q", a.ID, a.Metric)
		}
		if (a.Metric == MetricCommandCategory || a.Metric == MetricChannelMessages) && a.Scope == "" {
			invalid("achievement %q needs a scope for metric %q", a.ID, a.Metric)
		}
		if len(a.Tiers) == 0 {
			invalid("achievement %q has no tiers", a.ID)
		}
		for _, t := range a.Tiers {
			if tierIDs[t.ID] {
				invalid("duplicate tier id %q", t.ID)
			}
			tierIDs[t.ID] = true
			if t.Threshold <= 0 {
				invalid("tier %q must have a positive threshold", t.ID)
			}
		}
	}

	itemIDs := make(map[string]bool)
	for _, item := range c.ShopItems {
		if itemIDs[item.ID] {
			invalid("duplicate shop item id %q", item.ID)
		}
		itemIDs[item.ID] = true
	}

	packageIDs := make(map[string]bool)
	for _, p := range c.Packages {
		if packageIDs[p.ID] {
			invalid("duplicate package id %q", p.ID)
		}
		packageIDs[p.ID] = true
		if p.Amount <= 0 {
			invalid("package %q must grant a positive amount", p.ID)
		}
	}

	if c.Daily.Amount < 0 || c.Daily.CooldownHours < 0 {
		invalid("daily reward settings must not be negative")
	}
	if c.XP.MessageMin > c.XP.MessageMax || c.XP.ReactionMin > c.XP.ReactionMax || c.XP.VoiceMin > c.XP.VoiceMax {
		invalid("xp minimums must not exceed maximums")
	}

	return errors.Join(errs...)
}
