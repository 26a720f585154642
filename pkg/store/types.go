package store

import (
	"fmt"
	"time"
)

// Currency is one of the two wallet denominations.
type Currency string

const (
	Primary Currency = "primary" // dukaty
	Premium Currency = "premium" // krysztaly
)

// Valid reports whether c names a known currency.
func (c Currency) Valid() bool {
	return c == Primary || c == Premium
}

// ItemType is the closed set of shop item kinds.
type ItemType string

const (
	ItemOrdinaryBonus ItemType = "ordinary_bonus"
	ItemTimedRole     ItemType = "timed_role"
	ItemCosmetic      ItemType = "cosmetic"
	ItemOther         ItemType = "other"
)

// Valid reports whether t is one of the known item types.
func (t ItemType) Valid() bool {
	switch t {
	case ItemOrdinaryBonus, ItemTimedRole, ItemCosmetic, ItemOther:
		return true
	}
	return false
}

// UnlimitedStock marks an item that never runs out.
const UnlimitedStock int64 = -1

// Wallet holds both balances of a member on a guild.
type Wallet struct {
	GuildID   string    `json:"guild_id" bson:"guild_id"`
	MemberID  string    `json:"member_id" bson:"member_id"`
	Primary   int64     `json:"primary" bson:"primary"`
	Premium   int64     `json:"premium" bson:"premium"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Balance returns the balance held in the given currency.
func (w *Wallet) Balance(c Currency) int64 {
	if c == Premium {
		return w.Premium
	}
	return w.Primary
}

// ShopItem is an entry in the shop catalog.
type ShopItem struct {
	ID              string   `json:"id" bson:"_id" yaml:"id"`
	Name            string   `json:"name" bson:"name" yaml:"name"`
	Description     string   `json:"description" bson:"description" yaml:"description"`
	CostPrimary     *int64   `json:"cost_primary" bson:"cost_primary" yaml:"cost_primary"`
	CostPremium     *int64   `json:"cost_premium" bson:"cost_premium" yaml:"cost_premium"`
	Emoji           string   `json:"emoji" bson:"emoji" yaml:"emoji"`
	Type            ItemType `json:"item_type" bson:"item_type" yaml:"item_type"`
	BonusValue      float64  `json:"bonus_value" bson:"bonus_value" yaml:"bonus_value"`
	DurationSeconds *int64   `json:"duration_seconds" bson:"duration_seconds" yaml:"duration_seconds"`
	RoleID          string   `json:"role_id_to_grant,omitempty" bson:"role_id,omitempty" yaml:"role_id_to_grant"`
	Stock           int64    `json:"stock" bson:"stock" yaml:"stock"`
}

// Cost returns the price of the item in the currency, if it has one.
func (i *ShopItem) Cost(c Currency) (int64, bool) {
	var cost *int64
	if c == Premium {
		cost = i.CostPremium
	} else {
		cost = i.CostPrimary
	}
	if cost == nil {
		return 0, false
	}
	return *cost, true
}

// Duration returns how long the purchased effect lasts; zero means permanent.
func (i *ShopItem) Duration() time.Duration {
	if i.DurationSeconds == nil {
		return 0
	}
	return time.Duration(*i.DurationSeconds) * time.Second
}

// Possession is an item owned by a member. It is never changed once written.
type Possession struct {
	ID          string     `json:"possession_id" bson:"_id"`
	GuildID     string     `json:"guild_id" bson:"guild_id"`
	MemberID    string     `json:"member_id" bson:"member_id"`
	ItemID      string     `json:"item_id" bson:"item_id"`
	PurchasedAt time.Time  `json:"purchased_at" bson:"purchased_at"`
	ExpiresAt   *time.Time `json:"expires_at" bson:"expires_at"`
	BonusType   ItemType   `json:"bonus_type" bson:"bonus_type"`
	BonusValue  float64    `json:"bonus_value" bson:"bonus_value"`
}

// Active reports whether the possession is still in effect at the given time.
func (p *Possession) Active(now time.Time) bool {
	return p.ExpiresAt == nil || !now.After(*p.ExpiresAt)
}

// RoleGrant is a role handed out by the shop that has to be revoked when it expires.
type RoleGrant struct {
	GuildID   string    `json:"guild_id" bson:"guild_id"`
	MemberID  string    `json:"member_id" bson:"member_id"`
	RoleID    string    `json:"role_id" bson:"role_id"`
	ItemID    string    `json:"item_id" bson:"item_id"`
	GrantedAt time.Time `json:"granted_at" bson:"granted_at"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
}

// Key is the natural key of the grant.
func (g *RoleGrant) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s", g.GuildID, g.MemberID, g.RoleID, g.ItemID)
}

// Transaction kinds.
const (
	TxPurchase       = "purchase"
	TxPremiumPackage = "premium_package"
	TxAdjustment     = "adjustment"
)

// Transaction records a balance change and what caused it.
type Transaction struct {
	ID           string    `json:"id" bson:"_id"`
	GuildID      string    `json:"guild_id" bson:"guild_id"`
	MemberID     string    `json:"member_id" bson:"member_id"`
	Kind         string    `json:"kind" bson:"kind"`
	ItemID       string    `json:"item_id,omitempty" bson:"item_id,omitempty"`
	Currency     Currency  `json:"currency" bson:"currency"`
	Amount       int64     `json:"amount" bson:"amount"`
	PrimaryAfter int64     `json:"primary_after" bson:"primary_after"`
	PremiumAfter int64     `json:"premium_after" bson:"premium_after"`
	ExternalID   string    `json:"external_id,omitempty" bson:"external_id,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// ProgressKey identifies one mission condition counter within one cycle.
type ProgressKey struct {
	GuildID    string    `json:"guild_id" bson:"guild_id"`
	MemberID   string    `json:"member_id" bson:"member_id"`
	MissionID  string    `json:"mission_id" bson:"mission_id"`
	Condition  string    `json:"condition" bson:"condition"`
	CycleStart time.Time `json:"cycle_start" bson:"cycle_start"`
}

// String returns the key in its stored form.
func (k ProgressKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", k.GuildID, k.MemberID, k.MissionID, k.Condition, k.CycleStart.Unix())
}

// MissionProgress is the current value of a mission condition counter.
type MissionProgress struct {
	ProgressKey `bson:",inline"`
	Value       int64     `json:"value" bson:"value"`
	UpdatedAt   time.Time `json:"updated_at" bson:"updated_at"`
}

// MissionCompletion records that a member fulfilled a mission, once per cycle for recurring
// missions and once ever for one-time missions.
type MissionCompletion struct {
	GuildID     string    `json:"guild_id" bson:"guild_id"`
	MemberID    string    `json:"member_id" bson:"member_id"`
	MissionID   string    `json:"mission_id" bson:"mission_id"`
	OneTime     bool      `json:"one_time" bson:"one_time"`
	CycleStart  time.Time `json:"cycle_start" bson:"cycle_start"`
	CompletedAt time.Time `json:"completed_at" bson:"completed_at"`
}

// Key is the natural key of the completion. One-time missions have no cycle dimension.
func (c *MissionCompletion) Key() string {
	return CompletionKey(c.GuildID, c.MemberID, c.MissionID, c.OneTime, c.CycleStart)
}

// CompletionKey builds the natural key of a mission completion.
func CompletionKey(guildID, memberID, missionID string, oneTime bool, cycleStart time.Time) string {
	if oneTime {
		return fmt.Sprintf("%s:%s:%s", guildID, memberID, missionID)
	}
	return fmt.Sprintf("%s:%s:%s:%d", guildID, memberID, missionID, cycleStart.Unix())
}

// AchievementUnlock records that a member reached an achievement tier.
type AchievementUnlock struct {
	GuildID    string    `json:"guild_id" bson:"guild_id"`
	MemberID   string    `json:"member_id" bson:"member_id"`
	TierID     string    `json:"tier_id" bson:"tier_id"`
	UnlockedAt time.Time `json:"unlocked_at" bson:"unlocked_at"`
}

// Key is the natural key of the unlock.
func (u *AchievementUnlock) Key() string {
	return fmt.Sprintf("%s:%s:%s", u.GuildID, u.MemberID, u.TierID)
}

// MemberStats are the raw activity counters of a member on a guild.
type MemberStats struct {
	GuildID         string               `json:"guild_id" bson:"guild_id"`
	MemberID        string               `json:"member_id" bson:"member_id"`
	XP              int64                `json:"xp" bson:"xp"`
	Level           int64                `json:"level" bson:"level"`
	Messages        int64                `json:"messages" bson:"messages"`
	Reactions       int64                `json:"reactions" bson:"reactions"`
	VoiceSeconds    int64                `json:"voice_seconds" bson:"voice_seconds"`
	ContestWins     int64                `json:"contest_wins" bson:"contest_wins"`
	Streak          int64                `json:"streak" bson:"streak"`
	LastActiveDay   time.Time            `json:"last_active_day" bson:"last_active_day"`
	CommandUsage    map[string]int64     `json:"command_usage" bson:"command_usage"`
	ChannelMessages map[string]int64     `json:"channel_messages" bson:"channel_messages"`
	Cooldowns       map[string]time.Time `json:"cooldowns" bson:"cooldowns"`
}

// StatsDelta is a set of counter increments applied atomically.
type StatsDelta struct {
	XP           int64
	Messages     int64
	Reactions    int64
	VoiceSeconds int64
	ContestWins  int64
	// Category and Channel select the scoped counters incremented alongside the totals.
	Category string
	Channel  string
}

// Warning is a moderation warning issued to a member.
type Warning struct {
	ID          string    `json:"warn_id" bson:"_id"`
	GuildID     string    `json:"guild_id" bson:"guild_id"`
	MemberID    string    `json:"member_id" bson:"member_id"`
	ModeratorID string    `json:"moderator_id" bson:"moderator_id"`
	Reason      string    `json:"reason" bson:"reason"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Debit is an atomic purchase settlement request. The records are written in the same unit
// as the debit and any of them may be nil. The balances after the debit are filled into the
// transaction by the store.
type Debit struct {
	GuildID  string
	MemberID string
	ItemID   string
	Currency Currency
	Cost     int64

	Possession  *Possession
	RoleGrant   *RoleGrant
	Transaction *Transaction
}

// walletKey is the natural key of a wallet or stats document.
func walletKey(guildID, memberID string) string {
	return guildID + ":" + memberID
}
