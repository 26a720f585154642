package economy

import (
	"context"
	"fmt"
	"sort"

	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

// Stat is an activity counter members can be ranked by.
type Stat string

const (
	StatXP        Stat = "xp"
	StatMessages  Stat = "messages"
	StatVoiceTime Stat = "voicetime"
)

// Valid reports whether s is a known stat.
func (s Stat) Valid() bool {
	return s == StatXP || s == StatMessages || s == StatVoiceTime
}

// Value returns the counter of the stat.
func (s Stat) Value(ms *store.MemberStats) int64 {
	switch s {
	case StatXP:
		return ms.XP
	case StatMessages:
		return ms.Messages
	case StatVoiceTime:
		return ms.VoiceSeconds
	}
	return 0
}

// StatRanking returns up to limit members of the guild sorted by the stat, highest first.
// Ties are ordered by member id.
func (b *Bank) StatRanking(ctx context.Context, guildID string, stat Stat, limit int) ([]*store.MemberStats, error) {
	log.Trace("--> StatRanking")
	defer log.Trace("<-- StatRanking")

	if !stat.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStat, stat)
	}
	stats, err := b.store.ListStats(ctx, guildID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stats, func(i, j int) bool {
		vi, vj := stat.Value(stats[i]), stat.Value(stats[j])
		if vi != vj {
			return vi > vj
		}
		return stats[i].MemberID < stats[j].MemberID
	})
	return stats[:min(limit, len(stats))], nil
}

// GuildSummary totals the activity and the currency held in a guild.
type GuildSummary struct {
	GuildID        string `json:"guild_id"`
	TrackedMembers int    `json:"tracked_members"`
	Wallets        int    `json:"wallets"`
	Messages       int64  `json:"total_messages"`
	Reactions      int64  `json:"total_reactions"`
	VoiceSeconds   int64  `json:"total_voice_time_seconds"`
	XP             int64  `json:"total_xp"`
	Primary        int64  `json:"total_currency"`
	Premium        int64  `json:"total_premium_currency"`
}

// Summary adds up the counters and balances of every member of the guild.
func (b *Bank) Summary(ctx context.Context, guildID string) (*GuildSummary, error) {
	log.Trace("--> Summary")
	defer log.Trace("<-- Summary")

	stats, err := b.store.ListStats(ctx, guildID)
	if err != nil {
		return nil, err
	}
	wallets, err := b.store.ListWallets(ctx, guildID)
	if err != nil {
		return nil, err
	}
	summary := &GuildSummary{GuildID: guildID, TrackedMembers: len(stats), Wallets: len(wallets)}
	for _, s := range stats {
		summary.Messages += s.Messages
		summary.Reactions += s.Reactions
		summary.VoiceSeconds += s.VoiceSeconds
		summary.XP += s.XP
	}
	for _, w := range wallets {
		summary.Primary += w.Primary
		summary.Premium += w.Premium
	}
	return summary, nil
}
