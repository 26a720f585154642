package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/activity"
	log "github.com/sirupsen/logrus"
)

const eventTimeout = 10 * time.Second

// onMessage feeds guild messages of real members into the activity recorder.
func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if b.opts.Activity == nil || m.GuildID == "" || m.Author == nil || m.Author.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	result, err := b.opts.Activity.Message(ctx, m.GuildID, m.Author.ID, m.ChannelID)
	if err != nil {
		log.WithFields(log.Fields{"guild": m.GuildID, "member": m.Author.ID, "error": err}).Warn("unable to record message")
	}
	b.announce(s, m.ChannelID, m.Author.ID, result)
}

func (b *Bot) onReaction(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if b.opts.Activity == nil || r.GuildID == "" {
		return
	}
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	result, err := b.opts.Activity.Reaction(ctx, r.GuildID, r.UserID)
	if err != nil {
		log.WithFields(log.Fields{"guild": r.GuildID, "member": r.UserID, "error": err}).Warn("unable to record reaction")
	}
	b.announce(s, r.ChannelID, r.UserID, result)
}

// onVoiceState measures how long members stay in voice channels and records the time when
// they leave.
func (b *Bot) onVoiceState(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if b.opts.Activity == nil || v.VoiceState == nil || v.GuildID == "" {
		return
	}
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	if v.ChannelID != "" {
		b.voice.join(v.GuildID, v.UserID)
		return
	}
	seconds, ok := b.voice.leave(v.GuildID, v.UserID)
	if !ok || seconds <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if _, err := b.opts.Activity.Voice(ctx, v.GuildID, v.UserID, seconds); err != nil {
		log.WithFields(log.Fields{"guild": v.GuildID, "member": v.UserID, "seconds": seconds, "error": err}).Warn("unable to record voice time")
	}
}

// announce congratulates the member in the channel on a new level.
func (b *Bot) announce(s *discordgo.Session, channelID, memberID string, result *activity.Result) {
	if result == nil || result.LevelUp == nil {
		return
	}
	text := levelUpMessage(memberID, result)
	if _, err := s.ChannelMessageSend(channelID, text); err != nil {
		log.WithFields(log.Fields{"channel": channelID, "error": err}).Debug("unable to announce level up")
	}
}

func levelUpMessage(memberID string, result *activity.Result) string {
	text := fmt.Sprintf("✨ <@%s> osiąga **%d. Poziom Mocy Opowieści**!", memberID, result.LevelUp.Current)
	if result.LevelUp.Reward > 0 {
		text += fmt.Sprintf(" Nagroda: %d Dukatów.", result.LevelUp.Reward)
	}
	return text
}

// voiceTracker remembers when members joined a voice channel.
type voiceTracker struct {
	mu     sync.Mutex
	now    func() time.Time
	joined map[string]time.Time
}

func newVoiceTracker(now func() time.Time) *voiceTracker {
	return &voiceTracker{now: now, joined: make(map[string]time.Time)}
}

// join records the join time. Moving between channels keeps the original time.
func (t *voiceTracker) join(guildID, memberID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := guildID + ":" + memberID
	if _, ok := t.joined[key]; !ok {
		t.joined[key] = t.now()
	}
}

// leave returns the whole seconds spent since the join.
func (t *voiceTracker) leave(guildID, memberID string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := guildID + ":" + memberID
	joined, ok := t.joined[key]
	if !ok {
		return 0, false
	}
	delete(t.joined, key)
	return int64(t.now().Sub(joined) / time.Second), true
}
