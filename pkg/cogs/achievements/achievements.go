// Package achievements provides the chat command that lists achievement tiers.
package achievements

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/achievement"
	"github.com/rbrabson/chronicles/pkg/format"
	"github.com/rbrabson/chronicles/pkg/msg"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/message"
)

// Category is the command category used for mission progress.
const Category = "osiagniecia"

const (
	barWidth     = 8
	hiddenName   = "???"
	hiddenDetail = "Ukryte osiągnięcie. Odkryj je sam."
)

var memberCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "achievements",
		Description: "Pokazuje Twoje osiągnięcia i postęp w kolejnych.",
	},
}

// Cog serves the achievements command.
type Cog struct {
	evaluator *achievement.Evaluator
}

// New creates the achievements command over the evaluator.
func New(evaluator *achievement.Evaluator) *Cog {
	return &Cog{evaluator: evaluator}
}

func (c *Cog) Name() string     { return "Osiągnięcia" }
func (c *Cog) Category() string { return Category }

// GetCommands returns the component handlers, command handlers, and commands for achievements.
func (c *Cog) GetCommands() (map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), []*discordgo.ApplicationCommand) {
	commandHandlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"achievements": c.achievements,
	}
	return nil, commandHandlers, memberCommands
}

func (c *Cog) GetMemberHelp() []string {
	return msg.Help(c.Name(), memberCommands...)
}

func (c *Cog) GetAdminHelp() []string {
	return nil
}

func (c *Cog) achievements(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> achievements")
	defer log.Trace("<-- achievements")

	p := msg.Printer(i)
	statuses, err := c.evaluator.Evaluate(context.Background(), i.GuildID, msg.Invoker(i).ID)
	if err != nil {
		log.WithFields(log.Fields{"guild": i.GuildID, "error": err}).Error("unable to evaluate achievements")
		msg.SendEphemeralResponse(s, i, "Nie udało się odczytać osiągnięć. Spróbuj ponownie później.")
		return
	}
	msg.SendEmbeds(s, i, []*discordgo.MessageEmbed{formatAchievements(p, statuses)}, true)
}

// formatAchievements renders the tiers in the order the evaluator returns them, unlocked first.
func formatAchievements(p *message.Printer, statuses []*achievement.TierStatus) *discordgo.MessageEmbed {
	unlocked := 0
	fields := make([]*discordgo.MessageEmbedField, 0, len(statuses))
	for _, st := range statuses {
		if st.Unlocked {
			unlocked++
		}
		fields = append(fields, formatTier(p, st))
	}
	// Discord allows at most 25 fields in an embed.
	if len(fields) > 25 {
		fields = fields[:25]
	}
	return &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       "Osiągnięcia",
		Description: p.Sprintf("Odblokowano %d z %d.", unlocked, len(statuses)),
		Fields:      fields,
	}
}

func formatTier(p *message.Printer, st *achievement.TierStatus) *discordgo.MessageEmbedField {
	switch {
	case st.Unlocked:
		var sb strings.Builder
		sb.WriteString(st.Description)
		if st.UnlockedAt != nil {
			sb.WriteString(fmt.Sprintf("\nOdblokowano <t:%d:D>", st.UnlockedAt.Unix()))
		}
		return &discordgo.MessageEmbedField{Name: fmt.Sprintf("%s %s", st.Badge, st.Name), Value: sb.String(), Inline: true}
	case st.Progress == nil:
		return &discordgo.MessageEmbedField{Name: "🔒 " + hiddenName, Value: hiddenDetail, Inline: true}
	default:
		value := p.Sprintf("%s\n%s %d/%d", st.Description, format.ProgressBar(*st.Progress, st.Required, barWidth), *st.Progress, st.Required)
		return &discordgo.MessageEmbedField{Name: "🔒 " + st.Name, Value: value, Inline: true}
	}
}
