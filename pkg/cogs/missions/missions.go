// Package missions provides the chat command that shows mission progress.
package missions

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/cycle"
	"github.com/rbrabson/chronicles/pkg/format"
	"github.com/rbrabson/chronicles/pkg/mission"
	"github.com/rbrabson/chronicles/pkg/msg"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/message"
)

// Category is the command category used for mission progress.
const Category = "misje"

const barWidth = 10

var memberCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "missions",
		Description: "Pokazuje Twoje misje dzienne, tygodniowe i jednorazowe.",
	},
}

var sections = []struct {
	recurrence cycle.Recurrence
	title      string
}{
	{cycle.Daily, "Misje dzienne"},
	{cycle.Weekly, "Misje tygodniowe"},
	{cycle.OneTime, "Misje jednorazowe"},
}

// Cog serves the missions command.
type Cog struct {
	tracker *mission.Tracker
}

// New creates the missions command over the tracker.
func New(tracker *mission.Tracker) *Cog {
	return &Cog{tracker: tracker}
}

func (c *Cog) Name() string     { return "Misje" }
func (c *Cog) Category() string { return Category }

// GetCommands returns the component handlers, command handlers, and commands for missions.
func (c *Cog) GetCommands() (map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), []*discordgo.ApplicationCommand) {
	commandHandlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"missions": c.missions,
	}
	return nil, commandHandlers, memberCommands
}

func (c *Cog) GetMemberHelp() []string {
	return msg.Help(c.Name(), memberCommands...)
}

func (c *Cog) GetAdminHelp() []string {
	return nil
}

// missions shows the member's progress on every mission.
func (c *Cog) missions(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> missions")
	defer log.Trace("<-- missions")

	p := msg.Printer(i)
	statuses, err := c.tracker.Statuses(context.Background(), i.GuildID, msg.Invoker(i).ID)
	if err != nil {
		log.WithFields(log.Fields{"guild": i.GuildID, "error": err}).Error("unable to read mission progress")
		msg.SendEphemeralResponse(s, i, "Nie udało się odczytać postępu misji. Spróbuj ponownie później.")
		return
	}
	msg.SendEmbeds(s, i, formatStatuses(p, statuses), true)
}

// formatStatuses renders one embed per recurrence that has missions.
func formatStatuses(p *message.Printer, statuses []*mission.Status) []*discordgo.MessageEmbed {
	var embeds []*discordgo.MessageEmbed
	for _, section := range sections {
		var fields []*discordgo.MessageEmbedField
		var resetsAt string
		for _, st := range statuses {
			if st.Mission.Recurrence != section.recurrence {
				continue
			}
			fields = append(fields, formatStatus(p, st))
			if st.ResetsAt != nil {
				resetsAt = fmt.Sprintf("<t:%d:R>", st.ResetsAt.Unix())
			}
		}
		if len(fields) == 0 {
			continue
		}
		embed := &discordgo.MessageEmbed{Type: discordgo.EmbedTypeRich, Title: section.title, Fields: fields}
		if resetsAt != "" {
			embed.Description = "Reset " + resetsAt
		}
		embeds = append(embeds, embed)
	}
	return embeds
}

func formatStatus(p *message.Printer, st *mission.Status) *discordgo.MessageEmbedField {
	var sb strings.Builder
	sb.WriteString(st.Mission.Description)
	sb.WriteString("\n")
	for _, c := range st.Conditions {
		sb.WriteString(p.Sprintf("%s %d/%d\n", format.ProgressBar(c.Current, c.Required, barWidth), c.Current, c.Required))
	}
	sb.WriteString(rewards(p, st.Mission.Rewards))

	mark := "⬜"
	if st.Status == mission.StatusCompleted {
		mark = "✅"
	}
	return &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("%s %s %s", mark, st.Mission.Icon, st.Mission.Name),
		Value: sb.String(),
	}
}

// rewards renders the rewards of a mission, such as "Nagroda: 100 XP, 25 Dukatów".
func rewards(p *message.Printer, r config.Rewards) string {
	var parts []string
	if r.XP > 0 {
		parts = append(parts, p.Sprintf("%d XP", r.XP))
	}
	if r.Primary > 0 {
		parts = append(parts, p.Sprintf("%d Dukatów", r.Primary))
	}
	if r.Premium > 0 {
		parts = append(parts, p.Sprintf("%d Gwiezdnych Kryształów", r.Premium))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Nagroda: " + strings.Join(parts, ", ")
}
