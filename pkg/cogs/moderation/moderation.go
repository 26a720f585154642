// Package moderation provides the warning chat commands for moderators.
package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/checks"
	"github.com/rbrabson/chronicles/pkg/moderation"
	"github.com/rbrabson/chronicles/pkg/msg"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/message"
)

// Category is the command category used for mission progress.
const Category = "moderacja"

var moderatorPermissions int64 = discordgo.PermissionModerateMembers

var adminCommands = []*discordgo.ApplicationCommand{
	{
		Name:                     "warn",
		Description:              "Ostrzeżenia członków.",
		DefaultMemberPermissions: &moderatorPermissions,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "add",
				Description: "Udziela ostrzeżenia członkowi.",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Członek serwera.", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Powód ostrzeżenia.", Required: true},
				},
			},
			{
				Name:        "remove",
				Description: "Usuwa ostrzeżenie o podanym identyfikatorze.",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: "Identyfikator ostrzeżenia.", Required: true},
				},
			},
			{
				Name:        "list",
				Description: "Pokazuje ostrzeżenia członka.",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "Członek serwera.", Required: true},
				},
			},
		},
	},
}

// Cog serves the warning commands.
type Cog struct {
	moderator *moderation.Moderator
}

// New creates the warning commands over the moderator.
func New(moderator *moderation.Moderator) *Cog {
	return &Cog{moderator: moderator}
}

func (c *Cog) Name() string     { return "Moderacja" }
func (c *Cog) Category() string { return Category }

// GetCommands returns the component handlers, command handlers, and commands for moderation.
func (c *Cog) GetCommands() (map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), []*discordgo.ApplicationCommand) {
	commandHandlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"warn": c.warn,
	}
	return nil, commandHandlers, adminCommands
}

func (c *Cog) GetMemberHelp() []string {
	return nil
}

func (c *Cog) GetAdminHelp() []string {
	return msg.Help(c.Name(), adminCommands...)
}

// warn routes the warn sub-commands.
func (c *Cog) warn(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> warn")
	defer log.Trace("<-- warn")

	p := msg.Printer(i)
	if !checks.CanModerate(s, i) {
		msg.SendEphemeralResponse(s, i, "Nie masz uprawnień moderatora.")
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	var memberID, reason, warnID string
	for _, option := range sub.Options {
		switch option.Name {
		case "member":
			memberID = option.UserValue(nil).ID
		case "reason":
			reason = option.StringValue()
		case "id":
			warnID = option.StringValue()
		}
	}

	ctx := context.Background()
	switch sub.Name {
	case "add":
		w, total, err := c.moderator.AddWarning(ctx, i.GuildID, memberID, msg.Invoker(i).ID, reason)
		if err != nil {
			msg.SendEphemeralResponse(s, i, errorMessage(err))
			return
		}
		msg.SendResponse(s, i, p.Sprintf("<@%s> otrzymał ostrzeżenie (`%s`). Łącznie ostrzeżeń: %d.", memberID, w.ID, total))
	case "remove":
		w, remaining, err := c.moderator.RemoveWarning(ctx, warnID)
		if err != nil {
			msg.SendEphemeralResponse(s, i, errorMessage(err))
			return
		}
		msg.SendResponse(s, i, p.Sprintf("Usunięto ostrzeżenie `%s` dla <@%s>. Pozostało: %d.", w.ID, w.MemberID, remaining))
	case "list":
		warnings, err := c.moderator.ListWarnings(ctx, i.GuildID, memberID)
		if err != nil {
			msg.SendEphemeralResponse(s, i, errorMessage(err))
			return
		}
		msg.SendEphemeralResponse(s, i, formatWarnings(p, memberID, warnings))
	}
}

func formatWarnings(p *message.Printer, memberID string, warnings []*store.Warning) string {
	if len(warnings) == 0 {
		return fmt.Sprintf("<@%s> nie ma żadnych ostrzeżeń.", memberID)
	}
	rows := make([][]string, 0, len(warnings))
	for _, w := range warnings {
		rows = append(rows, []string{w.ID, w.CreatedAt.Format("2006-01-02"), w.Reason})
	}
	return p.Sprintf("Ostrzeżenia <@%s>: %d\n```\n%s```", memberID, len(warnings), msg.Table([]string{"ID", "Data", "Powód"}, rows))
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, moderation.ErrReasonRequired):
		return "Podaj powód ostrzeżenia."
	case errors.Is(err, store.ErrNotFound):
		return "Nie ma ostrzeżenia o takim identyfikatorze."
	default:
		return "Nie udało się zapisać zmian. Spróbuj ponownie później."
	}
}
