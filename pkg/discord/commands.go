package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/checks"
	"github.com/rbrabson/chronicles/pkg/msg"
	log "github.com/sirupsen/logrus"
)

const helpCategory = "pomoc"

var helpCommand = &discordgo.ApplicationCommand{
	Name:        "help",
	Description: "Opisuje komendy dostępne na serwerze.",
}

// onInteraction dispatches slash commands and components, then feeds the command into
// mission progress.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		h, ok := b.commandHandlers[name]
		if !ok {
			return
		}
		h(s, i)
		b.recordCommand(i, name)
	case discordgo.InteractionMessageComponent:
		if h, ok := b.componentHandlers[i.MessageComponentData().CustomID]; ok {
			h(s, i)
		}
	}
}

func (b *Bot) recordCommand(i *discordgo.InteractionCreate, name string) {
	user := msg.Invoker(i)
	if b.opts.Activity == nil || i.GuildID == "" || user == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := b.opts.Activity.Command(ctx, i.GuildID, user.ID, name, b.categories[name]); err != nil {
		log.WithFields(log.Fields{"command": name, "member": user.ID, "error": err}).Warn("unable to record command usage")
	}
}

// help lists the member commands, and the admin commands for members who may use them.
func (b *Bot) help(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> help")
	defer log.Trace("<-- help")

	resp := b.memberHelp()
	if i.Member != nil && checks.CanManageEconomy(s, i) {
		resp += "\n" + b.adminHelp()
	}
	msg.SendEphemeralResponse(s, i, resp)
}
