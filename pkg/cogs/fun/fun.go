// Package fun provides the light-hearted chat commands: dice, the invite link and a whisper
// only the curious find.
package fun

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/activity"
	"github.com/rbrabson/chronicles/pkg/config"
	"github.com/rbrabson/chronicles/pkg/msg"
	log "github.com/sirupsen/logrus"
)

// Category is the command category used for mission progress.
const Category = "rozrywka"

const (
	defaultSides = 6
	maxSides     = 1000
)

// inviteScopes are the OAuth2 scopes requested by the invite link.
const inviteScopes = "bot%20applications.commands"

var memberCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "kostka",
		Description: "Rzuca kością.",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "sides",
				Description: "Liczba ścian kości, domyślnie 6.",
			},
		},
	},
	{
		Name:        "zapros",
		Description: "Podaje link, którym zaprosisz Elarę na inny serwer.",
	},
	{
		Name:        "szept",
		Description: "Nasłuchuje...",
	},
}

// Secrets records hidden discoveries.
type Secrets interface {
	Secret(ctx context.Context, guildID, memberID, metric string) (*activity.Result, error)
}

// Cog serves the fun commands.
type Cog struct {
	appID   string
	secrets Secrets
	roll    func(sides int) int
}

// New creates the fun commands. appID is the application used in invite links.
func New(appID string, secrets Secrets) *Cog {
	return &Cog{
		appID:   appID,
		secrets: secrets,
		roll:    func(sides int) int { return rand.IntN(sides) + 1 },
	}
}

func (c *Cog) Name() string     { return "Rozrywka" }
func (c *Cog) Category() string { return Category }

// GetCommands returns the component handlers, command handlers, and commands for fun.
func (c *Cog) GetCommands() (map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), []*discordgo.ApplicationCommand) {
	commandHandlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"kostka": c.dice,
		"zapros": c.invite,
		"szept":  c.whisper,
	}
	return nil, commandHandlers, memberCommands
}

// GetMemberHelp leaves the whisper out.
func (c *Cog) GetMemberHelp() []string {
	return msg.Help(c.Name(), memberCommands[:2]...)
}

func (c *Cog) GetAdminHelp() []string {
	return nil
}

func (c *Cog) dice(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> dice")
	defer log.Trace("<-- dice")

	sides := defaultSides
	for _, option := range i.ApplicationCommandData().Options {
		if option.Name == "sides" {
			sides = int(option.IntValue())
		}
	}
	if sides < 2 || sides > maxSides {
		msg.SendEphemeralResponse(s, i, fmt.Sprintf("Kość musi mieć od 2 do %d ścian.", maxSides))
		return
	}
	msg.SendResponse(s, i, fmt.Sprintf("🎲 Wypadło **%d** (k%d).", c.roll(sides), sides))
}

// InviteURL returns the link that adds the application to another server.
func InviteURL(appID string) string {
	return fmt.Sprintf("https://discord.com/oauth2/authorize?client_id=%s&scope=%s", appID, inviteScopes)
}

func (c *Cog) invite(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> invite")
	defer log.Trace("<-- invite")

	msg.SendEphemeralResponse(s, i, "Zabierz Kroniki dalej: "+InviteURL(c.appID))
}

func (c *Cog) whisper(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> whisper")
	defer log.Trace("<-- whisper")

	resp := "*Cisza... a jednak coś słyszysz. Elara szepcze: „Nie wszystkie opowieści zostały spisane.”*"
	if c.secrets != nil {
		result, err := c.secrets.Secret(context.Background(), i.GuildID, msg.Invoker(i).ID, config.MetricSpecialCommand)
		if err != nil {
			log.WithFields(log.Fields{"guild": i.GuildID, "error": err}).Warn("unable to record the whisper")
		}
		if result != nil && len(result.Achievements) != 0 {
			resp += "\nOdblokowano ukryte osiągnięcie!"
		}
	}
	msg.SendEphemeralResponse(s, i, resp)
}
