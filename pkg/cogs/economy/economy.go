// Package economy provides the wallet, daily reward, ranking and currency administration
// chat commands.
package economy

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/format"
	"github.com/rbrabson/chronicles/pkg/msg"
	"github.com/rbrabson/chronicles/pkg/store"
	"golang.org/x/text/message"
)

// Category is the command category used for mission progress.
const Category = "ekonomia"

// Cog serves the economy commands.
type Cog struct {
	bank  *economy.Bank
	stats store.StatsStore
}

// New creates the economy commands over the bank.
func New(bank *economy.Bank, stats store.StatsStore) *Cog {
	return &Cog{bank: bank, stats: stats}
}

func (c *Cog) Name() string     { return "Ekonomia" }
func (c *Cog) Category() string { return Category }

// GetCommands returns the component handlers, command handlers, and commands for the economy.
func (c *Cog) GetCommands() (map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), []*discordgo.ApplicationCommand) {
	commandHandlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"wallet":         c.wallet,
		"daily":          c.daily,
		"ranking":        c.ranking,
		"currency-admin": c.admin,
	}
	commands := make([]*discordgo.ApplicationCommand, 0, len(memberCommands)+len(adminCommands))
	commands = append(commands, memberCommands...)
	commands = append(commands, adminCommands...)
	return nil, commandHandlers, commands
}

// GetMemberHelp returns help for member commands.
func (c *Cog) GetMemberHelp() []string {
	return msg.Help(c.Name(), memberCommands...)
}

// GetAdminHelp returns help for admin commands.
func (c *Cog) GetAdminHelp() []string {
	return msg.Help(c.Name(), adminCommands...)
}

// CurrencyName returns the display name of the currency.
func CurrencyName(currency store.Currency) string {
	if currency == store.Premium {
		return "Gwiezdne Kryształy"
	}
	return "Dukaty"
}

// errorMessage turns a bank error into a message for the member.
func errorMessage(p *message.Printer, err error) string {
	var cooldown *economy.DailyCooldownError
	switch {
	case errors.As(err, &cooldown):
		return p.Sprintf("Dzienną nagrodę już odebrałeś. Wróć za %s.", format.Duration(cooldown.Remaining))
	case errors.Is(err, store.ErrInsufficientFunds):
		return "Ten członek nie ma tyle środków."
	case errors.Is(err, economy.ErrInvalidAmount):
		return "Kwota musi być dodatnia."
	case errors.Is(err, store.ErrUnavailable):
		return "Kroniki są chwilowo niedostępne. Spróbuj ponownie za moment."
	default:
		return "Coś poszło nie tak. Spróbuj ponownie później."
	}
}
