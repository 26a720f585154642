// Package shop provides the shop and inventory chat commands.
package shop

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	cogeconomy "github.com/rbrabson/chronicles/pkg/cogs/economy"
	"github.com/rbrabson/chronicles/pkg/format"
	"github.com/rbrabson/chronicles/pkg/msg"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
	"golang.org/x/text/message"
)

// Category is the command category used for mission progress.
const Category = "sklep"

// Cog serves the shop commands.
type Cog struct {
	shop *shop.Engine
}

// New creates the shop commands over the engine.
func New(engine *shop.Engine) *Cog {
	return &Cog{shop: engine}
}

func (c *Cog) Name() string     { return "Sklep" }
func (c *Cog) Category() string { return Category }

// GetCommands returns the component handlers, command handlers, and commands for the shop.
func (c *Cog) GetCommands() (map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate), []*discordgo.ApplicationCommand) {
	commandHandlers := map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate){
		"shop":      c.shopCommand,
		"inventory": c.inventory,
	}
	return nil, commandHandlers, memberCommands
}

// GetMemberHelp returns help for member commands.
func (c *Cog) GetMemberHelp() []string {
	return msg.Help(c.Name(), memberCommands...)
}

// GetAdminHelp returns nothing; the catalog is managed through the dashboard API.
func (c *Cog) GetAdminHelp() []string {
	return nil
}

// price renders the prices of the item, such as "200 Dukaty / 10 Gwiezdne Kryształy".
func price(p *message.Printer, item *store.ShopItem) string {
	var prices []string
	for _, currency := range []store.Currency{store.Primary, store.Premium} {
		if cost, ok := item.Cost(currency); ok {
			prices = append(prices, p.Sprintf("%d %s", cost, cogeconomy.CurrencyName(currency)))
		}
	}
	return strings.Join(prices, " / ")
}

// describeItem renders a catalog entry for the shop list.
func describeItem(p *message.Printer, item *store.ShopItem) *discordgo.MessageEmbedField {
	var sb strings.Builder
	sb.WriteString(item.Description)
	sb.WriteString("\n")
	sb.WriteString(p.Sprintf("Cena: %s", price(p, item)))
	if item.DurationSeconds != nil {
		sb.WriteString(p.Sprintf(", czas działania: %s", format.Duration(time.Duration(*item.DurationSeconds)*time.Second)))
	}
	if item.Stock != store.UnlimitedStock {
		sb.WriteString(p.Sprintf(", pozostało: %d", item.Stock))
	}
	return &discordgo.MessageEmbedField{
		Name:  fmt.Sprintf("%s %s (`%s`)", item.Emoji, item.Name, item.ID),
		Value: sb.String(),
	}
}

// errorMessage turns a purchase error into a message for the member.
func errorMessage(p *message.Printer, err error) string {
	var funds *shop.InsufficientFundsError
	var stock *shop.OutOfStockError
	switch {
	case errors.As(err, &funds):
		return p.Sprintf("Brakuje Ci środków: masz %d %s, a przedmiot kosztuje %d.", funds.Balance, cogeconomy.CurrencyName(funds.Currency), funds.Cost)
	case errors.As(err, &stock):
		return "Ten przedmiot został już wyprzedany."
	case errors.Is(err, store.ErrNotFound):
		return "Nie ma takiego przedmiotu w sklepie. Sprawdź `/shop list`."
	case errors.Is(err, shop.ErrNoApplicablePrice):
		return "Tego przedmiotu nie można kupić za wybraną walutę."
	case errors.Is(err, store.ErrUnavailable):
		return "Sklep jest chwilowo niedostępny. Spróbuj ponownie za moment."
	default:
		return "Coś poszło nie tak podczas zakupu. Spróbuj ponownie później."
	}
}
