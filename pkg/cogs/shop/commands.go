package shop

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	cogeconomy "github.com/rbrabson/chronicles/pkg/cogs/economy"
	"github.com/rbrabson/chronicles/pkg/format"
	"github.com/rbrabson/chronicles/pkg/msg"
	"github.com/rbrabson/chronicles/pkg/shop"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/message"
)

var memberCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "shop",
		Description: "Sklep Kronik",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "list",
				Description: "Pokazuje przedmioty dostępne w sklepie.",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "buy",
				Description: "Kupuje przedmiot ze sklepu.",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "item",
						Description: "Identyfikator przedmiotu z listy sklepu.",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "currency",
						Description: "Waluta zapłaty.",
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "Dukaty", Value: string(store.Primary)},
							{Name: "Gwiezdne Kryształy", Value: string(store.Premium)},
						},
					},
				},
			},
		},
	},
	{
		Name:        "inventory",
		Description: "Pokazuje Twoje zakupione przedmioty i aktywne bonusy.",
	},
}

// shopCommand routes the shop sub-commands.
func (c *Cog) shopCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> shop")
	defer log.Trace("<-- shop")

	options := i.ApplicationCommandData().Options
	switch options[0].Name {
	case "list":
		c.list(s, i)
	case "buy":
		c.buy(s, i, options[0].Options)
	}
}

// list shows the shop catalog.
func (c *Cog) list(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> list")
	defer log.Trace("<-- list")

	p := msg.Printer(i)
	items, err := c.shop.ListItems(context.Background())
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}
	if len(items) == 0 {
		msg.SendEphemeralResponse(s, i, "Sklep jest pusty.")
		return
	}
	fields := make([]*discordgo.MessageEmbedField, 0, len(items))
	for _, item := range items {
		fields = append(fields, describeItem(p, item))
	}
	embed := &discordgo.MessageEmbed{
		Type:   discordgo.EmbedTypeRich,
		Title:  "Sklep Kronik",
		Fields: fields,
	}
	msg.SendEmbeds(s, i, []*discordgo.MessageEmbed{embed}, true)
}

// buy settles the purchase of an item.
func (c *Cog) buy(s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	log.Trace("--> buy")
	defer log.Trace("<-- buy")

	var itemID string
	var currency *store.Currency
	for _, option := range options {
		switch option.Name {
		case "item":
			itemID = option.StringValue()
		case "currency":
			cur := store.Currency(option.StringValue())
			currency = &cur
		}
	}

	p := msg.Printer(i)
	ctx := context.Background()
	user := msg.Invoker(i)
	settlement, err := c.shop.Purchase(ctx, i.GuildID, user.ID, itemID, currency)
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}

	name := itemID
	if item, err := c.shop.GetItem(ctx, itemID); err == nil {
		name = item.Name
	}
	msg.SendEphemeralResponse(s, i, purchaseMessage(p, name, settlement))
}

// purchaseMessage describes a completed purchase.
func purchaseMessage(p *message.Printer, name string, settlement *shop.Settlement) string {
	resp := p.Sprintf("Kupiono **%s** za %d %s. Saldo: %d Dukatów, %d Gwiezdnych Kryształów.",
		name, settlement.Cost, cogeconomy.CurrencyName(settlement.Currency), settlement.Primary, settlement.Premium)
	if settlement.ExpiresAt != nil {
		resp += fmt.Sprintf(" Wygasa <t:%d:R>.", settlement.ExpiresAt.Unix())
	}
	if settlement.GrantError != nil {
		resp += " Nie udało się jednak nadać roli. Administracja została powiadomiona i nada ją ręcznie."
	}
	return resp
}

// inventory lists what the member owns.
func (c *Cog) inventory(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> inventory")
	defer log.Trace("<-- inventory")

	p := msg.Printer(i)
	ctx := context.Background()
	user := msg.Invoker(i)
	owned, err := c.shop.ListActive(ctx, i.GuildID, user.ID)
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}
	names := make(map[string]string)
	for _, o := range owned {
		if _, ok := names[o.ItemID]; ok {
			continue
		}
		names[o.ItemID] = o.ItemID
		if item, err := c.shop.GetItem(ctx, o.ItemID); err == nil {
			names[o.ItemID] = item.Name
		}
	}
	msg.SendEphemeralResponse(s, i, formatInventory(p, owned, names))
}

// formatInventory renders the possessions that are still in effect as a table.
func formatInventory(p *message.Printer, owned []*shop.Owned, names map[string]string) string {
	rows := make([][]string, 0, len(owned))
	for _, o := range owned {
		if !o.InEffect() {
			continue
		}
		remaining := "na zawsze"
		if o.RemainingSeconds != nil {
			remaining = format.Duration(time.Duration(*o.RemainingSeconds) * time.Second)
		}
		bonus := "-"
		if o.BonusValue > 0 {
			bonus = "+" + strconv.Itoa(int(o.BonusValue*100)) + "% XP"
		}
		rows = append(rows, []string{names[o.ItemID], bonus, remaining})
	}
	if len(rows) == 0 {
		return "Nie masz żadnych aktywnych przedmiotów."
	}
	return p.Sprintf("**Twój ekwipunek**\n```\n%s```", msg.Table([]string{"Przedmiot", "Bonus", "Pozostało"}, rows))
}
