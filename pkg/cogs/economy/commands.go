package economy

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/checks"
	"github.com/rbrabson/chronicles/pkg/economy"
	"github.com/rbrabson/chronicles/pkg/msg"
	"github.com/rbrabson/chronicles/pkg/store"
	log "github.com/sirupsen/logrus"
)

var currencyChoices = []*discordgo.ApplicationCommandOptionChoice{
	{Name: "Dukaty", Value: string(store.Primary)},
	{Name: "Gwiezdne Kryształy", Value: string(store.Premium)},
}

var adminPermissions int64 = discordgo.PermissionManageServer

var (
	memberCommands = []*discordgo.ApplicationCommand{
		{
			Name:        "wallet",
			Description: "Pokazuje stan sakiewki, poziom i doświadczenie.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "member",
					Description: "Członek, którego sakiewkę chcesz zobaczyć.",
				},
			},
		},
		{
			Name:        "daily",
			Description: "Odbiera dzienną nagrodę w Dukatach.",
		},
		{
			Name:        "ranking",
			Description: "Pokazuje najbogatszych Kronikarzy serwera.",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "currency",
					Description: "Waluta rankingu.",
					Required:    true,
					Choices:     currencyChoices,
				},
			},
		},
	}

	adminCommands = []*discordgo.ApplicationCommand{
		{
			Name:                     "currency-admin",
			Description:              "Zarządza walutami członków.",
			DefaultMemberPermissions: &adminPermissions,
			Options: []*discordgo.ApplicationCommandOption{
				adminSubcommand("give", "Dodaje walutę członkowi."),
				adminSubcommand("take", "Zabiera walutę członkowi."),
				adminSubcommand("set", "Ustawia saldo członka."),
			},
		},
	}
)

func adminSubcommand(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        name,
		Description: description,
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "member",
				Description: "Członek serwera.",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "Kwota.",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "currency",
				Description: "Waluta, domyślnie Dukaty.",
				Choices:     currencyChoices,
			},
		},
	}
}

// wallet shows the balances, level and experience of a member.
func (c *Cog) wallet(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> wallet")
	defer log.Trace("<-- wallet")

	p := msg.Printer(i)
	ctx := context.Background()

	user := msg.Invoker(i)
	for _, option := range i.ApplicationCommandData().Options {
		if option.Name == "member" {
			user = option.UserValue(s)
		}
	}

	w, err := c.bank.Balance(ctx, i.GuildID, user.ID)
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}
	stats, err := c.stats.GetStats(ctx, i.GuildID, user.ID)
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}
	rank, err := c.bank.Rank(ctx, i.GuildID, user.ID, store.Primary)
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}

	next := economy.TotalXPForLevel(stats.Level + 1)
	embed := &discordgo.MessageEmbed{
		Type:  discordgo.EmbedTypeRich,
		Title: p.Sprintf("Sakiewka: %s", user.Username),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Dukaty", Value: p.Sprintf("%d", w.Primary), Inline: true},
			{Name: "Gwiezdne Kryształy", Value: p.Sprintf("%d", w.Premium), Inline: true},
			{Name: "Ranking", Value: p.Sprintf("#%d", rank), Inline: true},
			{Name: "Poziom", Value: p.Sprintf("%d", stats.Level), Inline: true},
			{Name: "Doświadczenie", Value: p.Sprintf("%d / %d", stats.XP, next), Inline: true},
			{Name: "Seria dni", Value: p.Sprintf("%d", stats.Streak), Inline: true},
		},
	}
	msg.SendEmbeds(s, i, []*discordgo.MessageEmbed{embed}, true)
}

// daily pays out the daily reward.
func (c *Cog) daily(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> daily")
	defer log.Trace("<-- daily")

	p := msg.Printer(i)
	user := msg.Invoker(i)
	w, err := c.bank.ClaimDaily(context.Background(), i.GuildID, user.ID)
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}
	msg.SendResponse(s, i, p.Sprintf("Odebrano dzienną nagrodę! Masz teraz %d Dukatów.", w.Primary))
}

// ranking shows the top ten members in the chosen currency.
func (c *Cog) ranking(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> ranking")
	defer log.Trace("<-- ranking")

	p := msg.Printer(i)
	currency := store.Primary
	for _, option := range i.ApplicationCommandData().Options {
		if option.Name == "currency" {
			currency = store.Currency(option.StringValue())
		}
	}

	wallets, err := c.bank.Ranking(context.Background(), i.GuildID, currency, rankingSize)
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}
	entries := make([]rankingEntry, 0, len(wallets))
	for _, w := range wallets {
		entries = append(entries, rankingEntry{name: memberName(s, i.GuildID, w.MemberID), balance: w.Balance(currency)})
	}
	title := p.Sprintf("Ranking: %s", CurrencyName(currency))
	msg.SendEmbeds(s, i, formatRanking(p, title, entries))
}

// admin routes the currency-admin sub-commands.
func (c *Cog) admin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	log.Trace("--> admin")
	defer log.Trace("<-- admin")

	p := msg.Printer(i)
	if !checks.CanManageEconomy(s, i) {
		msg.SendEphemeralResponse(s, i, "Nie masz uprawnień do zarządzania walutami.")
		return
	}

	sub := i.ApplicationCommandData().Options[0]
	var memberID string
	var amount int64
	currency := store.Primary
	for _, option := range sub.Options {
		switch option.Name {
		case "member":
			memberID = option.UserValue(nil).ID
		case "amount":
			amount = option.IntValue()
		case "currency":
			currency = store.Currency(option.StringValue())
		}
	}

	ctx := context.Background()
	var w *store.Wallet
	var err error
	switch sub.Name {
	case "give":
		w, err = c.bank.Give(ctx, i.GuildID, memberID, currency, amount)
	case "take":
		w, err = c.bank.Take(ctx, i.GuildID, memberID, currency, amount)
	case "set":
		w, err = c.bank.Set(ctx, i.GuildID, memberID, currency, amount)
	}
	if err != nil {
		msg.SendEphemeralResponse(s, i, errorMessage(p, err))
		return
	}

	log.WithFields(log.Fields{
		"admin":    msg.Invoker(i).ID,
		"member":   memberID,
		"action":   sub.Name,
		"currency": currency,
		"amount":   amount,
	}).Info("/currency-admin")

	resp := p.Sprintf("Saldo <@%s> (%s): %d.", memberID, CurrencyName(currency), w.Balance(currency))
	msg.SendResponse(s, i, resp)
}
