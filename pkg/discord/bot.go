// Package discord connects the engines to Discord: slash commands, chat activity, timed roles.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rbrabson/chronicles/pkg/activity"
	log "github.com/sirupsen/logrus"
)

const (
	botIntents = discordgo.IntentGuilds |
		discordgo.IntentGuildMembers |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMessageReactions |
		discordgo.IntentGuildVoiceStates
)

// Cog is a group of slash commands.
type Cog interface {
	Name() string
	// Category is the command category reported to mission progress.
	Category() string
	GetCommands() (map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate),
		map[string]func(s *discordgo.Session, i *discordgo.InteractionCreate),
		[]*discordgo.ApplicationCommand)
	GetMemberHelp() []string
	GetAdminHelp() []string
}

// Activity ingests chat activity.
type Activity interface {
	Message(ctx context.Context, guildID, memberID, channelID string) (*activity.Result, error)
	Reaction(ctx context.Context, guildID, memberID string) (*activity.Result, error)
	Command(ctx context.Context, guildID, memberID, name, category string) (*activity.Result, error)
	Voice(ctx context.Context, guildID, memberID string, seconds int64) (*activity.Result, error)
}

// RoleExpirer revokes timed roles that ran out.
type RoleExpirer interface {
	ExpireRoles(ctx context.Context) (int, error)
}

// Options configure the bot.
type Options struct {
	Token string
	AppID string
	// GuildID registers the commands in one guild only. Empty registers them globally.
	GuildID     string
	Activity    Activity
	Roles       RoleExpirer
	SweepPeriod time.Duration
}

// Bot is the Discord front end.
type Bot struct {
	Session *discordgo.Session
	opts    Options
	cogs    []Cog

	componentHandlers map[string]func(*discordgo.Session, *discordgo.InteractionCreate)
	commandHandlers   map[string]func(*discordgo.Session, *discordgo.InteractionCreate)
	commands          []*discordgo.ApplicationCommand
	categories        map[string]string

	voice *voiceTracker
	stop  chan struct{}
}

func (b *Bot) addCommands(cog Cog) {
	compHandlers, cmdHandlers, cmds := cog.GetCommands()
	for k, handler := range compHandlers {
		b.componentHandlers[k] = handler
	}
	for k, handler := range cmdHandlers {
		b.commandHandlers[k] = handler
		b.categories[k] = cog.Category()
	}
	b.commands = append(b.commands, cmds...)
}

// NewBot creates a Discord bot that runs the commands of the cogs.
func NewBot(opts Options, cogs ...Cog) (*Bot, error) {
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = botIntents

	bot := &Bot{
		Session:           s,
		opts:              opts,
		cogs:              cogs,
		componentHandlers: make(map[string]func(*discordgo.Session, *discordgo.InteractionCreate)),
		commandHandlers:   make(map[string]func(*discordgo.Session, *discordgo.InteractionCreate)),
		commands:          make([]*discordgo.ApplicationCommand, 0),
		categories:        make(map[string]string),
		voice:             newVoiceTracker(time.Now),
		stop:              make(chan struct{}),
	}
	for _, cog := range cogs {
		bot.addCommands(cog)
	}
	bot.commandHandlers[helpCommand.Name] = bot.help
	bot.categories[helpCommand.Name] = helpCategory
	bot.commands = append(bot.commands, helpCommand)

	log.Debug("Add bot handlers")
	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.WithField("user", r.User.Username).Info("Chronicles bot is up!")
	})
	s.AddHandler(bot.onInteraction)
	s.AddHandler(bot.onMessage)
	s.AddHandler(bot.onReaction)
	s.AddHandler(bot.onVoiceState)

	return bot, nil
}

// Start connects to Discord, registers the slash commands and starts the timed role sweeper.
func (b *Bot) Start() error {
	if err := b.Session.Open(); err != nil {
		return err
	}

	log.WithField("commands", len(b.commands)).Debug("Add bot commands")
	if _, err := b.Session.ApplicationCommandBulkOverwrite(b.opts.AppID, b.opts.GuildID, b.commands); err != nil {
		b.Session.Close()
		return err
	}

	if b.opts.Roles != nil && b.opts.SweepPeriod > 0 {
		go b.sweepRoles()
	}
	return nil
}

// Stop stops the sweeper and closes the Discord connection.
func (b *Bot) Stop() error {
	close(b.stop)
	return b.Session.Close()
}
