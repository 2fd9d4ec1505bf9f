package bot

import (
	"context"
	"fmt"
	"sort"

	"embed-bot/command"
	"embed-bot/delivery"
	"embed-bot/models"
	"embed-bot/service"
	"embed-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Bot encapsulates the bot's state and the collaborators handlers call into.
type Bot struct {
	Session  *discordgo.Session
	Commands map[string]command.Command
	Service  *service.Service
	Delivery *delivery.Engine
	Auth     *utils.Auth
	Logger   *zap.Logger

	scheduler *Scheduler
	health    *HealthServer
}

// Deps are the collaborators a Bot is assembled from.
type Deps struct {
	Service   *service.Service
	Delivery  *delivery.Engine
	Auth      *utils.Auth
	Scheduler *Scheduler
	Health    *HealthServer
}

// NewSession creates the Discord session with the intents the bot listens to.
func NewSession(cfg models.BotConfig) (*discordgo.Session, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent
	return dg, nil
}

// NewBot creates a Bot around an existing session.
func NewBot(session *discordgo.Session, deps Deps, logger *zap.Logger) *Bot {
	return &Bot{
		Session:   session,
		Commands:  make(map[string]command.Command),
		Service:   deps.Service,
		Delivery:  deps.Delivery,
		Auth:      deps.Auth,
		Logger:    logger,
		scheduler: deps.Scheduler,
		health:    deps.Health,
	}
}

// RegisterCommands registers the provided commands.
func (b *Bot) RegisterCommands(commands []command.Command) {
	for _, cmd := range commands {
		b.Commands[cmd.Definition().Name] = cmd
	}
}

func (b *Bot) commandList() []command.Command {
	names := make([]string, 0, len(b.Commands))
	for name := range b.Commands {
		names = append(names, name)
	}
	sort.Strings(names)

	cmds := make([]command.Command, 0, len(names))
	for _, name := range names {
		cmds = append(cmds, b.Commands[name])
	}
	return cmds
}

// Start registers handlers, opens the session and syncs slash commands.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)

	if b.health != nil {
		b.Session.AddHandler(func(s *discordgo.Session, _ *discordgo.Connect) {
			b.health.SetServing(true)
		})
		b.Session.AddHandler(func(s *discordgo.Session, _ *discordgo.Disconnect) {
			b.health.SetServing(false)
		})
	}

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	// Overwriting drops commands left behind by earlier deployments.
	defs := command.Definitions(b.commandList())
	if _, err := b.Session.ApplicationCommandBulkOverwrite(b.Session.State.User.ID, "", defs); err != nil {
		b.Logger.Error("Cannot sync commands", zap.Int("commands", len(defs)), zap.Error(err))
	}

	if b.scheduler != nil {
		if err := b.scheduler.Start(); err != nil {
			return err
		}
	}

	b.Logger.Info("Bot is now running")
	return nil
}

// Stop gracefully closes the bot's session.
func (b *Bot) Stop() {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
	if b.health != nil {
		b.health.SetServing(false)
	}
	if b.Session != nil {
		if err := b.Session.Close(); err != nil {
			b.Logger.Warn("Error closing session", zap.Error(err))
		}
	}
	b.Logger.Info("Bot stopped gracefully")
}

// Run starts the bot and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, registerHandlers func(*Bot), commands []command.Command) error {
	b.RegisterCommands(commands)

	if err := b.Start(registerHandlers); err != nil {
		return err
	}

	<-ctx.Done()
	b.Stop()
	return nil
}
