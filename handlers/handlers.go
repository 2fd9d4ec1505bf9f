package handlers

import (
	"embed-bot/bot"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Register all handlers to the bot.
func Register(b *bot.Bot) {
	b.Session.AddHandler(InteractionCreate(b))
	b.Session.AddHandler(MessageCreate(b))
	b.Session.AddHandler(ReactionAdd(b))
	b.Session.AddHandler(GuildCreate(b))

	b.Session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.Logger.Info("Logged in", zap.String("username", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	})
}
