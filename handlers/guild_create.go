package handlers

import (
	"context"
	"time"

	"embed-bot/bot"
	"embed-bot/models"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// GuildCreate onboards every guild the bot joins or sees on startup.
func GuildCreate(b *bot.Bot) func(s *discordgo.Session, g *discordgo.GuildCreate) {
	return func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if g.Guild == nil || g.Unavailable {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server, err := b.Service.Onboard(ctx, models.VendorDiscord, g.ID)
		if err != nil {
			b.Logger.Error("Failed to onboard guild", zap.String("guild_id", g.ID), zap.Error(err))
			return
		}
		b.Logger.Debug("Guild ready", zap.String("guild_id", g.ID), zap.String("guild", g.Name), zap.String("server_uid", server.UID))
	}
}
