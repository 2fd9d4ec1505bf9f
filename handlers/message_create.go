package handlers

import (
	"context"
	"fmt"
	"time"

	"embed-bot/bot"
	"embed-bot/models"
	"embed-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	placeholderContent = "🔥 Working on it 🥵"
	deleteEmoji        = "❌"
	// messageTimeout bounds fetch, transcode and send for one message.
	messageTimeout = 5 * time.Minute
)

// MessageCreate replaces messages carrying a supported link with the embedded media.
func MessageCreate(b *bot.Bot) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.GuildID == "" {
			return
		}
		if s.State.User != nil && m.Author.ID == s.State.User.ID {
			return
		}

		url := utils.FindFirstURL(m.Content)
		if url == "" || !b.Service.ShouldHandle(url) {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
		defer cancel()
		handleLinkMessage(ctx, b, s, m, url)
	}
}

func handleLinkMessage(ctx context.Context, b *bot.Bot, s *discordgo.Session, m *discordgo.MessageCreate, url string) {
	logger := b.Logger.With(zap.String("url", url), zap.String("guild_id", m.GuildID), zap.String("author_id", m.Author.ID))

	var placeholder *discordgo.Message
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ChannelMessageDelete(m.ChannelID, m.ID, discordgo.WithContext(gctx))
	})
	g.Go(func() error {
		msg, err := s.ChannelMessageSend(m.ChannelID, placeholderContent, discordgo.WithContext(gctx))
		placeholder = msg
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Warn("Failed to acknowledge message", zap.Error(err))
		if placeholder != nil {
			s.ChannelMessageDelete(placeholder.ChannelID, placeholder.ID)
		}
		return
	}

	post, err := b.Service.GetPost(ctx, models.VendorDiscord, m.GuildID, m.Author.ID, url)
	if err != nil {
		logger.Error("Failed downloading", zap.Error(err))
		content := fmt.Sprintf("%s\nFailed downloading %s.\nError: %s.", m.Author.Mention(), url, userError(err))
		edit := discordgo.NewMessageEdit(placeholder.ChannelID, placeholder.ID).SetContent(content)
		edit.Flags = discordgo.MessageFlagsSuppressEmbeds

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			_, err := s.ChannelMessageEditComplex(edit, discordgo.WithContext(gctx))
			return err
		})
		g.Go(func() error {
			return s.MessageReactionAdd(placeholder.ChannelID, placeholder.ID, deleteEmoji, discordgo.WithContext(gctx))
		})
		if err := g.Wait(); err != nil {
			logger.Warn("Failed to report download error", zap.Error(err))
		}
		return
	}

	messageID := ""
	result, err := b.Delivery.Deliver(ctx, post, m.Author.Mention(), ChannelSender(s, m.ChannelID))
	if err != nil {
		logger.Error("Failed sending message", zap.Error(err))
		msg, sendErr := s.ChannelMessageSend(m.ChannelID,
			fmt.Sprintf("Failed sending discord message for %s (%s).\nError: %s", url, m.Author.Mention(), userError(err)),
			discordgo.WithContext(ctx))
		if sendErr != nil {
			logger.Error("Failed to report send error", zap.Error(sendErr))
		} else {
			messageID = msg.ID
		}
	} else {
		messageID = result.MessageID
		logger.Info("Embedded post", zap.String("author", m.Author.Username), zap.Int("transcodes", result.Transcodes))
	}

	g, gctx = errgroup.WithContext(ctx)
	if messageID != "" {
		g.Go(func() error {
			return s.MessageReactionAdd(m.ChannelID, messageID, deleteEmoji, discordgo.WithContext(gctx))
		})
	}
	g.Go(func() error {
		return s.ChannelMessageDelete(placeholder.ChannelID, placeholder.ID, discordgo.WithContext(gctx))
	})
	if err := g.Wait(); err != nil {
		logger.Warn("Failed to finish message", zap.Error(err))
	}
}
