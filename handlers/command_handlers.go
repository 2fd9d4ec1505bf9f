package handlers

import (
	"context"
	"fmt"
	"time"

	"embed-bot/bot"
	"embed-bot/models"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// samplePost previews post formats.
var samplePost = func() *models.Post {
	views, likes := int64(1234567), int64(89000)
	return &models.Post{
		URL:         "https://www.tiktok.com/@someone/video/7300000000000000000",
		Author:      "someone",
		Description: "A sample post",
		Views:       &views,
		Likes:       &likes,
		Created:     time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC),
	}
}

func deferResponse(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) bool {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.Logger.Warn("Failed to defer interaction", zap.Error(err))
		return false
	}
	return true
}

func followup(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, content string) *discordgo.Message {
	msg, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content:         content,
		Flags:           discordgo.MessageFlagsSuppressEmbeds,
		AllowedMentions: userMentionsOnly,
	})
	if err != nil {
		b.Logger.Warn("Failed to send followup", zap.Error(err))
		return nil
	}
	return msg
}

func addDeleteReaction(b *bot.Bot, s *discordgo.Session, channelID, messageID string) {
	if err := s.MessageReactionAdd(channelID, messageID, deleteEmoji); err != nil {
		b.Logger.Warn("Failed to add delete reaction", zap.String("message_id", messageID), zap.Error(err))
	}
}

// HandleEmbed handles the logic for the /embed command.
func HandleEmbed(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	var url string
	var spoiler bool
	if opt, ok := opts["url"]; ok {
		url = opt.StringValue()
	}
	if opt, ok := opts["spoiler"]; ok {
		spoiler = opt.BoolValue()
	}
	user := interactionUser(i)

	if !deferResponse(b, s, i, false) {
		return
	}
	if !b.Service.ShouldHandle(url) {
		followup(b, s, i, fmt.Sprintf("%s\n%s is not a supported link.", user.Mention(), url))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), messageTimeout)
	defer cancel()
	logger := b.Logger.With(zap.String("url", url), zap.String("guild_id", i.GuildID), zap.String("author_id", user.ID))

	post, err := b.Service.GetPost(ctx, models.VendorDiscord, i.GuildID, user.ID, url)
	if err != nil {
		logger.Error("Failed downloading", zap.Error(err))
		if msg := followup(b, s, i, fmt.Sprintf("Failed fetching %s (%s).\nError: %s", url, user.Mention(), userError(err))); msg != nil {
			addDeleteReaction(b, s, msg.ChannelID, msg.ID)
		}
		return
	}
	if spoiler {
		post.Spoiler = true
	}

	result, err := b.Delivery.Deliver(ctx, post, user.Mention(), FollowupSender(s, i.Interaction))
	if err != nil {
		logger.Error("Failed sending message", zap.Error(err))
		if msg := followup(b, s, i, fmt.Sprintf("Failed sending discord message for %s (%s).\nError: %s", url, user.Mention(), userError(err))); msg != nil {
			addDeleteReaction(b, s, msg.ChannelID, msg.ID)
		}
		return
	}
	addDeleteReaction(b, s, i.ChannelID, result.MessageID)
	logger.Info("Embedded post via command", zap.Int("transcodes", result.Transcodes))
}

// HandleHelp handles the logic for the /help command.
func HandleHelp(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !deferResponse(b, s, i, false) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := b.Service.ServerInfo(ctx, models.VendorDiscord, i.GuildID)
	if err != nil {
		b.Logger.Error("Failed retrieving server configuration", zap.String("guild_id", i.GuildID), zap.Error(err))
		followup(b, s, i, "Failed retrieving server configuration.")
		return
	}
	if msg := followup(b, s, i, fmt.Sprintf("%s\n%s", interactionUser(i).Mention(), info)); msg != nil {
		addDeleteReaction(b, s, msg.ChannelID, msg.ID)
	}
}

// HandleSilence handles the logic for the /silence command.
func HandleSilence(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	opt, ok := opts["member"]
	if !ok {
		respondEphemeral(b, s, i, "A member is required.")
		return
	}
	member := opt.UserValue(nil)
	unban := false
	if opt, ok := opts["unban"]; ok {
		unban = opt.BoolValue()
	}

	if !deferResponse(b, s, i, true) {
		return
	}

	prefix := ""
	if unban {
		prefix = "un"
	}

	var response string
	if member.ID == interactionUser(i).ID {
		response = "Can't silence yourself.."
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := b.Service.SetMemberBanned(ctx, models.VendorDiscord, i.GuildID, member.ID, !unban); err != nil {
			b.Logger.Error("Failed changing member silence", zap.String("member_id", member.ID), zap.Bool("unban", unban), zap.Error(err))
			response = fmt.Sprintf("Failed to %ssilence user %s.", prefix, member.Mention())
		} else {
			response = fmt.Sprintf("User %s %ssilenced.", member.Mention(), prefix)
		}
	}

	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content:         response,
		Flags:           discordgo.MessageFlagsEphemeral,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}); err != nil {
		b.Logger.Warn("Failed to send followup", zap.Error(err))
	}
}

// HandleFormat handles the logic for the /format command.
func HandleFormat(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i)
	var kind models.IntegrationKind
	var template string
	if opt, ok := opts["integration"]; ok {
		kind = models.IntegrationKind(opt.StringValue())
	}
	if opt, ok := opts["template"]; ok {
		template = opt.StringValue()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := b.Service.UpdatePostFormat(ctx, models.VendorDiscord, i.GuildID, kind, template); err != nil {
		b.Logger.Error("Failed updating post format", zap.String("integration", string(kind)), zap.Error(err))
		respondEphemeral(b, s, i, fmt.Sprintf("Failed to update the %s post format: %s", kind, userError(err)))
		return
	}

	respondEphemeral(b, s, i, fmt.Sprintf("Updated the %s post format. Preview:\n%s", kind, samplePost().Render(template)))
}
