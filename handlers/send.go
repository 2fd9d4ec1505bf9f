package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"embed-bot/delivery"

	"github.com/bwmarrin/discordgo"
)

// Discord JSON error code for an oversized request body.
const errCodeRequestEntityTooLarge = 40005

var userMentionsOnly = &discordgo.MessageAllowedMentions{
	Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
}

// ChannelSender delivers messages into a channel.
func ChannelSender(s *discordgo.Session, channelID string) delivery.SendFunc {
	return func(ctx context.Context, msg *delivery.Message) (string, error) {
		m, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Content:         msg.Content,
			Files:           files(msg),
			Flags:           discordgo.MessageFlagsSuppressEmbeds,
			AllowedMentions: userMentionsOnly,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return "", classifySendError(err)
		}
		return m.ID, nil
	}
}

// FollowupSender delivers messages as followups of a deferred interaction.
func FollowupSender(s *discordgo.Session, interaction *discordgo.Interaction) delivery.SendFunc {
	return func(ctx context.Context, msg *delivery.Message) (string, error) {
		m, err := s.FollowupMessageCreate(interaction, true, &discordgo.WebhookParams{
			Content:         msg.Content,
			Files:           files(msg),
			Flags:           discordgo.MessageFlagsSuppressEmbeds,
			AllowedMentions: userMentionsOnly,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return "", classifySendError(err)
		}
		return m.ID, nil
	}
}

func files(msg *delivery.Message) []*discordgo.File {
	if msg.File == nil {
		return nil
	}
	return []*discordgo.File{{
		Name:        msg.File.Name,
		ContentType: msg.File.ContentType,
		Reader:      bytes.NewReader(msg.File.Data),
	}}
}

// classifySendError maps Discord's size rejections to delivery.ErrEntityTooLarge.
func classifySendError(err error) error {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	tooLarge := restErr.Response != nil && restErr.Response.StatusCode == http.StatusRequestEntityTooLarge
	if restErr.Message != nil && restErr.Message.Code == errCodeRequestEntityTooLarge {
		tooLarge = true
	}
	if tooLarge {
		return fmt.Errorf("%w: %v", delivery.ErrEntityTooLarge, err)
	}
	return err
}
