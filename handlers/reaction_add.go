package handlers

import (
	"strings"
	"time"

	"embed-bot/bot"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// deleteWindow is how long the mentioned user may delete a bot message.
const deleteWindow = 5 * time.Minute

// ReactionAdd deletes a bot message when the user it mentions reacts with ❌.
func ReactionAdd(b *bot.Bot) func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	return func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if r.Emoji.Name != deleteEmoji || s.State.User == nil || r.UserID == s.State.User.ID {
			return
		}

		msg, err := s.State.Message(r.ChannelID, r.MessageID)
		if err != nil {
			if msg, err = s.ChannelMessage(r.ChannelID, r.MessageID); err != nil {
				b.Logger.Warn("Failed to load reacted message", zap.String("message_id", r.MessageID), zap.Error(err))
				return
			}
		}

		if !shouldDeleteOnReaction(msg, s.State.User.ID, r.UserID, time.Now()) {
			b.Logger.Debug("Ignoring delete reaction", zap.String("user_id", r.UserID), zap.String("message_id", r.MessageID))
			return
		}

		if err := s.ChannelMessageDelete(r.ChannelID, r.MessageID); err != nil {
			b.Logger.Warn("Failed to delete message", zap.String("message_id", r.MessageID), zap.Error(err))
			return
		}
		b.Logger.Info("User deleted embedded message", zap.String("user_id", r.UserID), zap.String("message_id", r.MessageID))
	}
}

// shouldDeleteOnReaction reports whether userID may delete msg: it must be a
// bot message younger than deleteWindow that mentions the user.
func shouldDeleteOnReaction(msg *discordgo.Message, botID, userID string, now time.Time) bool {
	if msg == nil || msg.Author == nil || msg.Author.ID != botID {
		return false
	}
	if now.Sub(msg.Timestamp) > deleteWindow {
		return false
	}
	for _, u := range msg.Mentions {
		if u != nil && u.ID == userID {
			return true
		}
	}
	return strings.Contains(msg.Content, "<@"+userID+">") || strings.Contains(msg.Content, "<@!"+userID+">")
}
