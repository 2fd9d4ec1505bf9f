package handlers

import (
	"embed-bot/bot"
	"embed-bot/command"
	"embed-bot/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var commandPermissions = map[string]string{
	command.NameEmbed:   utils.LevelGuest,
	command.NameHelp:    utils.LevelGuest,
	command.NameSilence: utils.LevelAdmin,
	command.NameFormat:  utils.LevelAdmin,
}

// CommandDispatcher is the central handler for all application command interactions.
// It performs permission checks and then dispatches the interaction to the appropriate handler.
func CommandDispatcher(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		respondEphemeral(b, s, i, "🚫 Commands are only available in servers.")
		return
	}

	commandName := i.ApplicationCommandData().Name
	requiredLevel, ok := commandPermissions[commandName]
	if ok && !b.Auth.CheckPermission(i, requiredLevel) {
		respondEphemeral(b, s, i, "🚫 You are not allowed to use this command.")
		return
	}

	switch commandName {
	case command.NameEmbed:
		HandleEmbed(b, s, i)
	case command.NameHelp:
		HandleHelp(b, s, i)
	case command.NameSilence:
		HandleSilence(b, s, i)
	case command.NameFormat:
		HandleFormat(b, s, i)
	default:
		respondEphemeral(b, s, i, "🚫 Internal error: unknown command.")
	}
}

func respondEphemeral(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.Logger.Warn("Failed to respond to interaction", zap.Error(err))
	}
}

func optionMap(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
