package handlers

import (
	"strings"

	"embed-bot/bot"
	"embed-bot/command"
	"embed-bot/models"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// maxChoices is the Discord limit for autocomplete results.
const maxChoices = 25

var formatPresets = []string{
	models.DefaultPostFormat,
	"🔗 URL: {url}\n👤 {author}",
	"🔗 URL: {url}\n👤 {author} 📅 {created}\n👁️ {views} ❤️ {likes}",
	"🔗 URL: {url}\n📝 {description}",
	"🔗 URL: {url}\n👤 {author} 📅 {created}\n👁️ {views} ❤️ {likes}\n📝 {description}",
}

// HandleAutocomplete handles all autocomplete interactions.
func HandleAutocomplete(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case command.NameFormat:
		for _, opt := range data.Options {
			if opt.Name == "template" && opt.Focused {
				respondChoices(b, s, i, formatChoices(opt.StringValue()))
			}
		}
	}
}

// formatChoices returns the typed template first, then presets containing it.
func formatChoices(typed string) []*discordgo.ApplicationCommandOptionChoice {
	typed = strings.TrimSpace(typed)
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(formatPresets)+1)
	if typed != "" {
		choices = append(choices, choice(typed))
	}
	for _, preset := range formatPresets {
		if preset == typed || !strings.Contains(preset, typed) {
			continue
		}
		choices = append(choices, choice(preset))
		if len(choices) == maxChoices {
			break
		}
	}
	return choices
}

func choice(template string) *discordgo.ApplicationCommandOptionChoice {
	name := strings.ReplaceAll(template, "\n", " ⏎ ")
	if r := []rune(name); len(r) > 100 {
		name = string(r[:99]) + "…"
	}
	return &discordgo.ApplicationCommandOptionChoice{Name: name, Value: template}
}

func respondChoices(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, choices []*discordgo.ApplicationCommandOptionChoice) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		b.Logger.Warn("Error responding to autocomplete interaction", zap.Error(err))
	}
}
