package command

import (
	"embed-bot/models"

	"github.com/bwmarrin/discordgo"
)

// Command names.
const (
	NameEmbed   = "embed"
	NameHelp    = "help"
	NameSilence = "silence"
	NameFormat  = "format"
)

var adminPermission int64 = discordgo.PermissionAdministrator

// EmbedCommand defines the structure for the /embed command.
type EmbedCommand struct{}

// Definition returns the application command definition.
func (c *EmbedCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        NameEmbed,
		Description: "Embeds media directly into discord",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "url",
				Description: "Link to an Instagram, TikTok or YouTube Shorts post",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
			{
				Name:        "spoiler",
				Description: "Hide the media behind a spoiler",
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Required:    false,
			},
		},
	}
}

// HelpCommand defines the structure for the /help command.
type HelpCommand struct{}

// Definition returns the application command definition.
func (c *HelpCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        NameHelp,
		Description: "Prints configuration for this server",
	}
}

// SilenceCommand defines the structure for the /silence command.
type SilenceCommand struct{}

// Definition returns the application command definition.
func (c *SilenceCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     NameSilence,
		Description:              "(Un)Ban a user from using embed commands",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "member",
				Description: "The member to (un)silence",
				Type:        discordgo.ApplicationCommandOptionUser,
				Required:    true,
			},
			{
				Name:        "unban",
				Description: "Lift an existing silence",
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Required:    false,
			},
		},
	}
}

// FormatCommand defines the structure for the /format command.
type FormatCommand struct{}

// Definition returns the application command definition.
func (c *FormatCommand) Definition() *discordgo.ApplicationCommand {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(models.AllIntegrations))
	for _, kind := range models.AllIntegrations {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  string(kind),
			Value: string(kind),
		})
	}

	return &discordgo.ApplicationCommand{
		Name:                     NameFormat,
		Description:              "Set the post format of an integration",
		DefaultMemberPermissions: &adminPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "integration",
				Description: "The platform to configure",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
				Choices:     choices,
			},
			{
				Name:         "template",
				Description:  "Placeholders: {url} {author} {description} {views} {likes} {created}. Empty resets.",
				Type:         discordgo.ApplicationCommandOptionString,
				Required:     false,
				Autocomplete: true,
			},
		},
	}
}
