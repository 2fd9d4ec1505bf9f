package command

import "github.com/bwmarrin/discordgo"

// Command is an interface for application commands.
type Command interface {
	Definition() *discordgo.ApplicationCommand
}

// AllCommands holds all the command instances.
var AllCommands = []Command{
	&EmbedCommand{},
	&HelpCommand{},
	&SilenceCommand{},
	&FormatCommand{},
}

// Definitions returns the application command definitions of cmds, in order.
func Definitions(cmds []Command) []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, len(cmds))
	for i, cmd := range cmds {
		defs[i] = cmd.Definition()
	}
	return defs
}
