package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinitions(t *testing.T) {
	defs := Definitions(AllCommands)

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
		assert.NotEmpty(t, def.Description, def.Name)
	}
	assert.Equal(t, []string{NameEmbed, NameHelp, NameSilence, NameFormat}, names)
}

func TestFormatCommandOffersEveryIntegration(t *testing.T) {
	def := (&FormatCommand{}).Definition()

	var values []string
	for _, choice := range def.Options[0].Choices {
		values = append(values, choice.Value.(string))
	}
	assert.Equal(t, []string{"instagram", "tiktok", "youtube"}, values)
	assert.True(t, def.Options[1].Autocomplete)
}
