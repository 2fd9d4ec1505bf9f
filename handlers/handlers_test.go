package handlers

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"embed-bot/database"
	"embed-bot/delivery"
	"embed-bot/downloader"
	"embed-bot/models"
	"embed-bot/service"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestShouldDeleteOnReaction(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bot := &discordgo.User{ID: "bot"}
	user := &discordgo.User{ID: "42"}

	fresh := func(content string, mentions ...*discordgo.User) *discordgo.Message {
		return &discordgo.Message{
			Author:    bot,
			Content:   content,
			Mentions:  mentions,
			Timestamp: now.Add(-time.Minute),
		}
	}

	tests := []struct {
		name string
		msg  *discordgo.Message
		want bool
	}{
		{"mentioned user", fresh("Here you go", user), true},
		{"mention in content", fresh("Here you go <@42> 🐱."), true},
		{"nickname mention in content", fresh("Here you go <@!42> 🐱."), true},
		{"other user", fresh("Here you go <@7>", &discordgo.User{ID: "7"}), false},
		{"not from bot", &discordgo.Message{Author: user, Content: "<@42>", Timestamp: now}, false},
		{"too old", &discordgo.Message{Author: bot, Content: "<@42>", Timestamp: now.Add(-deleteWindow - time.Second)}, false},
		{"nil message", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldDeleteOnReaction(tt.msg, "bot", "42", now))
		})
	}
}

func TestUserError(t *testing.T) {
	fetchErr := fmt.Errorf("get post: %w", &downloader.FetchError{
		Integration: models.IntegrationTikTok,
		Reason:      downloader.ReasonPrivate,
		Err:         errors.New("403"),
	})
	assert.Equal(t, "tiktok post could not be downloaded (private)", userError(fetchErr))

	assert.Contains(t, userError(service.ErrRateLimited), "post limit")
	assert.Contains(t, userError(service.ErrMemberSilenced), "silenced")
	assert.Contains(t, userError(service.ErrIntegrationDisabled), "disabled")
	assert.Contains(t, userError(fmt.Errorf("deliver: %w", delivery.ErrTranscodeExhausted)), "too large")
	assert.Contains(t, userError(service.ErrFormatTooLong), "1000")
	assert.Contains(t, userError(database.ErrServerNotFound), "not set up")
	assert.Equal(t, "boom", userError(errors.New("boom")))
}

func TestFormatChoices(t *testing.T) {
	all := formatChoices("")
	assert.Len(t, all, len(formatPresets))
	assert.Equal(t, models.DefaultPostFormat, all[0].Value)

	typed := formatChoices("{likes}")
	if assert.NotEmpty(t, typed) {
		assert.Equal(t, "{likes}", typed[0].Value)
	}
	for _, c := range typed[1:] {
		assert.Contains(t, c.Value, "{likes}")
	}

	exact := formatChoices(models.DefaultPostFormat)
	count := 0
	for _, c := range exact {
		if c.Value == models.DefaultPostFormat {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestChoiceName(t *testing.T) {
	c := choice("a\nb")
	assert.Equal(t, "a ⏎ b", c.Name)
	assert.Equal(t, "a\nb", c.Value)

	long := choice(strings.Repeat("x", 150))
	assert.Len(t, []rune(long.Name), 100)
	assert.Len(t, long.Value, 150)
}
