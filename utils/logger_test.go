package utils

import (
	"strings"
	"sync"
	"testing"
	"time"

	"embed-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeEmbedSender struct {
	mu       sync.Mutex
	channels []string
	embeds   []*discordgo.MessageEmbed
}

func (f *fakeEmbedSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, channelID)
	f.embeds = append(f.embeds, embed)
	return &discordgo.Message{}, nil
}

func (f *fakeEmbedSender) modules() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var modules []string
	for _, embed := range f.embeds {
		for _, field := range embed.Fields {
			if field.Name == "Module" {
				modules = append(modules, field.Value)
			}
		}
	}
	return modules
}

func newTestAdminLogger(sender EmbedSender) *zap.Logger {
	core := &adminChannelCore{
		sender:    sender,
		channelID: "admin",
		fallback:  zap.NewNop(),
		send:      func(deliver func()) { deliver() },
	}
	return zap.New(core)
}

func TestAdminChannelMirrorsWarningsAndErrors(t *testing.T) {
	sender := &fakeEmbedSender{}
	logger := newTestAdminLogger(sender).Named("service")

	logger.Info("not mirrored")
	logger.With(zap.String("url", "https://x")).Error("Failed downloading", zap.Int("attempt", 2))
	logger.Warn("Rate limited")

	require.Len(t, sender.embeds, 2)
	assert.Equal(t, []string{"admin", "admin"}, sender.channels)

	embed := sender.embeds[0]
	assert.Equal(t, "Log Level: ERROR", embed.Title)
	assert.Equal(t, ColorError, embed.Color)

	values := make(map[string]string)
	for _, f := range embed.Fields {
		values[f.Name] = f.Value
	}
	assert.Equal(t, "service", values["Module"])
	assert.Equal(t, "Failed downloading", values["Message"])
	assert.Equal(t, "https://x", values["url"])
	assert.Equal(t, "2", values["attempt"])

	assert.Equal(t, "Log Level: WARN", sender.embeds[1].Title)
	assert.Equal(t, ColorWarn, sender.embeds[1].Color)
}

func TestAdminChannelTruncatesLongValues(t *testing.T) {
	sender := &fakeEmbedSender{}
	newTestAdminLogger(sender).Error(strings.Repeat("x", 2000))

	require.Len(t, sender.embeds, 1)
	for _, f := range sender.embeds[0].Fields {
		assert.LessOrEqual(t, len([]rune(f.Value)), maxEmbedFieldValue)
	}
}

func TestWithAdminChannelDisabledWithoutChannel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	got := WithAdminChannel(logger, &fakeEmbedSender{}, "")
	assert.Same(t, logger, got)
	assert.Equal(t, 1, logs.Len())
}

func TestWithAdminChannelCoversNamedChildren(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sender := &fakeEmbedSender{}
	logger := WithAdminChannel(zap.New(core), sender, "admin")

	logger.Named("database").Warn("Transient storage error, reconnecting")
	logger.Named("delivery").Error("Transcode failed")
	logger.Named("service").Info("Fetched post")

	assert.Eventually(t, func() bool {
		return len(sender.modules()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"database", "delivery"}, sender.modules())
	assert.Equal(t, 3, logs.Len())
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(models.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger(models.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
