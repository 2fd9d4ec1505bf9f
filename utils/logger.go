package utils

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"embed-bot/models"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red
)

// Discord rejects embed field values longer than this.
const maxEmbedFieldValue = 1024

// NewLogger builds the process logger from the log configuration.
func NewLogger(cfg models.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller()), nil
}

// EmbedSender posts embeds to a channel. *discordgo.Session implements it.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// WithAdminChannel mirrors warnings and errors of logger to a Discord channel
// as embeds. An empty channelID returns logger unchanged.
func WithAdminChannel(logger *zap.Logger, sender EmbedSender, channelID string) *zap.Logger {
	if channelID == "" {
		logger.Warn("bot.admin_channel_id is not set, logging to channel is disabled")
		return logger
	}
	admin := &adminChannelCore{sender: sender, channelID: channelID, fallback: logger}
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, admin)
	}))
}

// adminChannelCore is a zapcore.Core that renders entries as embeds.
type adminChannelCore struct {
	sender    EmbedSender
	channelID string
	fields    []zapcore.Field
	// fallback reports send failures; it does not include this core.
	fallback *zap.Logger
	// send delivers the embed; nil sends on a new goroutine.
	send func(func())
}

func (c *adminChannelCore) Enabled(level zapcore.Level) bool {
	return level >= zapcore.WarnLevel
}

func (c *adminChannelCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *adminChannelCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *adminChannelCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	embed := c.embed(entry, append(append([]zapcore.Field(nil), c.fields...), fields...))
	deliver := func() {
		if _, err := c.sender.ChannelMessageSendEmbed(c.channelID, embed); err != nil {
			c.fallback.Info("Error sending log message to Discord", zap.Error(err))
		}
	}
	if c.send != nil {
		c.send(deliver)
	} else {
		go deliver()
	}
	return nil
}

func (c *adminChannelCore) Sync() error {
	return nil
}

func (c *adminChannelCore) embed(entry zapcore.Entry, fields []zapcore.Field) *discordgo.MessageEmbed {
	color := ColorWarn
	if entry.Level >= zapcore.ErrorLevel {
		color = ColorError
	}

	module := entry.LoggerName
	if module == "" && entry.Caller.Defined {
		module = entry.Caller.TrimmedPath()
	}

	embedFields := []*discordgo.MessageEmbedField{
		{Name: "Module", Value: embedValue(module), Inline: true},
		{Name: "Message", Value: embedValue(entry.Message), Inline: true},
	}

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		if value, ok := enc.Fields[f.Key]; ok {
			embedFields = append(embedFields, &discordgo.MessageEmbedField{
				Name:  f.Key,
				Value: embedValue(fmt.Sprint(value)),
			})
		}
	}

	return &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("Log Level: %s", entry.Level.CapitalString()),
		Color:     color,
		Timestamp: entry.Time.Format(time.RFC3339),
		Fields:    embedFields,
	}
}

func embedValue(s string) string {
	if s == "" {
		return "-"
	}
	if utf8.RuneCountInString(s) > maxEmbedFieldValue {
		return string([]rune(s)[:maxEmbedFieldValue-3]) + "..."
	}
	return s
}
