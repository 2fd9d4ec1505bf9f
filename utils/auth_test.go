package utils

import (
	"testing"

	"embed-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestCheckPermission(t *testing.T) {
	var cfg models.CommandsConfig
	cfg.Auth.Developers = []string{"dev"}
	cfg.Auth.AdminsRoles = []string{"mods"}
	auth := NewAuth(cfg)

	interaction := func(userID string, roles []string, perms int64) *discordgo.InteractionCreate {
		return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roles, Permissions: perms},
		}}
	}

	assert.True(t, auth.CheckPermission(interaction("dev", nil, 0), LevelDeveloper))
	assert.True(t, auth.CheckPermission(interaction("dev", nil, 0), LevelAdmin))
	assert.True(t, auth.CheckPermission(interaction("u", []string{"mods"}, 0), LevelAdmin))
	assert.True(t, auth.CheckPermission(interaction("u", nil, discordgo.PermissionAdministrator), LevelAdmin))
	assert.False(t, auth.CheckPermission(interaction("u", nil, 0), LevelAdmin))
	assert.False(t, auth.CheckPermission(interaction("u", []string{"mods"}, 0), LevelDeveloper))
	assert.True(t, auth.CheckPermission(interaction("u", nil, 0), LevelGuest))
	assert.False(t, auth.CheckPermission(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}}, LevelGuest))
}
