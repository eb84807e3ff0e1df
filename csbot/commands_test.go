package csbot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationCommands(t *testing.T) {
	commands := applicationCommands()

	byName := map[string]*discordgo.ApplicationCommand{}
	for _, command := range commands {
		byName[command.Name] = command
	}
	for _, name := range []string{
		CommandRoster,
		CommandConfig,
		CommandRole,
		CommandVerification,
		CommandServer,
		CommandUser,
		CommandPing,
	} {
		assert.Contains(t, byName, name)
	}
}

func TestRosterCommandDefinition(t *testing.T) {
	commands := applicationCommands()

	var roster *discordgo.ApplicationCommand
	for _, command := range commands {
		if command.Name == CommandRoster {
			roster = command
			break
		}
	}
	require.NotNil(t, roster)

	require.NotNil(t, roster.DefaultMemberPermissions)
	assert.EqualValues(
		t,
		discordgo.PermissionManageChannels|discordgo.PermissionManageRoles,
		*roster.DefaultMemberPermissions,
	)

	subs := map[string]*discordgo.ApplicationCommandOption{}
	for _, option := range roster.Options {
		subs[option.Name] = option
	}
	for _, name := range []string{
		rosterSubcommandAdd,
		rosterSubcommandRemove,
		rosterSubcommandRemoveAll,
		rosterSubcommandClear,
		rosterSubcommandClearAll,
	} {
		assert.Contains(t, subs, name)
	}

	// the course number option enforces the 3-digit convention
	add := subs[rosterSubcommandAdd]
	require.Len(t, add.Options, 2)
	number := add.Options[0]
	assert.Equal(t, optionCourseNumber, number.Name)
	require.NotNil(t, number.MinValue)
	assert.EqualValues(t, 100, *number.MinValue)
	assert.EqualValues(t, 999, number.MaxValue)

	// course pickers autocomplete from the cache
	assert.True(t, subs[rosterSubcommandRemove].Options[0].Autocomplete)
	assert.True(t, subs[rosterSubcommandClear].Options[0].Autocomplete)
}

func TestConfigCommandDefinition(t *testing.T) {
	commands := applicationCommands()

	var config *discordgo.ApplicationCommand
	for _, command := range commands {
		if command.Name == CommandConfig {
			config = command
			break
		}
	}
	require.NotNil(t, config)

	subs := map[string]*discordgo.ApplicationCommandOption{}
	for _, option := range config.Options {
		subs[option.Name] = option
	}
	for sub := range configSubcommandFields {
		assert.Contains(t, subs, sub)
	}
	assert.Contains(t, subs, configSubcommandShow)

	// channel options only accept text channels
	welcome := subs[configSubcommandWelcomeChannel]
	require.Len(t, welcome.Options, 1)
	assert.Equal(
		t,
		[]discordgo.ChannelType{discordgo.ChannelTypeGuildText},
		welcome.Options[0].ChannelTypes,
	)
}
