package csbot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configCommandInteraction(
	sub string,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "guild-1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "user-1", Username: "alice"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: CommandConfig,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Name:    sub,
						Type:    discordgo.ApplicationCommandOptionSubCommand,
						Options: options,
					},
				},
			},
		},
	}
}

func TestHandleConfigSetWelcomeChannel(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)
	bot.guildConfig.SetBotUserID(session.botUserID)
	_, err := bot.guildConfig.EnsureChannel("guild-1")
	require.NoError(t, err)

	i := configCommandInteraction(
		configSubcommandWelcomeChannel,
		[]*discordgo.ApplicationCommandInteractionDataOption{
			{
				Name:  optionChannel,
				Type:  discordgo.ApplicationCommandOptionChannel,
				Value: "channel-9",
			},
		},
	)
	handler := &recordingHandler{interaction: i}
	require.NoError(t, bot.handleConfigCommand(context.Background(), handler))

	assert.Equal(
		t,
		"Set `welcomeChannel` to `channel-9`.",
		handler.lastEditContent(),
	)
	assert.Equal(
		t,
		"channel-9",
		bot.store.Guild("guild-1").Config().WelcomeChannel,
	)
	assert.Equal(t, 1, session.callCount("ChannelMessageEditEmbed"))
}

func TestHandleConfigInvalidPattern(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)
	bot.guildConfig.SetBotUserID(session.botUserID)
	_, err := bot.guildConfig.EnsureChannel("guild-1")
	require.NoError(t, err)

	i := configCommandInteraction(
		configSubcommandMoreAssignables,
		[]*discordgo.ApplicationCommandInteractionDataOption{
			{
				Name:  optionValue,
				Type:  discordgo.ApplicationCommandOptionString,
				Value: "[",
			},
		},
	)
	handler := &recordingHandler{interaction: i}
	require.NoError(t, bot.handleConfigCommand(context.Background(), handler))

	assert.Equal(
		t,
		"`[` is not a valid regular expression.",
		handler.lastEditContent(),
	)
	assert.Empty(t, bot.store.Guild("guild-1").Config().MoreAssignables)
}

func TestHandleConfigMoreAssignablesRebuildsCache(t *testing.T) {
	session := newMockSession()
	session.roles = []*discordgo.Role{
		{ID: "role-1", Name: "Gamers"},
	}
	bot := newTestBot(t, session)
	bot.guildConfig.SetBotUserID(session.botUserID)
	_, err := bot.guildConfig.EnsureChannel("guild-1")
	require.NoError(t, err)

	i := configCommandInteraction(
		configSubcommandMoreAssignables,
		[]*discordgo.ApplicationCommandInteractionDataOption{
			{
				Name:  optionValue,
				Type:  discordgo.ApplicationCommandOptionString,
				Value: "^Gamers$",
			},
		},
	)
	handler := &recordingHandler{interaction: i}
	require.NoError(t, bot.handleConfigCommand(context.Background(), handler))

	roles := bot.store.Guild("guild-1").AssignableRoles()
	require.Len(t, roles, 1)
	assert.Equal(t, "Gamers", roles[0].Name)
	assert.Equal(t, RoleKindMisc, roles[0].Kind)
}

func TestHandleConfigShow(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)

	i := configCommandInteraction(configSubcommandShow, nil)
	handler := &recordingHandler{interaction: i}
	require.NoError(t, bot.handleConfigCommand(context.Background(), handler))

	require.Len(t, handler.responses, 1)
	resp := handler.responses[0]
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, DefaultConfigEmbedTitle, resp.Data.Embeds[0].Title)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

func TestHandleConfigMissingConfigMessage(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)
	bot.guildConfig.SetBotUserID(session.botUserID)

	i := configCommandInteraction(
		configSubcommandWelcomeMessage,
		[]*discordgo.ApplicationCommandInteractionDataOption{
			{
				Name:  optionValue,
				Type:  discordgo.ApplicationCommandOptionString,
				Value: "Hi {user}!",
			},
		},
	)
	handler := &recordingHandler{interaction: i}
	require.NoError(t, bot.handleConfigCommand(context.Background(), handler))

	assert.Contains(t, handler.lastEditContent(), "Couldn't find the config message")
}
