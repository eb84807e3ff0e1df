package csbot

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWelcome(t *testing.T) {
	out := renderWelcome(DefaultWelcomeMessage, "user-1")
	assert.Equal(t, "Welcome to the server, <@user-1>!", out)

	out = renderWelcome("{user} {user}", "user-1")
	assert.Equal(t, "<@user-1> <@user-1>", out)
}

func TestRenderGoodbye(t *testing.T) {
	out := renderGoodbye(DefaultGoodbyeMessage, "alice")
	assert.Equal(t, "Farewell, **alice**!", out)

	out = renderGoodbye("Bye {user}.{n}See you!", "alice")
	assert.Equal(t, "Bye **alice**.\nSee you!", out)
}

func TestHandlerGuildMemberAdd(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)
	require.NoError(
		t,
		bot.store.Guild("guild-1").Config().SetField(
			configFieldWelcomeChannel,
			"channel-1",
		),
	)

	handler := bot.handlerGuildMemberAdd()
	handler(nil, &discordgo.GuildMemberAdd{
		Member: &discordgo.Member{
			GuildID: "guild-1",
			User:    &discordgo.User{ID: "user-1", Username: "alice"},
		},
	})

	require.Len(t, session.messages["channel-1"], 1)
	assert.Equal(
		t,
		"Welcome to the server, <@user-1>!",
		session.messages["channel-1"][0].Content,
	)
	assert.Equal(t, 1, session.callCount("MessageReactionAdd"))
}

func TestHandlerGuildMemberAddSkipsBots(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)
	require.NoError(
		t,
		bot.store.Guild("guild-1").Config().SetField(
			configFieldWelcomeChannel,
			"channel-1",
		),
	)

	handler := bot.handlerGuildMemberAdd()
	handler(nil, &discordgo.GuildMemberAdd{
		Member: &discordgo.Member{
			GuildID: "guild-1",
			User:    &discordgo.User{ID: "bot-2", Username: "otherbot", Bot: true},
		},
	})

	assert.Empty(t, session.messages["channel-1"])
}

func TestHandlerGuildMemberAddNoChannelConfigured(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)

	handler := bot.handlerGuildMemberAdd()
	handler(nil, &discordgo.GuildMemberAdd{
		Member: &discordgo.Member{
			GuildID: "guild-1",
			User:    &discordgo.User{ID: "user-1", Username: "alice"},
		},
	})

	assert.Zero(t, session.callCount("ChannelMessageSend"))
}

func TestHandlerGuildMemberRemove(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)
	require.NoError(
		t,
		bot.store.Guild("guild-1").Config().SetField(
			configFieldWelcomeChannel,
			"channel-1",
		),
	)

	handler := bot.handlerGuildMemberRemove()
	handler(nil, &discordgo.GuildMemberRemove{
		Member: &discordgo.Member{
			GuildID: "guild-1",
			User: &discordgo.User{
				ID:         "user-1",
				Username:   "alice123",
				GlobalName: "Alice",
			},
		},
	})

	require.Len(t, session.messages["channel-1"], 1)
	assert.Equal(
		t,
		"Farewell, **Alice**!",
		session.messages["channel-1"][0].Content,
	)
}

func TestHandlerGuildCreate(t *testing.T) {
	session := newMockSession()
	session.roles = []*discordgo.Role{
		{ID: "role-1", Name: "357 Smith"},
	}
	bot := newTestBot(t, session)
	bot.guildConfig.SetBotUserID(session.botUserID)

	handler := bot.handlerGuildCreate()
	handler(nil, &discordgo.GuildCreate{
		Guild: &discordgo.Guild{ID: "guild-1", Name: "Test Guild"},
	})

	// config channel created and cache rebuilt
	channelID, messageID := bot.store.Guild("guild-1").ConfigMessage()
	assert.NotEmpty(t, channelID)
	assert.NotEmpty(t, messageID)

	roles := bot.store.Guild("guild-1").AssignableRoles()
	require.Len(t, roles, 1)
	assert.Equal(t, "357 Smith", roles[0].Name)
}
