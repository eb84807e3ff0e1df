package csbot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleCommandInteraction(
	name string,
	memberRoles []string,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:    discordgo.InteractionApplicationCommand,
			GuildID: "guild-1",
			Member: &discordgo.Member{
				User:  &discordgo.User{ID: "user-1", Username: "alice"},
				Roles: memberRoles,
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: CommandRole,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Name:  optionRole,
						Type:  discordgo.ApplicationCommandOptionString,
						Value: name,
					},
				},
			},
		},
	}
}

func TestHandleRoleToggle(t *testing.T) {
	session := newMockSession()
	session.members = []*discordgo.Member{
		{User: &discordgo.User{ID: "user-1", Username: "alice"}},
	}
	bot := newTestBot(t, session)
	bot.store.Guild("guild-1").AddAssignableRole(AssignableRole{
		Name:   "357 Smith",
		RoleID: "role-1",
		Kind:   RoleKindCourse,
	})

	// not holding: the role is added; name matching is case-insensitive
	handler := &recordingHandler{
		interaction: roleCommandInteraction("357 smith", nil),
	}
	require.NoError(t, bot.handleRoleCommand(context.Background(), handler))
	assert.Equal(t, "Added **357 Smith**!", handler.lastEditContent())
	assert.Equal(t, []string{"role-1"}, session.members[0].Roles)

	// holding: the role is removed
	handler = &recordingHandler{
		interaction: roleCommandInteraction("357 Smith", []string{"role-1"}),
	}
	require.NoError(t, bot.handleRoleCommand(context.Background(), handler))
	assert.Equal(t, "Removed **357 Smith**.", handler.lastEditContent())
	assert.Empty(t, session.members[0].Roles)
}

func TestHandleRoleUnknown(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)

	handler := &recordingHandler{
		interaction: roleCommandInteraction("Nonexistent", nil),
	}
	require.NoError(t, bot.handleRoleCommand(context.Background(), handler))

	assert.Equal(
		t,
		"**Nonexistent** isn't an assignable role.",
		handler.lastEditContent(),
	)
	assert.Zero(t, session.callCount("GuildMemberRoleAdd"))
}

func TestHandleRoleOutsideGuild(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session)

	i := roleCommandInteraction("357 Smith", nil)
	i.Member = nil
	i.User = &discordgo.User{ID: "user-1", Username: "alice"}

	handler := &recordingHandler{interaction: i}
	assert.Error(t, bot.handleRoleCommand(context.Background(), handler))
}
