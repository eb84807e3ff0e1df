package csbot

import (
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestNumericPrefix(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"357 Smith", "357"},
		{"357", "357"},
		{"Smith", ""},
		{"", ""},
		{"12ab34", "12"},
		// non-ASCII digits are not course numbers, and must not be
		// sliced mid-rune
		{"٣57 Smith", ""},
		{"357٣ Smith", "357"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, numericPrefix(tc.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abc", truncate("abcde", 3))
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "", truncate("", 3))
}

func TestInteractionUser(t *testing.T) {
	member := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "user-1"},
			},
		},
	}
	assert.Equal(t, "user-1", interactionUser(member).ID)

	dm := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			User: &discordgo.User{ID: "user-2"},
		},
	}
	assert.Equal(t, "user-2", interactionUser(dm).ID)
}

func TestStringPointerValue(t *testing.T) {
	s := "value"
	assert.Equal(t, "value", stringPointerValue(&s))
	assert.Empty(t, stringPointerValue(nil))
}

func TestStructToSlogValueRedacts(t *testing.T) {
	type creds struct {
		Name  string `json:"name"`
		Token string `json:"token" log:"[redacted]"`
	}
	value := structToSlogValue(creds{Name: "bot", Token: "secret"})

	attrs := map[string]string{}
	for _, attr := range value.Group() {
		attrs[attr.Key] = attr.Value.String()
	}
	assert.Equal(t, "bot", attrs["name"])
	assert.Equal(t, "[redacted]", attrs["token"])
}

func TestStructToSlogValueSkipsEmpty(t *testing.T) {
	type inner struct {
		Set   string `json:"set"`
		Unset string `json:"unset"`
	}
	value := structToSlogValue(&inner{Set: "x"})

	keys := make([]string, 0, 1)
	for _, attr := range value.Group() {
		keys = append(keys, attr.Key)
	}
	assert.Equal(t, []string{"set"}, keys)
}

func TestStructToSlogValueNil(t *testing.T) {
	assert.Equal(t, slog.AnyValue(nil).Kind(), structToSlogValue(nil).Kind())

	var cfg *GuildConfig
	assert.Equal(t, slog.KindAny, structToSlogValue(cfg).Kind())
}

func TestSubcommandOptions(t *testing.T) {
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: CommandRoster,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Name: rosterSubcommandAdd,
						Type: discordgo.ApplicationCommandOptionSubCommand,
						Options: []*discordgo.ApplicationCommandInteractionDataOption{
							{
								Name:  optionInstructor,
								Type:  discordgo.ApplicationCommandOptionString,
								Value: "Smith",
							},
						},
					},
				},
			},
		},
	}

	sub, options := subcommandOptions(i)
	assert.Equal(t, rosterSubcommandAdd, sub)
	assert.Contains(t, options, optionInstructor)

	empty := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: CommandServer,
			},
		},
	}
	sub, options = subcommandOptions(empty)
	assert.Empty(t, sub)
	assert.Nil(t, options)
}
