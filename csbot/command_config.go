package csbot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// configSubcommandFields maps /config subcommands to the persisted
// field they set.
var configSubcommandFields = map[string]string{
	configSubcommandWelcomeChannel:  configFieldWelcomeChannel,
	configSubcommandWelcomeMessage:  configFieldWelcomeMessage,
	configSubcommandGoodbyeMessage:  configFieldGoodbyeMessage,
	configSubcommandRequestsChannel: configFieldRequestsChannel,
	configSubcommandMoreAssignables: configFieldMoreAssignables,
	configSubcommandBaseRolePos:     configFieldBaseRolePos,
}

// handleConfigCommand executes the /config subcommands: setters mutate
// a single field and persist the embed; show displays the current
// configuration.
func (b *CSBot) handleConfigCommand(
	ctx context.Context,
	handler InteractionHandler,
) error {
	i := handler.GetInteraction()
	sub, options := subcommandOptions(i)

	if sub == configSubcommandShow {
		cfg := b.store.Guild(i.GuildID).Config()
		return handler.Respond(ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{b.guildConfig.Render(cfg)},
				Flags:  discordgo.MessageFlagsEphemeral,
			},
		})
	}

	field, ok := configSubcommandFields[sub]
	if !ok {
		return fmt.Errorf("unknown config subcommand: %s", sub)
	}

	var value string
	switch sub {
	case configSubcommandWelcomeChannel, configSubcommandRequestsChannel:
		channel := options[optionChannel].ChannelValue(nil)
		value = channel.ID
	case configSubcommandBaseRolePos:
		value = strconv.FormatInt(options[optionValue].IntValue(), 10)
	default:
		value = options[optionValue].StringValue()
	}

	if err := ackEphemeral(ctx, handler); err != nil {
		return err
	}

	err := b.guildConfig.SetConfigField(i.GuildID, field, value)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidPattern):
		return editContent(
			ctx,
			handler,
			fmt.Sprintf("`%s` is not a valid regular expression.", value),
		)
	case errors.Is(err, ErrConfigMessageNotFound),
		errors.Is(err, ErrConfigChannelNotFound):
		return editContent(
			ctx,
			handler,
			"Couldn't find the config message to update. "+
				"It may have been deleted; kick and re-invite the bot "+
				"to recreate it.",
		)
	default:
		handler.Logger().ErrorContext(ctx, "error setting config", tint.Err(err))
		return editContent(ctx, handler, "Failed to update the configuration.")
	}

	// a new assignables pattern changes classification, so refresh the
	// cache immediately
	if field == configFieldMoreAssignables {
		if rebuildErr := b.roleCache.RebuildGuild(i.GuildID); rebuildErr != nil {
			handler.Logger().ErrorContext(
				ctx,
				"error rebuilding role cache",
				tint.Err(rebuildErr),
			)
		}
	}

	return editContent(
		ctx,
		handler,
		fmt.Sprintf("Set `%s` to `%s`.", field, value),
	)
}
