package csbot

import (
	"context"
	"errors"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleVerificationCommand posts the verification prompt to the given
// channel (or the invoking channel when none is given).
func (b *CSBot) handleVerificationCommand(
	ctx context.Context,
	handler InteractionHandler,
) error {
	i := handler.GetInteraction()
	options := discordInteractionOptions(i)

	channelID := i.ChannelID
	if opt, ok := options[optionChannel]; ok {
		channelID = opt.ChannelValue(nil).ID
	}

	if err := ackEphemeral(ctx, handler); err != nil {
		return err
	}

	err := b.verification.PostPrompt(channelID)
	switch {
	case err == nil:
		return editContent(ctx, handler, "Verification prompt posted.")
	case errors.Is(err, ErrVerificationDisabled):
		return editContent(
			ctx,
			handler,
			"Verification isn't configured for this bot.",
		)
	default:
		handler.Logger().ErrorContext(
			ctx,
			"error posting verification prompt",
			tint.Err(err),
		)
		return editContent(ctx, handler, "Failed to post the prompt.")
	}
}

// handleServerCommand shows basic guild information.
func (b *CSBot) handleServerCommand(
	ctx context.Context,
	handler InteractionHandler,
) error {
	i := handler.GetInteraction()
	guild, err := b.discord.session.Guild(i.GuildID)
	if err != nil {
		handler.Logger().ErrorContext(ctx, "error fetching guild", tint.Err(err))
		return handler.Respond(ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "Couldn't fetch server info.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	}

	courseCount := 0
	assignable := b.store.Guild(i.GuildID).AssignableRoles()
	for _, role := range assignable {
		if role.Kind == RoleKindCourse {
			courseCount++
		}
	}

	embed := &discordgo.MessageEmbed{
		Title: guild.Name,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Server ID", Value: guild.ID, Inline: true},
			{Name: "Owner", Value: "<@" + guild.OwnerID + ">", Inline: true},
			{
				Name:   "Courses",
				Value:  itoa(courseCount),
				Inline: true,
			},
			{
				Name:   "Assignable roles",
				Value:  itoa(len(assignable)),
				Inline: true,
			},
		},
	}
	return handler.Respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

// handleUserCommand shows basic info about the invoking user.
func (b *CSBot) handleUserCommand(
	ctx context.Context,
	handler InteractionHandler,
) error {
	i := handler.GetInteraction()
	user := interactionUser(i)

	fields := []*discordgo.MessageEmbedField{
		{Name: "User ID", Value: user.ID, Inline: true},
		{Name: "Username", Value: user.Username, Inline: true},
	}
	if i.Member != nil && i.Member.Nick != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Nickname",
			Value:  i.Member.Nick,
			Inline: true,
		})
	}
	if i.Member != nil && !i.Member.JoinedAt.IsZero() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Joined",
			Value:  i.Member.JoinedAt.Format("2006-01-02"),
			Inline: true,
		})
	}

	embed := &discordgo.MessageEmbed{
		Title:  user.Username,
		Fields: fields,
	}
	if avatar := user.AvatarURL("128"); avatar != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatar}
	}
	return handler.Respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
