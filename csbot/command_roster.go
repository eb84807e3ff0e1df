package csbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// ackEphemeral defers an ephemeral reply, buying time for the
// multi-call course operations.
func ackEphemeral(ctx context.Context, handler InteractionHandler) error {
	return handler.Respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

// editContent replaces the deferred reply with the given content.
func editContent(
	ctx context.Context,
	handler InteractionHandler,
	content string,
) error {
	_, err := handler.Edit(ctx, &discordgo.WebhookEdit{Content: &content})
	return err
}

// announce posts a public confirmation to the originating channel; the
// deferred reply itself stays ephemeral.
func (b *CSBot) announce(
	ctx context.Context,
	handler InteractionHandler,
	content string,
) {
	i := handler.GetInteraction()
	if i.ChannelID == "" {
		return
	}
	if _, err := b.discord.session.ChannelMessageSend(
		i.ChannelID,
		content,
	); err != nil {
		handler.Logger().ErrorContext(
			ctx,
			"error sending announcement",
			tint.Err(err),
		)
	}
}

// handleRosterCommand executes the /roster subcommands.
func (b *CSBot) handleRosterCommand(
	ctx context.Context,
	handler InteractionHandler,
) error {
	i := handler.GetInteraction()
	sub, options := subcommandOptions(i)

	if err := ackEphemeral(ctx, handler); err != nil {
		return err
	}

	switch sub {
	case rosterSubcommandAdd:
		number := options[optionCourseNumber].IntValue()
		instructor := strings.TrimSpace(options[optionInstructor].StringValue())
		alias := fmt.Sprintf("%d %s", number, instructor)

		err := b.courses.Create(i.GuildID, alias)
		switch {
		case err == nil:
			msg := fmt.Sprintf("Course **%s** created!", alias)
			b.announce(ctx, handler, msg)
			return editContent(ctx, handler, msg)
		case errors.Is(err, ErrCourseAlreadyExists):
			return editContent(
				ctx,
				handler,
				fmt.Sprintf("Course **%s** already exists.", alias),
			)
		case errors.Is(err, ErrNoPermittedRoles):
			return editContent(
				ctx,
				handler,
				"No roles are permitted to manage the new category; "+
					"nothing was created.",
			)
		default:
			handler.Logger().ErrorContext(
				ctx,
				"error creating course",
				tint.Err(err),
			)
			return editContent(
				ctx,
				handler,
				fmt.Sprintf("Failed to create course **%s**.", alias),
			)
		}
	case rosterSubcommandRemove:
		alias := options[optionCourse].StringValue()
		role, ok := b.store.Guild(i.GuildID).FindCourseRole(alias)
		if !ok {
			return editContent(
				ctx,
				handler,
				fmt.Sprintf("No course named **%s** found.", alias),
			)
		}
		return b.reportCourseResult(
			ctx,
			handler,
			b.courses.Remove(i.GuildID, role.RoleID),
			fmt.Sprintf("Course **%s** removed.", alias),
		)
	case rosterSubcommandRemoveAll:
		return b.reportCourseResult(
			ctx,
			handler,
			b.courses.RemoveAll(i.GuildID),
			"All courses removed.",
		)
	case rosterSubcommandClear:
		alias := options[optionCourse].StringValue()
		role, ok := b.store.Guild(i.GuildID).FindCourseRole(alias)
		if !ok {
			return editContent(
				ctx,
				handler,
				fmt.Sprintf("No course named **%s** found.", alias),
			)
		}
		return b.reportCourseResult(
			ctx,
			handler,
			b.courses.Clear(i.GuildID, role.RoleID),
			fmt.Sprintf("Course **%s** cleared.", alias),
		)
	case rosterSubcommandClearAll:
		return b.reportCourseResult(
			ctx,
			handler,
			b.courses.ClearAll(i.GuildID),
			"All courses cleared.",
		)
	default:
		return fmt.Errorf("unknown roster subcommand: %s", sub)
	}
}

// reportCourseResult turns a course operation result into user-facing
// messages: a concise status in the deferred reply, a public
// confirmation on success, and a consolidated failure list sent to the
// originating channel when the operation partially failed.
func (b *CSBot) reportCourseResult(
	ctx context.Context,
	handler InteractionHandler,
	err error,
	successMessage string,
) error {
	if err == nil {
		b.announce(ctx, handler, successMessage)
		return editContent(ctx, handler, successMessage)
	}

	i := handler.GetInteraction()
	var partial *PartialFailure
	if errors.As(err, &partial) {
		report := strings.Join(partial.Lines(), "\n")
		if i.ChannelID != "" {
			if _, sendErr := b.discord.session.ChannelMessageSend(
				i.ChannelID,
				report,
			); sendErr != nil {
				handler.Logger().ErrorContext(
					ctx,
					"error sending failure report",
					tint.Err(sendErr),
				)
			}
		}
		return editContent(
			ctx,
			handler,
			fmt.Sprintf(
				"Completed with %d failure(s):\n%s",
				len(partial.Failures),
				report,
			),
		)
	}

	if errors.Is(err, ErrCourseRoleNotFound) {
		return editContent(ctx, handler, "That course's role no longer exists.")
	}

	handler.Logger().ErrorContext(ctx, "course operation failed", tint.Err(err))
	return editContent(ctx, handler, "Something went wrong. Check the logs.")
}
