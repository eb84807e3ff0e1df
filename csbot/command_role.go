package csbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/lmittmann/tint"
)

// handleRoleCommand toggles an assignable role on the invoking member.
func (b *CSBot) handleRoleCommand(
	ctx context.Context,
	handler InteractionHandler,
) error {
	i := handler.GetInteraction()
	if i.Member == nil {
		return fmt.Errorf("role command invoked outside a guild")
	}

	options := discordInteractionOptions(i)
	name := options[optionRole].StringValue()

	var target AssignableRole
	found := false
	for _, role := range b.store.Guild(i.GuildID).AssignableRoles() {
		if strings.EqualFold(role.Name, name) {
			target = role
			found = true
			break
		}
	}

	if err := ackEphemeral(ctx, handler); err != nil {
		return err
	}
	if !found {
		return editContent(
			ctx,
			handler,
			fmt.Sprintf("**%s** isn't an assignable role.", name),
		)
	}

	holding := false
	for _, roleID := range i.Member.Roles {
		if roleID == target.RoleID {
			holding = true
			break
		}
	}

	userID := i.Member.User.ID
	if holding {
		if err := b.discord.session.GuildMemberRoleRemove(
			i.GuildID,
			userID,
			target.RoleID,
		); err != nil {
			handler.Logger().ErrorContext(ctx, "error removing role", tint.Err(err))
			return editContent(
				ctx,
				handler,
				fmt.Sprintf("Failed to remove **%s**.", target.Name),
			)
		}
		return editContent(
			ctx,
			handler,
			fmt.Sprintf("Removed **%s**.", target.Name),
		)
	}

	if err := b.discord.session.GuildMemberRoleAdd(
		i.GuildID,
		userID,
		target.RoleID,
	); err != nil {
		handler.Logger().ErrorContext(ctx, "error adding role", tint.Err(err))
		return editContent(
			ctx,
			handler,
			fmt.Sprintf("Failed to add **%s**.", target.Name),
		)
	}
	return editContent(ctx, handler, fmt.Sprintf("Added **%s**!", target.Name))
}
