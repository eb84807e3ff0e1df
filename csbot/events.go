package csbot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

const (
	welcomeReaction = "👋"
	goodbyeReaction = "🫡"
)

// renderWelcome substitutes the {user} placeholder with a mention.
func renderWelcome(template string, userID string) string {
	return strings.ReplaceAll(template, "{user}", fmt.Sprintf("<@%s>", userID))
}

// renderGoodbye substitutes {user} with the member's bold display name
// and {n} with a newline. Departed members can't be mentioned, so the
// name is rendered as text.
func renderGoodbye(template string, displayName string) string {
	out := strings.ReplaceAll(
		template,
		"{user}",
		fmt.Sprintf("**%s**", displayName),
	)
	return strings.ReplaceAll(out, "{n}", "\n")
}

// handlerReady records the bot's own user ID once the gateway reports
// it, so bot-authored config messages can be recognized.
func (b *CSBot) handlerReady() func(
	s *discordgo.Session,
	r *discordgo.Ready,
) {
	return func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			b.guildConfig.SetBotUserID(r.User.ID)
		}
	}
}

// handlerGuildCreate initializes per-guild state when a guild becomes
// available: it ensures the config channel exists, loads the persisted
// config, and rebuilds the assignable-role cache.
func (b *CSBot) handlerGuildCreate() func(
	s *discordgo.Session,
	g *discordgo.GuildCreate,
) {
	return func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		log := b.logger.With("guild_id", g.ID, "guild_name", g.Name)
		log.Info("guild available")

		b.store.Guild(g.ID)

		if _, err := b.guildConfig.EnsureChannel(g.ID); err != nil {
			log.Error("error ensuring config channel", tint.Err(err))
		}
		if _, err := b.guildConfig.Load(g.ID); err != nil &&
			!errors.Is(err, ErrConfigMessageNotFound) &&
			!errors.Is(err, ErrConfigChannelNotFound) {
			log.Error("error loading guild config", tint.Err(err))
		}
		if err := b.roleCache.RebuildGuild(g.ID); err != nil {
			log.Error("error rebuilding role cache", tint.Err(err))
		}
	}
}

// handlerGuildMemberAdd sends the configured welcome message to the
// welcome channel and reacts to it.
func (b *CSBot) handlerGuildMemberAdd() func(
	s *discordgo.Session,
	m *discordgo.GuildMemberAdd,
) {
	return func(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if m.User == nil || m.User.Bot {
			return
		}
		cfg := b.store.Guild(m.GuildID).Config()
		if cfg.WelcomeChannel == "" || cfg.WelcomeMessage == "" {
			return
		}

		content := renderWelcome(cfg.WelcomeMessage, m.User.ID)
		msg, err := b.discord.session.ChannelMessageSend(
			cfg.WelcomeChannel,
			content,
		)
		if err != nil {
			b.logger.Error(
				"error sending welcome message",
				tint.Err(err),
				"guild_id", m.GuildID,
			)
			return
		}
		if err = b.discord.session.MessageReactionAdd(
			cfg.WelcomeChannel,
			msg.ID,
			welcomeReaction,
		); err != nil {
			b.logger.Warn("error adding welcome reaction", tint.Err(err))
		}
	}
}

// handlerGuildMemberRemove sends the configured goodbye message to the
// welcome channel and reacts to it.
func (b *CSBot) handlerGuildMemberRemove() func(
	s *discordgo.Session,
	m *discordgo.GuildMemberRemove,
) {
	return func(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
		if m.User == nil || m.User.Bot {
			return
		}
		cfg := b.store.Guild(m.GuildID).Config()
		if cfg.WelcomeChannel == "" || cfg.GoodbyeMessage == "" {
			return
		}

		displayName := m.User.GlobalName
		if displayName == "" {
			displayName = m.User.Username
		}
		content := renderGoodbye(cfg.GoodbyeMessage, displayName)
		msg, err := b.discord.session.ChannelMessageSend(
			cfg.WelcomeChannel,
			content,
		)
		if err != nil {
			b.logger.Error(
				"error sending goodbye message",
				tint.Err(err),
				"guild_id", m.GuildID,
			)
			return
		}
		if err = b.discord.session.MessageReactionAdd(
			cfg.WelcomeChannel,
			msg.ID,
			goodbyeReaction,
		); err != nil {
			b.logger.Warn("error adding goodbye reaction", tint.Err(err))
		}
	}
}
