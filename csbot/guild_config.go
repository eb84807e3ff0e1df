package csbot

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var (
	// ErrConfigChannelNotFound indicates the guild has no config channel.
	ErrConfigChannelNotFound = errors.New("config channel not found")

	// ErrConfigMessageNotFound indicates the config channel exists but
	// holds no bot-authored config message.
	ErrConfigMessageNotFound = errors.New("config message not found")

	// ErrUnknownConfigField indicates a config field name that isn't
	// part of the guild configuration.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrInvalidPattern indicates a config value that must be a valid
	// regular expression but isn't.
	ErrInvalidPattern = errors.New("invalid regular expression")
)

// Guild config field names, as they appear in the config embed.
const (
	configFieldWelcomeChannel  = "welcomeChannel"
	configFieldWelcomeMessage  = "welcomeMessage"
	configFieldGoodbyeMessage  = "goodbyeMessage"
	configFieldRequestsChannel = "requestsChannel"
	configFieldMoreAssignables = "moreAssignables"
	configFieldBaseRolePos     = "baseRolePos"
)

// configFieldOrder fixes the order fields appear in the rendered embed.
var configFieldOrder = []string{
	configFieldWelcomeChannel,
	configFieldWelcomeMessage,
	configFieldGoodbyeMessage,
	configFieldRequestsChannel,
	configFieldMoreAssignables,
	configFieldBaseRolePos,
}

// Default guild config values.
const (
	DefaultWelcomeMessage = "Welcome to the server, {user}!"
	DefaultGoodbyeMessage = "Farewell, {user}!"
	DefaultBaseRolePos    = "1"

	// defaultMiscPattern matches nothing, so no roles are classified as
	// miscellaneous assignables until a guild opts in.
	defaultMiscPattern = "a^"
)

// GuildConfig is the per-guild configuration, persisted as an embed in
// the guild's config channel. Channel fields hold channel IDs and may
// be empty; MoreAssignables holds a regular expression source (empty
// means "match nothing").
type GuildConfig struct {
	WelcomeChannel  string `json:"welcome_channel"`
	WelcomeMessage  string `json:"welcome_message"`
	GoodbyeMessage  string `json:"goodbye_message"`
	RequestsChannel string `json:"requests_channel"`
	MoreAssignables string `json:"more_assignables"`
	BaseRolePos     string `json:"base_role_pos"`
}

func defaultGuildConfig() *GuildConfig {
	return &GuildConfig{
		WelcomeMessage: DefaultWelcomeMessage,
		GoodbyeMessage: DefaultGoodbyeMessage,
		BaseRolePos:    DefaultBaseRolePos,
	}
}

// Field returns the value of the named config field.
func (c *GuildConfig) Field(name string) (string, error) {
	switch name {
	case configFieldWelcomeChannel:
		return c.WelcomeChannel, nil
	case configFieldWelcomeMessage:
		return c.WelcomeMessage, nil
	case configFieldGoodbyeMessage:
		return c.GoodbyeMessage, nil
	case configFieldRequestsChannel:
		return c.RequestsChannel, nil
	case configFieldMoreAssignables:
		return c.MoreAssignables, nil
	case configFieldBaseRolePos:
		return c.BaseRolePos, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownConfigField, name)
	}
}

// SetField sets the named config field. MoreAssignables values are
// validated as regular expressions before assignment.
func (c *GuildConfig) SetField(name, value string) error {
	switch name {
	case configFieldWelcomeChannel:
		c.WelcomeChannel = value
	case configFieldWelcomeMessage:
		c.WelcomeMessage = value
	case configFieldGoodbyeMessage:
		c.GoodbyeMessage = value
	case configFieldRequestsChannel:
		c.RequestsChannel = value
	case configFieldMoreAssignables:
		if value != "" {
			if _, err := regexp.Compile(value); err != nil {
				return fmt.Errorf("%w: %q", ErrInvalidPattern, value)
			}
		}
		c.MoreAssignables = value
	case configFieldBaseRolePos:
		c.BaseRolePos = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownConfigField, name)
	}
	return nil
}

// MiscPattern compiles the guild's miscellaneous-assignable pattern,
// falling back to a match-nothing pattern when unset or invalid.
func (c *GuildConfig) MiscPattern() *regexp.Regexp {
	if c.MoreAssignables == "" {
		return regexp.MustCompile(defaultMiscPattern)
	}
	re, err := regexp.Compile(c.MoreAssignables)
	if err != nil {
		return regexp.MustCompile(defaultMiscPattern)
	}
	return re
}

// GuildConfigManager loads, renders and persists guild configuration
// embeds, and manages the well-known config channel.
type GuildConfigManager struct {
	session   DiscordSessionHandler
	store     *GuildStateStore
	config    *CourseConfig
	logger    *slog.Logger
	botUserID atomic.Value
}

func newGuildConfigManager(
	session DiscordSessionHandler,
	store *GuildStateStore,
	config *CourseConfig,
	logger *slog.Logger,
) *GuildConfigManager {
	return &GuildConfigManager{
		session: session,
		store:   store,
		config:  config,
		logger:  logger.With(loggerNameKey, "guild_config"),
	}
}

// SetBotUserID records the bot's own user ID, used to recognize
// bot-authored config messages.
func (m *GuildConfigManager) SetBotUserID(id string) {
	m.botUserID.Store(id)
}

func (m *GuildConfigManager) botID() string {
	id, _ := m.botUserID.Load().(string)
	return id
}

// Render builds the config embed for the given configuration. Only
// non-empty fields are included, in canonical order, with values
// wrapped in backticks.
func (m *GuildConfigManager) Render(cfg *GuildConfig) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       m.config.ConfigEmbedTitle,
		Description: "Values are edited with the `/config` command.",
	}
	for _, name := range configFieldOrder {
		value, err := cfg.Field(name)
		if err != nil || value == "" {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  name,
			Value: fmt.Sprintf("`%s`", value),
		})
	}
	return embed
}

// parseConfigEmbed parses a config embed back into a GuildConfig,
// layering recognized fields over defaults. Unknown fields and values
// without backtick delimiters are ignored.
func parseConfigEmbed(embed *discordgo.MessageEmbed) *GuildConfig {
	cfg := defaultGuildConfig()
	if embed == nil {
		return cfg
	}
	for _, field := range embed.Fields {
		value := field.Value
		if !strings.HasPrefix(value, "`") || !strings.HasSuffix(value, "`") {
			continue
		}
		value = strings.TrimSuffix(strings.TrimPrefix(value, "`"), "`")
		_ = cfg.SetField(field.Name, value)
	}
	return cfg
}

// findConfigChannel locates the guild's config channel by its
// well-known name.
func (m *GuildConfigManager) findConfigChannel(guildID string) (
	*discordgo.Channel,
	error,
) {
	channels, err := m.session.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("error listing guild channels: %w", err)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText &&
			ch.Name == m.config.ConfigChannelName {
			return ch, nil
		}
	}
	return nil, ErrConfigChannelNotFound
}

// findConfigMessage locates the bot-authored config message in the
// given channel.
func (m *GuildConfigManager) findConfigMessage(channelID string) (
	*discordgo.Message,
	error,
) {
	messages, err := m.session.ChannelMessages(channelID, 50, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("error listing channel messages: %w", err)
	}
	botID := m.botID()
	for _, msg := range messages {
		if msg.Author == nil || msg.Author.ID != botID {
			continue
		}
		for _, embed := range msg.Embeds {
			if embed.Title == m.config.ConfigEmbedTitle {
				return msg, nil
			}
		}
	}
	return nil, ErrConfigMessageNotFound
}

// Load reads the guild's persisted configuration from the config
// channel into the guild state. Missing channel or message leaves the
// in-memory config untouched and returns ErrConfigChannelNotFound or
// ErrConfigMessageNotFound.
func (m *GuildConfigManager) Load(guildID string) (*GuildConfig, error) {
	channel, err := m.findConfigChannel(guildID)
	if err != nil {
		return nil, err
	}
	msg, err := m.findConfigMessage(channel.ID)
	if err != nil {
		return nil, err
	}

	cfg := parseConfigEmbed(msg.Embeds[0])
	state := m.store.Guild(guildID)
	state.SetConfig(cfg)
	state.SetConfigMessage(channel.ID, msg.ID)
	m.logger.Info(
		"loaded guild config",
		"guild_id", guildID,
		"config", structToSlogValue(cfg),
	)
	return cfg, nil
}

// Persist writes the guild's current in-memory configuration back to
// the persisted config message, editing it in place.
func (m *GuildConfigManager) Persist(guildID string) error {
	state := m.store.Guild(guildID)
	channelID, messageID := state.ConfigMessage()
	if channelID == "" || messageID == "" {
		// location unknown; try to discover it
		if _, err := m.Load(guildID); err != nil &&
			!errors.Is(err, ErrConfigMessageNotFound) {
			return err
		}
		channelID, messageID = state.ConfigMessage()
		if channelID == "" || messageID == "" {
			return ErrConfigMessageNotFound
		}
	}

	embed := m.Render(state.Config())
	_, err := m.session.ChannelMessageEditEmbed(channelID, messageID, embed)
	if err != nil {
		return fmt.Errorf("error persisting guild config: %w", err)
	}
	return nil
}

// SetConfigField sets a single config field and persists the change.
func (m *GuildConfigManager) SetConfigField(
	guildID string,
	name string,
	value string,
) error {
	state := m.store.Guild(guildID)
	cfg := state.Config()
	if err := cfg.SetField(name, value); err != nil {
		return err
	}
	return m.Persist(guildID)
}

// EnsureChannel makes sure the guild has a config channel holding
// exactly one config message, creating whichever pieces are missing.
// The channel is hidden from @everyone and made visible to roles that
// look administrative (ManageServer, or ManageChannels with ManageRoles).
//
// Returns true if the channel was created on this call.
func (m *GuildConfigManager) EnsureChannel(guildID string) (bool, error) {
	created := false
	channel, err := m.findConfigChannel(guildID)
	if errors.Is(err, ErrConfigChannelNotFound) {
		channel, err = m.createConfigChannel(guildID)
		if err != nil {
			return false, err
		}
		created = true
	} else if err != nil {
		return false, err
	}

	msg, err := m.findConfigMessage(channel.ID)
	if errors.Is(err, ErrConfigMessageNotFound) {
		state := m.store.Guild(guildID)
		embed := m.Render(state.Config())
		msg, err = m.session.ChannelMessageSendEmbed(channel.ID, embed)
		if err != nil {
			return created, fmt.Errorf("error sending config message: %w", err)
		}
		m.logger.Info(
			"created config message",
			"guild_id", guildID,
			"channel_id", channel.ID,
			"message_id", msg.ID,
		)
	} else if err != nil {
		return created, err
	}

	m.store.Guild(guildID).SetConfigMessage(channel.ID, msg.ID)
	return created, nil
}

func (m *GuildConfigManager) createConfigChannel(guildID string) (
	*discordgo.Channel,
	error,
) {
	channel, err := m.session.GuildChannelCreateComplex(
		guildID,
		discordgo.GuildChannelCreateData{
			Name:  m.config.ConfigChannelName,
			Type:  discordgo.ChannelTypeGuildText,
			Topic: "Bot configuration. Do not delete.",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error creating config channel: %w", err)
	}

	// @everyone shares its ID with the guild
	if err = m.session.ChannelPermissionSet(
		channel.ID,
		guildID,
		discordgo.PermissionOverwriteTypeRole,
		0,
		discordgo.PermissionViewChannel,
	); err != nil {
		m.logger.Error(
			"error hiding config channel",
			tint.Err(err),
			"guild_id", guildID,
			"channel_id", channel.ID,
		)
	}

	roles, err := m.session.GuildRoles(guildID)
	if err != nil {
		m.logger.Error(
			"error listing roles for config channel grants",
			tint.Err(err),
			"guild_id", guildID,
		)
		return channel, nil
	}
	for _, role := range roles {
		if !adminLikeRole(role) {
			continue
		}
		if err = m.session.ChannelPermissionSet(
			channel.ID,
			role.ID,
			discordgo.PermissionOverwriteTypeRole,
			discordgo.PermissionViewChannel,
			0,
		); err != nil {
			m.logger.Error(
				"error granting config channel access",
				tint.Err(err),
				"guild_id", guildID,
				"role_id", role.ID,
			)
		}
	}
	return channel, nil
}

// adminLikeRole reports whether a role should be able to see the
// config channel.
func adminLikeRole(role *discordgo.Role) bool {
	if role.Permissions&discordgo.PermissionManageServer != 0 {
		return true
	}
	return role.Permissions&discordgo.PermissionManageChannels != 0 &&
		role.Permissions&discordgo.PermissionManageRoles != 0
}
