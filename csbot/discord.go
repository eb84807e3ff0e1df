package csbot

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Discord manages the gateway session for the bot.
//
// It owns the session handle, wires gateway event handlers, registers
// the application commands, and provides small utility methods used by
// the rest of the application.
type Discord struct {
	session                     DiscordSessionHandler
	config                      *DiscordConfig
	logger                      *slog.Logger
	metricConnects              atomic.Int64
	metricDisconnects           atomic.Int64
	connected                   atomic.Bool
	discordgoRemoveHandlerFuncs []func()
	bot                         *CSBot
}

func newDiscord(config *DiscordConfig) (*Discord, error) {
	d := &Discord{
		config:                      config,
		discordgoRemoveHandlerFuncs: []func(){},
	}
	return d, nil
}

// newSession initializes a new Discord session for the Discord struct.
// It sets up the session with the appropriate logger, token, and configuration.
func (d *Discord) newSession() (DiscordSessionHandler, error) {
	session := DiscordSession{
		logger: d.logger.With(loggerNameKey, "discord_session_handler"),
	}
	disc, err := discordgo.New("Bot " + d.config.Token)
	if err != nil {
		return session, fmt.Errorf("error creating discord session: %w", err)
	}
	disc.SyncEvents = false
	disc.StateEnabled = true
	disc.Identify.Intents = d.config.GatewayIntents
	session.session = disc
	if d.config.httpClient != nil {
		disc.Client = d.config.httpClient
	}

	err = session.SetLogLevel(d.config.DiscordGoLogLevel.Level())
	session.session.LogLevel = discordgo.LogDebug
	if err != nil {
		return session, err
	}

	return session, nil
}

// channelMessageSend sends the given message to the given discord channel ID
func (d *Discord) channelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) error {
	_, err := d.session.ChannelMessageSend(channelID, message, opts...)
	return err
}

func (d *Discord) handlerReady() func(
	s *discordgo.Session,
	r *discordgo.Ready,
) {
	return func(s *discordgo.Session, _ *discordgo.Ready) {
		d.logger.Info(
			"Ready",
			"session_id", s.State.SessionID,
			"user_id", s.State.User.ID,
			"username", s.State.User.Username,
		)
	}
}

func (d *Discord) handlerConnect() func(
	s *discordgo.Session,
	r *discordgo.Connect,
) {
	return func(s *discordgo.Session, _ *discordgo.Connect) {
		d.metricConnects.Add(1)
		d.connected.Store(true)
		var sessionID string
		var userID string
		var username string

		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
			if s.State.User != nil {
				userID = s.State.User.ID
				username = s.State.User.Username
			}
		}
		d.logger.Info(
			"Connected",
			"session_id", sessionID,
			slog.Group("user", "id", userID, "username", username),
		)
		if d.config.NotificationChannelID != "" && d.config.StartupMessage != "" {
			if sendErr := d.channelMessageSend(
				d.config.NotificationChannelID,
				d.config.StartupMessage,
				discordgo.WithRetryOnRatelimit(false),
				discordgo.WithRestRetries(1),
			); sendErr != nil {
				d.logger.Error("unable to send startup message", tint.Err(sendErr))
			}
		}
	}
}

func (d *Discord) handlerDisconnect() func(
	s *discordgo.Session,
	r *discordgo.Disconnect,
) {
	return func(s *discordgo.Session, _ *discordgo.Disconnect) {
		d.connected.Store(false)
		d.metricDisconnects.Add(1)

		var sessionID string
		var userID string
		var username string

		if s != nil && s.State != nil {
			sessionID = s.State.SessionID
			if s.State.User != nil {
				userID = s.State.User.ID
				username = s.State.User.Username
			}
		}
		d.logger.Info(
			"disconnected",
			"session_id", sessionID,
			slog.Group("user", "id", userID, "username", username),
		)
	}
}

func (d *Discord) updateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

// registerCommands sends the bot's commands to the discord bulk overwrite
// endpoint
func (d *Discord) registerCommands(
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	commands := applicationCommands()

	created, err := d.session.ApplicationCommandBulkOverwrite(
		d.config.ApplicationID,
		d.config.GuildID,
		commands,
		options...,
	)
	if err != nil {
		d.logger.Error("error overwriting discord commands", tint.Err(err))
		return created, err
	}
	for _, c := range created {
		d.logger.Info("Created command", "command", c.Name)
	}

	return created, nil
}

// DiscordSessionHandler defines the interface for handling Discord sessions.
// This is basically defines methods from `discordgo.Session` which are
// used in this application, to enable testing/mocking.
type DiscordSessionHandler interface {
	// Open creates a websocket connection to Discord
	Open() error

	// Close closes the websocket connection to Discord
	Close() error

	// AddHandler adds a discord gateway event handler
	AddHandler(handler any) func()

	// SetLogLevel modifies the session's log level
	SetLogLevel(lvl slog.Level) error

	// SetHTTPClient sets the HTTP client for the session
	SetHTTPClient(client *http.Client)

	// UpdateCustomStatus sets the bot's user status to the given string.
	// If empty, sets the bot user to active and removes any existing
	// custom status.
	UpdateCustomStatus(status string) error

	// ApplicationCommandBulkOverwrite overwrites Discord application
	// commands in bulk.
	ApplicationCommandBulkOverwrite(
		appID string,
		guildID string,
		commands []*discordgo.ApplicationCommand,
		options ...discordgo.RequestOption,
	) ([]*discordgo.ApplicationCommand, error)

	// Guild retrieves a guild by ID.
	Guild(
		guildID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Guild, error)

	// GuildRoles retrieves all roles for the given guild.
	GuildRoles(
		guildID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Role, error)

	// GuildRoleCreate creates a new role in the given guild.
	GuildRoleCreate(
		guildID string,
		data *discordgo.RoleParams,
		options ...discordgo.RequestOption,
	) (*discordgo.Role, error)

	// GuildRoleReorder repositions the given roles within the guild's
	// role list.
	GuildRoleReorder(
		guildID string,
		roles []*discordgo.Role,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Role, error)

	// GuildRoleDelete deletes the given role.
	GuildRoleDelete(
		guildID string,
		roleID string,
		options ...discordgo.RequestOption,
	) error

	// GuildMembers retrieves a page of guild members.
	GuildMembers(
		guildID string,
		after string,
		limit int,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Member, error)

	// GuildMemberRoleAdd grants a role to a guild member.
	GuildMemberRoleAdd(
		guildID string,
		userID string,
		roleID string,
		options ...discordgo.RequestOption,
	) error

	// GuildMemberRoleRemove removes a role from a guild member.
	GuildMemberRoleRemove(
		guildID string,
		userID string,
		roleID string,
		options ...discordgo.RequestOption,
	) error

	// GuildChannels retrieves all channels for the given guild.
	GuildChannels(
		guildID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Channel, error)

	// GuildChannelCreateComplex creates a new channel in the given guild.
	GuildChannelCreateComplex(
		guildID string,
		data discordgo.GuildChannelCreateData,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	// Channel retrieves a channel by ID.
	Channel(
		channelID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	// ChannelDelete deletes the given channel.
	ChannelDelete(
		channelID string,
		options ...discordgo.RequestOption,
	) (*discordgo.Channel, error)

	// ChannelPermissionSet creates or updates a permission overwrite on
	// the given channel.
	ChannelPermissionSet(
		channelID string,
		targetID string,
		targetType discordgo.PermissionOverwriteType,
		allow int64,
		deny int64,
		options ...discordgo.RequestOption,
	) error

	// ChannelMessages retrieves messages from the given channel.
	ChannelMessages(
		channelID string,
		limit int,
		beforeID string,
		afterID string,
		aroundID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Message, error)

	// ChannelMessageSend sends a message to a specified channel.
	ChannelMessageSend(
		channelID string,
		message string,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageSendComplex sends a message with embeds and
	// components to the given channel.
	ChannelMessageSendComplex(
		channelID string,
		data *discordgo.MessageSend,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageSendEmbed sends an embed to the given channel.
	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// ChannelMessageEditEmbed replaces the embed on an existing message.
	ChannelMessageEditEmbed(
		channelID string,
		messageID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// MessageReactionAdd adds an emoji reaction to the given message.
	MessageReactionAdd(
		channelID string,
		messageID string,
		emojiID string,
		options ...discordgo.RequestOption,
	) error

	// InteractionRespond sends an interaction response to Discord
	InteractionRespond(
		interaction *discordgo.Interaction,
		resp *discordgo.InteractionResponse,
		options ...discordgo.RequestOption,
	) error

	// InteractionResponseEdit modifies the given interaction
	InteractionResponseEdit(
		interaction *discordgo.Interaction,
		newresp *discordgo.WebhookEdit,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
}

// DiscordSession implements DiscordSessionHandler, wrapping a
// [discordgo.Session](https://pkg.go.dev/github.com/bwmarrin/discordgo#Session)
type DiscordSession struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func (d DiscordSession) Open() error {
	return d.session.Open()
}

func (d DiscordSession) Close() error {
	return d.session.Close()
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.session.AddHandler(handler)
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) error {
	switch lvl.Level() {
	case slog.LevelInfo:
		d.session.LogLevel = discordgo.LogInformational
	case slog.LevelWarn:
		d.session.LogLevel = discordgo.LogWarning
	case slog.LevelDebug:
		d.session.LogLevel = discordgo.LogDebug
	case slog.LevelError:
		d.session.LogLevel = discordgo.LogError
	default:
		return fmt.Errorf("invalid log level: %s", lvl)
	}
	return nil
}

func (d DiscordSession) SetHTTPClient(client *http.Client) {
	d.session.Client = client
}

func (d DiscordSession) UpdateCustomStatus(status string) error {
	return d.session.UpdateCustomStatus(status)
}

func (d DiscordSession) ApplicationCommandBulkOverwrite(
	appID string,
	guildID string,
	commands []*discordgo.ApplicationCommand,
	options ...discordgo.RequestOption,
) ([]*discordgo.ApplicationCommand, error) {
	return d.session.ApplicationCommandBulkOverwrite(
		appID, guildID, commands, options...,
	)
}

func (d DiscordSession) Guild(
	guildID string,
	options ...discordgo.RequestOption,
) (*discordgo.Guild, error) {
	return d.session.Guild(guildID, options...)
}

func (d DiscordSession) GuildRoles(
	guildID string,
	options ...discordgo.RequestOption,
) ([]*discordgo.Role, error) {
	return d.session.GuildRoles(guildID, options...)
}

func (d DiscordSession) GuildRoleCreate(
	guildID string,
	data *discordgo.RoleParams,
	options ...discordgo.RequestOption,
) (*discordgo.Role, error) {
	role, err := d.session.GuildRoleCreate(guildID, data, options...)
	if err != nil {
		d.logger.Error(
			"error creating role",
			tint.Err(err),
			"guild_id", guildID,
			"name", data.Name,
		)
	} else {
		d.logger.Info(
			"created role",
			"guild_id", guildID,
			"role_id", role.ID,
			"name", role.Name,
		)
	}
	return role, err
}

func (d DiscordSession) GuildRoleReorder(
	guildID string,
	roles []*discordgo.Role,
	options ...discordgo.RequestOption,
) ([]*discordgo.Role, error) {
	return d.session.GuildRoleReorder(guildID, roles, options...)
}

func (d DiscordSession) GuildRoleDelete(
	guildID string,
	roleID string,
	options ...discordgo.RequestOption,
) error {
	err := d.session.GuildRoleDelete(guildID, roleID, options...)
	if err != nil {
		d.logger.Error(
			"error deleting role",
			tint.Err(err),
			"guild_id", guildID,
			"role_id", roleID,
		)
	}
	return err
}

func (d DiscordSession) GuildMembers(
	guildID string,
	after string,
	limit int,
	options ...discordgo.RequestOption,
) ([]*discordgo.Member, error) {
	return d.session.GuildMembers(guildID, after, limit, options...)
}

func (d DiscordSession) GuildMemberRoleAdd(
	guildID string,
	userID string,
	roleID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID, options...)
}

func (d DiscordSession) GuildMemberRoleRemove(
	guildID string,
	userID string,
	roleID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.GuildMemberRoleRemove(guildID, userID, roleID, options...)
}

func (d DiscordSession) GuildChannels(
	guildID string,
	options ...discordgo.RequestOption,
) ([]*discordgo.Channel, error) {
	return d.session.GuildChannels(guildID, options...)
}

func (d DiscordSession) GuildChannelCreateComplex(
	guildID string,
	data discordgo.GuildChannelCreateData,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	ch, err := d.session.GuildChannelCreateComplex(guildID, data, options...)
	if err != nil {
		d.logger.Error(
			"error creating channel",
			tint.Err(err),
			"guild_id", guildID,
			"name", data.Name,
			"type", data.Type,
		)
	} else {
		d.logger.Info(
			"created channel",
			"guild_id", guildID,
			"channel_id", ch.ID,
			"name", ch.Name,
		)
	}
	return ch, err
}

func (d DiscordSession) Channel(
	channelID string,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	return d.session.Channel(channelID, options...)
}

func (d DiscordSession) ChannelDelete(
	channelID string,
	options ...discordgo.RequestOption,
) (*discordgo.Channel, error) {
	ch, err := d.session.ChannelDelete(channelID, options...)
	if err != nil {
		d.logger.Error(
			"error deleting channel",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
	return ch, err
}

func (d DiscordSession) ChannelPermissionSet(
	channelID string,
	targetID string,
	targetType discordgo.PermissionOverwriteType,
	allow int64,
	deny int64,
	options ...discordgo.RequestOption,
) error {
	return d.session.ChannelPermissionSet(
		channelID, targetID, targetType, allow, deny, options...,
	)
}

func (d DiscordSession) ChannelMessages(
	channelID string,
	limit int,
	beforeID string,
	afterID string,
	aroundID string,
	options ...discordgo.RequestOption,
) ([]*discordgo.Message, error) {
	return d.session.ChannelMessages(
		channelID, limit, beforeID, afterID, aroundID, options...,
	)
}

func (d DiscordSession) ChannelMessageSend(
	channelID string,
	message string,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.ChannelMessageSend(channelID, message, opts...)
	if err != nil {
		d.logger.Error(
			"error sending message",
			tint.Err(err),
			"channel_id", channelID,
		)
	}
	return msg, err
}

func (d DiscordSession) ChannelMessageSendComplex(
	channelID string,
	data *discordgo.MessageSend,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendComplex(channelID, data, options...)
}

func (d DiscordSession) ChannelMessageSendEmbed(
	channelID string,
	embed *discordgo.MessageEmbed,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendEmbed(channelID, embed, options...)
}

func (d DiscordSession) ChannelMessageEditEmbed(
	channelID string,
	messageID string,
	embed *discordgo.MessageEmbed,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	return d.session.ChannelMessageEditEmbed(
		channelID, messageID, embed, options...,
	)
}

func (d DiscordSession) MessageReactionAdd(
	channelID string,
	messageID string,
	emojiID string,
	options ...discordgo.RequestOption,
) error {
	return d.session.MessageReactionAdd(channelID, messageID, emojiID, options...)
}

func (d DiscordSession) InteractionRespond(
	interaction *discordgo.Interaction,
	resp *discordgo.InteractionResponse,
	options ...discordgo.RequestOption,
) error {
	err := d.session.InteractionRespond(interaction, resp, options...)
	if err != nil {
		d.logger.Error(
			"error responding to interaction",
			tint.Err(err),
			"interaction_id", interaction.ID,
		)
	}
	return err
}

func (d DiscordSession) InteractionResponseEdit(
	interaction *discordgo.Interaction,
	newresp *discordgo.WebhookEdit,
	options ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := d.session.InteractionResponseEdit(
		interaction, newresp, options...,
	)
	if err != nil {
		d.logger.Error(
			"error editing interaction response",
			tint.Err(err),
			"interaction_id", interaction.ID,
		)
	}
	return msg, err
}
