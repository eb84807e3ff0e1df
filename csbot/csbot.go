package csbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

var defaultLogWriter io.Writer = os.Stdout

// CSBot is the top-level application object: it owns the Discord
// session, the per-guild state store, the course/config/verification
// managers, the sqlite database, and the status API.
type CSBot struct {
	config     *Config
	logger     *slog.Logger
	logHandler slog.Handler

	discord      *Discord
	store        *GuildStateStore
	roleCache    *RoleCache
	colors       *ColorAllocator
	courses      *CourseManager
	guildConfig  *GuildConfigManager
	verification *VerificationManager

	db      *database
	api     *apiServer
	runMu   sync.Mutex
	started time.Time
}

// New creates a CSBot from the given config, wiring every component.
// The database is opened (and migrated) here, so the returned bot is
// ready to Run. Initialization is bounded by Config.StartupTimeout.
func New(ctx context.Context, config *Config) (*CSBot, error) {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.StartupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.StartupTimeout)
		defer cancel()
	}

	bot := &CSBot{
		config: config,
		store:  newGuildStateStore(),
	}

	bot.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     config.LogLevel,
			AddSource: true,
		},
	)
	bot.logger = slog.New(bot.logHandler)
	slog.SetDefault(bot.logger)

	if err := structValidator.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config.Discord.httpClient = config.HTTPClient
	disc, err := newDiscord(config.Discord)
	if err != nil {
		return nil, err
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	disc.logger = slog.New(
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     config.Discord.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "discord")
	disc.bot = bot
	bot.discord = disc

	session, err := disc.newSession()
	if err != nil {
		return nil, err
	}
	disc.session = session

	gormDB, err := CreateDB(
		ctx,
		config.Database,
		newGORMLogger(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     config.DatabaseLogLevel,
					AddSource: true,
				},
			),
			config.DatabaseSlowThreshold,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	bot.db = newWriteDB(gormDB, bot.logger)

	bot.guildConfig = newGuildConfigManager(
		session,
		bot.store,
		config.Courses,
		bot.logger,
	)
	bot.roleCache, err = newRoleCache(session, bot.store, config.Courses, bot.logger)
	if err != nil {
		return nil, err
	}
	bot.colors, err = newColorAllocator(
		session,
		config.Courses,
		bot.logger,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)
	if err != nil {
		return nil, err
	}
	bot.courses = newCourseManager(
		session,
		bot.store,
		bot.roleCache,
		bot.colors,
		bot.logger,
	)
	bot.verification = newVerificationManager(
		session,
		config.Verification,
		newSMTPMailer(config.Verification, bot.logger),
		bot.db,
		bot.logger,
	)

	if config.API.Enabled {
		bot.api, err = newAPIServer(bot, config.API)
		if err != nil {
			return nil, err
		}
	}

	return bot, nil
}

// RegisterSlashCommands registers the bot's slash commands via the
// bulk overwrite endpoint.
func (b *CSBot) RegisterSlashCommands(options ...discordgo.RequestOption) (
	[]*discordgo.ApplicationCommand,
	error,
) {
	return b.discord.registerCommands(options...)
}

// Run connects to the gateway and blocks until ctx is canceled.
func (b *CSBot) Run(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.started = time.Now()
	logger := b.logger

	session := b.discord.session
	removeHandlers := []func(){
		session.AddHandler(b.discord.handlerReady()),
		session.AddHandler(b.discord.handlerConnect()),
		session.AddHandler(b.discord.handlerDisconnect()),
		session.AddHandler(b.handlerReady()),
		session.AddHandler(b.handlerGuildCreate()),
		session.AddHandler(b.handlerGuildMemberAdd()),
		session.AddHandler(b.handlerGuildMemberRemove()),
		session.AddHandler(b.handlerInteractionCreate(ctx)),
	}
	b.discord.discordgoRemoveHandlerFuncs = removeHandlers

	if err := session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}
	logger.Info("discord session open")

	if b.config.Discord.CustomStatus != "" {
		if err := b.discord.updateCustomStatus(
			b.config.Discord.CustomStatus,
		); err != nil {
			logger.Warn("error setting custom status", tint.Err(err))
		}
	}

	if b.api != nil {
		go func() {
			if err := b.api.Serve(ctx); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				logger.Error("api server error", tint.Err(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		b.config.ShutdownTimeout,
	)
	defer cancel()

	for _, remove := range b.discord.discordgoRemoveHandlerFuncs {
		remove()
	}
	if err := session.Close(); err != nil {
		logger.Error("error closing discord session", tint.Err(err))
	}
	if b.api != nil {
		b.api.Shutdown(shutdownCtx)
	}
	logger.Info("shutdown complete")
	return nil
}

// handlerInteractionCreate returns the gateway handler for interaction
// events. Each interaction is handled on its own goroutine.
func (b *CSBot) handlerInteractionCreate(ctx context.Context) func(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
) {
	return func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		handler := GatewayHandler{
			session:     b.discord.session,
			interaction: i,
			logger: b.logger.With(
				loggerNameKey,
				"gateway_handler",
			),
		}
		go b.handleInteraction(ctx, handler)
	}
}

// handleInteraction processes a single inbound interaction: it records
// an InteractionLog row, then routes by interaction type — application
// commands by name, autocompletes to the matching suggester, component
// and modal interactions to the verification flow.
func (b *CSBot) handleInteraction(
	ctx context.Context,
	handler InteractionHandler,
) {
	defer func() {
		if rc := recover(); rc != nil {
			b.logger.ErrorContext(
				ctx,
				"recovered from panic",
				"panic_arg", rc,
				"stack_trace", string(debug.Stack()),
			)
		}
	}()

	i := handler.GetInteraction()
	logger := handler.Logger()

	discordUser := interactionUser(i)
	if discordUser == nil {
		logger.ErrorContext(
			ctx,
			"no user found in interaction",
			"interaction", structToSlogValue(i),
		)
		return
	}

	logger = logger.With(slog.Group("interaction", interactionLogAttrs(*i)...))
	ctx = WithLogger(ctx, logger)
	logger.InfoContext(
		ctx,
		"received new interaction",
		"user", structToSlogValue(discordUser),
	)

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		interactionLog := &InteractionLog{
			InteractionID: i.ID,
			Type:          i.Type.String(),
			GuildID:       i.GuildID,
			ChannelID:     i.ChannelID,
			UserID:        discordUser.ID,
			Username:      discordUser.Username,
			CommandName:   interactionCommandName(i),
		}
		if _, createErr := b.db.Create(ctx, interactionLog); createErr != nil {
			logger.ErrorContext(
				ctx,
				"error logging interaction",
				tint.Err(createErr),
			)
		}
	}()

	if discordUser.Bot {
		logger.WarnContext(ctx, "user is bot, ignoring")
		return
	}

	switch i.Type {
	case discordgo.InteractionPing:
		_ = handler.Respond(ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponsePong,
		})
	case discordgo.InteractionModalSubmit:
		if err := b.verification.HandleModalSubmit(ctx, i); err != nil {
			logger.ErrorContext(ctx, "error handling modal", tint.Err(err))
		}
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == verifyButtonID {
			if err := b.verification.HandleButton(ctx, i); err != nil {
				logger.ErrorContext(
					ctx,
					"error handling verify button",
					tint.Err(err),
				)
			}
		}
	case discordgo.InteractionApplicationCommandAutocomplete:
		b.handleAutocomplete(ctx, handler)
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, handler)
	default:
		logger.WarnContext(ctx, "unhandled interaction type")
	}
}

func interactionCommandName(i *discordgo.InteractionCreate) string {
	switch i.Type {
	case discordgo.InteractionApplicationCommand,
		discordgo.InteractionApplicationCommandAutocomplete:
		return i.ApplicationCommandData().Name
	default:
		return ""
	}
}

// handleCommand routes an application command to its handler and
// surfaces execution errors to the invoking user.
func (b *CSBot) handleCommand(ctx context.Context, handler InteractionHandler) {
	i := handler.GetInteraction()
	logger := handler.Logger()

	var err error
	switch i.ApplicationCommandData().Name {
	case CommandRoster:
		err = b.handleRosterCommand(ctx, handler)
	case CommandConfig:
		err = b.handleConfigCommand(ctx, handler)
	case CommandRole:
		err = b.handleRoleCommand(ctx, handler)
	case CommandVerification:
		err = b.handleVerificationCommand(ctx, handler)
	case CommandServer:
		err = b.handleServerCommand(ctx, handler)
	case CommandUser:
		err = b.handleUserCommand(ctx, handler)
	case CommandPing:
		err = handler.Respond(ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "Pong!",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	default:
		logger.WarnContext(
			ctx,
			"unknown command",
			"command", i.ApplicationCommandData().Name,
		)
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "command failed", tint.Err(err))
	}
}

// handleAutocomplete routes autocomplete interactions: course options
// suggest cached course names, the /role option suggests every
// assignable role.
func (b *CSBot) handleAutocomplete(
	ctx context.Context,
	handler InteractionHandler,
) {
	i := handler.GetInteraction()

	var candidates []string
	var query string
	switch i.ApplicationCommandData().Name {
	case CommandRoster:
		_, options := subcommandOptions(i)
		if opt, ok := options[optionCourse]; ok {
			query = opt.StringValue()
		}
		for _, role := range b.store.Guild(i.GuildID).AssignableRoles() {
			if role.Kind == RoleKindCourse {
				candidates = append(candidates, role.Name)
			}
		}
	case CommandRole:
		options := discordInteractionOptions(i)
		if opt, ok := options[optionRole]; ok {
			query = opt.StringValue()
		}
		for _, role := range b.store.Guild(i.GuildID).AssignableRoles() {
			candidates = append(candidates, role.Name)
		}
	default:
		return
	}

	ranked := searchRank(query, candidates)
	if len(ranked) > discordMaxAutocompleteChoices {
		ranked = ranked[:discordMaxAutocompleteChoices]
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(ranked))
	for _, idx := range ranked {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(candidates[idx], discordMaxChoiceNameLength),
			Value: candidates[idx],
		})
	}

	if err := handler.Respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		handler.Logger().ErrorContext(
			ctx,
			"error sending autocomplete choices",
			tint.Err(err),
		)
	}
}

// InteractionHandler defines the surface command handlers use to reply
// to an interaction, so they can be tested without a live session.
type InteractionHandler interface {
	// Respond sends an initial response to a Discord interaction.
	Respond(ctx context.Context, i *discordgo.InteractionResponse) error

	// Edit modifies an existing interaction response.
	Edit(
		ctx context.Context,
		e *discordgo.WebhookEdit,
		opts ...discordgo.RequestOption,
	) (*discordgo.Message, error)

	// GetInteraction returns the original InteractionCreate event.
	GetInteraction() *discordgo.InteractionCreate

	// Logger returns the logger associated with this handler.
	Logger() *slog.Logger
}

// GatewayHandler implements [InteractionHandler] for interactions
// received via the discord websocket gateway.
type GatewayHandler struct {
	session     DiscordSessionHandler
	interaction *discordgo.InteractionCreate
	logger      *slog.Logger
}

func (w GatewayHandler) Respond(
	ctx context.Context,
	response *discordgo.InteractionResponse,
) error {
	err := w.session.InteractionRespond(w.interaction.Interaction, response)
	if err != nil {
		w.logger.ErrorContext(
			ctx,
			"error responding to interaction",
			tint.Err(err),
		)
	}
	return err
}

func (w GatewayHandler) Edit(
	ctx context.Context,
	wh *discordgo.WebhookEdit,
	opts ...discordgo.RequestOption,
) (*discordgo.Message, error) {
	msg, err := w.session.InteractionResponseEdit(
		w.interaction.Interaction,
		wh,
		opts...,
	)
	if err != nil {
		w.logger.ErrorContext(
			ctx,
			"error editing interaction response",
			tint.Err(err),
		)
	}
	return msg, err
}

func (w GatewayHandler) GetInteraction() *discordgo.InteractionCreate {
	return w.interaction
}

func (w GatewayHandler) Logger() *slog.Logger {
	return w.logger
}
