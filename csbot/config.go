//nolint:lll // struct tags can't be split
package csbot

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	EnvvarSetEnvPrefix = "CSBOT_ENV_PREFIX"
	DefaultEnvPrefix   = "CSBOT"

	DefaultDatabase        = "csbot.sqlite3"
	DefaultLogLevel        = slog.LevelInfo
	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultDiscordLogLevel   = slog.LevelWarn
	DefaultDiscordgoLogLevel = slog.LevelWarn
	DefaultDatabaseLogLevel  = slog.LevelInfo
	DefaultAPILogLevel       = slog.LevelInfo

	DefaultDatabaseSlowThreshold = 200 * time.Millisecond

	// DefaultDiscordGatewayIntent covers guild metadata (roles, channels)
	// plus member join/leave events for welcome/goodbye messages.
	DefaultDiscordGatewayIntent = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	DefaultDiscordStartupMessage = "I'm here!"
	DefaultDiscordCustomStatus   = "/roster add to add a course!"

	DefaultAPIListen     = "127.0.0.1:5000"
	defaultListenNetwork = "tcp"

	DefaultReadTimeout       = 5 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 30 * time.Second

	// DefaultCourseRolePattern matches course roles like "357 Smith":
	// a 3-digit course number followed by an instructor name.
	DefaultCourseRolePattern = `^\d{3} .+$`

	// DefaultConfigChannelName is the well-known name of the per-guild
	// channel holding the configuration embed.
	DefaultConfigChannelName = "bot-config"

	// DefaultConfigEmbedTitle is the title the config embed is located by.
	DefaultConfigEmbedTitle = "Server Configuration"

	DefaultColorMaxAttempts = 25
	DefaultColorMinDeltaE   = 5.0

	DefaultVerifyDomainSuffix   = ".edu"
	DefaultVerifyCodeTTL        = 10 * time.Minute
	DefaultVerifiedRoleName     = "Verified"
	DefaultVerifyEmailSubject   = "Discord Verification Code"
	DefaultVerifySendsPerMinute = 1

	discordMaxAutocompleteChoices = 25
	discordMaxChoiceNameLength    = 100
)

// Config is the static (startup-time) bot configuration, loaded via
// viper from a config file, environment variables, or flags.
type Config struct {
	// Database is the sqlite database path
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// Discord configures the Discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// Courses configures course-role classification and creation
	Courses *CourseConfig `yaml:"courses" mapstructure:"courses" json:"courses"`

	// Verification configures the email-OTP member verification flow
	Verification *VerificationConfig `yaml:"verification" mapstructure:"verification" json:"verification"`

	// API configures the status API server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout sets a limit on the amount of time the bot has to
	// initialize. If this is passed, the bot will abort startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After this
	// elapses, the bot will force close all connections and exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	HTTPClient *http.Client `log:"[redacted]"`
}

func (c Config) LogValue() slog.Value {
	return structToSlogValue(c)
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token (from the 'Bot' tab in the discord dev portal)
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]" binding:"required"`

	// Discord application ID (from the 'General Information' tab in the discord dev portal)
	ApplicationID string `yaml:"application_id" mapstructure:"application_id" json:"application_id" binding:"required"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// If specified, the bot will send StartupMessage to this channel ID
	// whenever it connects to the discord gateway.
	NotificationChannelID string `yaml:"notification_channel_id" mapstructure:"notification_channel_id" json:"notification_channel_id"`

	// Message sent to NotificationChannelID on gateway connect
	StartupMessage string `yaml:"startup_message" mapstructure:"startup_message" json:"startup_message"`

	// Custom status shown for the bot user
	CustomStatus string `yaml:"custom_status" mapstructure:"custom_status" json:"custom_status"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// CourseConfig configures course-role classification and the artifacts
// created for a course.
//
//nolint:lll // can't break tags
type CourseConfig struct {
	// RolePattern is the regular expression identifying course roles by name
	RolePattern string `yaml:"role_pattern" mapstructure:"role_pattern" json:"role_pattern" binding:"required"`

	// ConfigChannelName is the well-known name of the guild config channel
	ConfigChannelName string `yaml:"config_channel_name" mapstructure:"config_channel_name" json:"config_channel_name" binding:"required"`

	// ConfigEmbedTitle is the title of the persisted config embed
	ConfigEmbedTitle string `yaml:"config_embed_title" mapstructure:"config_embed_title" json:"config_embed_title" binding:"required"`

	// ColorMaxAttempts caps the number of random draws when allocating
	// a role color
	ColorMaxAttempts int `yaml:"color_max_attempts" mapstructure:"color_max_attempts" json:"color_max_attempts" binding:"min=1"`

	// ColorMinDeltaE is the minimum perceptual distance (CIE76, 0-100 scale)
	// between a newly allocated role color and any color already in use
	ColorMinDeltaE float64 `yaml:"color_min_delta_e" mapstructure:"color_min_delta_e" json:"color_min_delta_e" binding:"min=0"`
}

// VerificationConfig configures the email-OTP verification flow.
//
//nolint:lll // can't break tags
type VerificationConfig struct {
	// Enabled toggles the /verification command and its button/modal flow
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// SMTPHost is the mail relay hostname (ex: smtp.gmail.com)
	SMTPHost string `yaml:"smtp_host" mapstructure:"smtp_host" json:"smtp_host" binding:"required_if=Enabled true"`

	// SMTPPort is the mail relay port
	SMTPPort int `yaml:"smtp_port" mapstructure:"smtp_port" json:"smtp_port" binding:"required_if=Enabled true"`

	// SMTPUsername authenticates against SMTPHost
	SMTPUsername string `yaml:"smtp_username" mapstructure:"smtp_username" json:"smtp_username"`

	// SMTPPassword authenticates against SMTPHost
	SMTPPassword string `yaml:"smtp_password" mapstructure:"smtp_password" json:"smtp_password" log:"[redacted]"`

	// FromAddress is the sender address on verification emails
	FromAddress string `yaml:"from_address" mapstructure:"from_address" json:"from_address" binding:"required_if=Enabled true"`

	// ContactEmail is shown in the email footer for support questions
	ContactEmail string `yaml:"contact_email" mapstructure:"contact_email" json:"contact_email"`

	// DomainSuffix is the required suffix of addresses eligible for
	// verification (default ".edu")
	DomainSuffix string `yaml:"domain_suffix" mapstructure:"domain_suffix" json:"domain_suffix"`

	// Subject is the verification email subject line
	Subject string `yaml:"subject" mapstructure:"subject" json:"subject"`

	// VerifiedRoleName is the name of the role granted on successful
	// verification
	VerifiedRoleName string `yaml:"verified_role_name" mapstructure:"verified_role_name" json:"verified_role_name"`

	// CodeTTL is how long an emailed code remains valid
	CodeTTL time.Duration `yaml:"code_ttl" mapstructure:"code_ttl" json:"code_ttl"`

	// SendsPerMinute limits how often a single user can request a code
	SendsPerMinute float64 `yaml:"sends_per_minute" mapstructure:"sends_per_minute" json:"sends_per_minute"`
}

// APIConfig configures the status API server.
//
//nolint:lll // can't break tags
type APIConfig struct {
	// Enabled toggles the status API
	Enabled bool `yaml:"enabled" mapstructure:"enabled" json:"enabled"`

	// The address and port on which the server should listen (e.g., "127.0.0.1:5000").
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required_if=Enabled true,hostname|filepath"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix").
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required_if=Enabled true,oneof=tcp tcp4 tcp6 unix"`

	// The logging level for the API server.
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// CORS origins allowed to query the API
	CORSAllowOrigins []string `yaml:"cors_allow_origins" mapstructure:"cors_allow_origins" json:"cors_allow_origins"`

	// Maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"required_if=Enabled true,min=1s"`

	// Amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout"  binding:"required_if=Enabled true,min=1s"`

	// Maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout"  binding:"required_if=Enabled true,min=1s"`

	// Maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout"  binding:"required_if=Enabled true,min=1s"`
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)

	return &Config{
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		Discord: &DiscordConfig{
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
			StartupMessage:    DefaultDiscordStartupMessage,
			CustomStatus:      DefaultDiscordCustomStatus,
		},
		Courses: &CourseConfig{
			RolePattern:       DefaultCourseRolePattern,
			ConfigChannelName: DefaultConfigChannelName,
			ConfigEmbedTitle:  DefaultConfigEmbedTitle,
			ColorMaxAttempts:  DefaultColorMaxAttempts,
			ColorMinDeltaE:    DefaultColorMinDeltaE,
		},
		Verification: &VerificationConfig{
			DomainSuffix:     DefaultVerifyDomainSuffix,
			Subject:          DefaultVerifyEmailSubject,
			VerifiedRoleName: DefaultVerifiedRoleName,
			CodeTTL:          DefaultVerifyCodeTTL,
			SendsPerMinute:   DefaultVerifySendsPerMinute,
		},
		API: &APIConfig{
			Listen:            DefaultAPIListen,
			ListenNetwork:     defaultListenNetwork,
			LogLevel:          apiLogLevel,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ReadTimeout:       DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
		},
	}
}
