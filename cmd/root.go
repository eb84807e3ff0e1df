package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"

	"github.com/N8WM/cs-bot-v2/csbot"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg        = csbot.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "csbot [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// LevelToStringHookFunc decodes log level strings into *slog.LevelVar
// during viper unmarshaling.
func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("unable to load env from %s", configFile)
		}
	}

	viper.SetDefault("database", csbot.DefaultDatabase)
	viper.SetDefault(
		"database_slow_threshold",
		csbot.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		csbot.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", csbot.DefaultLogLevel.String())
	viper.SetDefault("startup_timeout", csbot.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", csbot.DefaultShutdownTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.application_id", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault(
		"discord.log_level",
		csbot.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		csbot.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault(
		"discord.gateway_intents",
		csbot.DefaultDiscordGatewayIntent,
	)
	viper.SetDefault("discord.startup_message", csbot.DefaultDiscordStartupMessage)
	viper.SetDefault("discord.custom_status", csbot.DefaultDiscordCustomStatus)

	// Course config
	viper.SetDefault("courses.role_pattern", csbot.DefaultCourseRolePattern)
	viper.SetDefault(
		"courses.config_channel_name",
		csbot.DefaultConfigChannelName,
	)
	viper.SetDefault("courses.config_embed_title", csbot.DefaultConfigEmbedTitle)
	viper.SetDefault("courses.color_max_attempts", csbot.DefaultColorMaxAttempts)
	viper.SetDefault("courses.color_min_delta_e", csbot.DefaultColorMinDeltaE)

	// Verification config
	viper.SetDefault("verification.enabled", false)
	viper.SetDefault("verification.smtp_host", "")
	viper.SetDefault("verification.smtp_port", 587)
	viper.SetDefault("verification.domain_suffix", csbot.DefaultVerifyDomainSuffix)
	viper.SetDefault("verification.subject", csbot.DefaultVerifyEmailSubject)
	viper.SetDefault(
		"verification.verified_role_name",
		csbot.DefaultVerifiedRoleName,
	)
	viper.SetDefault("verification.code_ttl", csbot.DefaultVerifyCodeTTL)
	viper.SetDefault(
		"verification.sends_per_minute",
		csbot.DefaultVerifySendsPerMinute,
	)

	// API config
	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.listen", csbot.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.log_level", csbot.DefaultAPILogLevel.String())
	viper.SetDefault("api.cors_allow_origins", []string{})
	viper.SetDefault("api.read_timeout", csbot.DefaultReadTimeout)
	viper.SetDefault(
		"api.read_header_timeout",
		csbot.DefaultReadHeaderTimeout,
	)
	viper.SetDefault("api.write_timeout", csbot.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", csbot.DefaultIdleTimeout)

	envPrefix := os.Getenv(csbot.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = csbot.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	viper.Set(
		"api.cors_allow_origins",
		viper.GetStringSlice("api.cors_allow_origins"),
	)

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
		"api.log_level",
	} {
		logLevelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, logLevelVar)
	}
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Env file to use",
	)
}
