package csbot

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
)

const (
	apiPathHealth = "/health"
	apiPathGuilds = "/guilds"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// guildSummary is the per-guild state summary exposed by the API.
type guildSummary struct {
	GuildID         string `json:"guild_id"`
	Courses         int    `json:"courses"`
	AssignableRoles int    `json:"assignable_roles"`
	ConfigLoaded    bool   `json:"config_loaded"`
}

// apiServer is a small status API: health plus per-guild state
// summaries, mainly for dashboards and monitoring.
type apiServer struct {
	config     *APIConfig
	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
	bot        *CSBot
}

func newAPIServer(bot *CSBot, config *APIConfig) (*apiServer, error) {
	logger := slog.New(
		tint.NewHandler(
			os.Stdout, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	).With(loggerNameKey, "api")

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(config.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = config.CORSAllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	r.Use(cors.New(corsConfig))

	api := &apiServer{
		config: config,
		engine: r,
		logger: logger,
		bot:    bot,
		httpServer: &http.Server{
			Addr:              config.Listen,
			Handler:           r,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
	}

	r.GET(apiPathHealth, api.healthCheck)
	r.GET(apiPathGuilds, api.getGuilds)
	return api, nil
}

func (a *apiServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"started": a.bot.started.Format(time.RFC3339),
	})
}

func (a *apiServer) getGuilds(c *gin.Context) {
	store := a.bot.store
	summaries := make([]guildSummary, 0)
	for _, guildID := range store.GuildIDs() {
		state := store.Guild(guildID)
		roles := state.AssignableRoles()
		courses := 0
		for _, role := range roles {
			if role.Kind == RoleKindCourse {
				courses++
			}
		}
		_, messageID := state.ConfigMessage()
		summaries = append(summaries, guildSummary{
			GuildID:         guildID,
			Courses:         courses,
			AssignableRoles: len(roles),
			ConfigLoaded:    messageID != "",
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (a *apiServer) Serve(ctx context.Context) error {
	listenCfg := &net.ListenConfig{}
	ln, err := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
	if err != nil {
		return err
	}
	a.listener = ln
	a.logger.Info("api listening", "addr", a.config.Listen)
	return a.httpServer.Serve(a.listener)
}

func (a *apiServer) Shutdown(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("error shutting down api server", tint.Err(err))
	}
}
