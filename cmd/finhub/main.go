package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finhub-dev/finhub/internal/config"
	"github.com/finhub-dev/finhub/internal/dashboard"
	"github.com/finhub-dev/finhub/internal/db"
	"github.com/finhub-dev/finhub/internal/oauth"
	"github.com/finhub-dev/finhub/internal/registry"
	"github.com/finhub-dev/finhub/internal/tokens"
	"github.com/finhub-dev/finhub/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := db.EnsureUser(database, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed admin user")
	}

	reg := registry.New(database)
	if err := reg.SeedFromFile(context.Background(), cfg.ProvidersFile); err != nil {
		logger.Fatal().Err(err).Str("file", cfg.ProvidersFile).Msg("failed to seed providers")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	tokenStore := tokens.New(database)
	states := oauth.NewStateStore(cfg.StateTTL)
	flow := oauth.NewFlow(reg, tokenStore, states, httpClient, cfg.ExternalBaseURL, logger)
	revoker := oauth.NewRevoker(reg, tokenStore, httpClient, logger)
	assembler := dashboard.NewAssembler(reg, tokenStore, httpClient, cfg.FanOutLimit, cfg.RetryCount, logger)
	sessions := web.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(web.RequestLogger(logger))

	r.Get("/login", web.LoginPageHandler())
	r.Post("/login", web.LoginSubmitHandler(database, sessions, logger))

	r.Group(func(r chi.Router) {
		r.Use(web.RequireSession(sessions))
		r.Get("/", web.DashboardHandler(assembler, logger))
		r.Get("/connect/{providerID}", web.ConnectHandler(flow))
		r.Get("/success/{providerID}", web.CallbackHandler(flow, logger))
		r.Get("/disconnect/{providerID}", web.DisconnectHandler(revoker, logger))
		r.Post("/logout", web.LogoutHandler(sessions))
	})

	logger.Info().Str("addr", cfg.ListenAddr).Msg("finhub starting")
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
