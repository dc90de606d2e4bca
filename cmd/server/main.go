package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/lfg/internal/adapters/discord"
	router "github.com/dkeye/lfg/internal/adapters/http"
	wsevents "github.com/dkeye/lfg/internal/adapters/signal"
	"github.com/dkeye/lfg/internal/app"
	"github.com/dkeye/lfg/internal/app/orch"
	"github.com/dkeye/lfg/internal/config"
	"github.com/dkeye/lfg/internal/domain"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file")
	}

	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad flags")
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	setupLogging(cfg)

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("discord session")
	}
	discord.RouteLogs()
	platform := discord.NewPlatform(session, cfg)

	registry := app.NewRegistry()
	rooms := app.NewRoomManager(platform, registry, app.RoomManagerConfig{
		LFGGrace:   cfg.LFG.IdleGrace,
		SpawnGrace: cfg.LFG.SpawnIdleGrace,
	})
	hub := wsevents.NewHub()

	officers := make(map[domain.GuildID][]string, len(cfg.Guilds))
	allowed := make(map[domain.GuildID]struct{}, len(cfg.Guilds))
	for id, g := range cfg.Guilds {
		officers[domain.GuildID(id)] = g.OfficerRoleIDs
		allowed[domain.GuildID(id)] = struct{}{}
	}

	o := &orch.Orchestrator{
		Sessions:  app.NewSessionStore(nil),
		Rooms:     rooms,
		Registry:  registry,
		Policy:    app.RolePolicy{Directory: platform, OwnerID: domain.UserID(cfg.Discord.OwnerID), OfficerRoles: officers},
		Publisher: platform,
		Notifier:  platform,
		Events:    hub,
		Settings: orch.Settings{
			MaxLifetime:       cfg.Session.MaxLifetime,
			ReclaimOnShutdown: cfg.LFG.ReclaimOnShutdown,
			Guilds:            allowed,
		},
	}
	o.Init()

	bot := discord.NewBot(session, o, platform, discord.NewUserLimiter(cfg.RateLimit.PerUser, cfg.RateLimit.Burst, nil))

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupRouter(ctx, cfg, o, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("LFG server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return bot.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := o.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("reclaim on shutdown incomplete")
		}
		hub.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
