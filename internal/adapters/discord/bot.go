package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/app/orch"
	"github.com/dkeye/lfg/internal/config"
	"github.com/dkeye/lfg/internal/domain"
)

const (
	handlerTimeout = 30 * time.Second
	pruneEvery     = 10 * time.Minute
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent

// NewSession creates the gateway session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = intents
	s.State.TrackVoice = true
	s.State.TrackMembers = true
	s.State.TrackRoles = true
	return s, nil
}

// Bot translates gateway events into orchestrator calls.
type Bot struct {
	s        *discordgo.Session
	orch     *orch.Orchestrator
	platform *Platform
	limiter  *UserLimiter
	guilds   map[domain.GuildID]config.GuildConfig

	ctx context.Context
}

func NewBot(s *discordgo.Session, o *orch.Orchestrator, platform *Platform, limiter *UserLimiter) *Bot {
	return &Bot{
		s:        s,
		orch:     o,
		platform: platform,
		limiter:  limiter,
		guilds:   platform.guilds,
		ctx:      context.Background(),
	}
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	removers := []func(){
		b.s.AddHandler(b.onReady),
		b.s.AddHandler(b.onVoiceStateUpdate),
		b.s.AddHandler(b.onInteractionCreate),
		b.s.AddHandler(b.onMessageCreate),
		b.s.AddHandler(b.onChannelDelete),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	if err := b.s.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	log.Info().Str("module", "adapters.discord").Int("guilds", len(b.guilds)).Msg("gateway connected")

	ticker := time.NewTicker(pruneEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.discord").Msg("closing gateway")
			return b.s.Close()
		case <-ticker.C:
			if n := b.limiter.Prune(pruneEvery); n > 0 {
				log.Debug().Str("module", "adapters.discord").Int("pruned", n).Msg("rate limiter pruned")
			}
		}
	}
}

// handlerContext bounds the work of one gateway event.
func (b *Bot) handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(b.ctx), handlerTimeout)
}

// RouteLogs sends discordgo's internal logging through zerolog.
func RouteLogs() {
	discordgo.Logger = func(msgL, caller int, format string, a ...any) {
		var level zerolog.Level
		switch msgL {
		case discordgo.LogError:
			level = zerolog.ErrorLevel
		case discordgo.LogWarning:
			level = zerolog.WarnLevel
		case discordgo.LogInformational:
			level = zerolog.InfoLevel
		default:
			level = zerolog.DebugLevel
		}
		log.WithLevel(level).Str("module", "discordgo").Msgf(format, a...)
	}
}
