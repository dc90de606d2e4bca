package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/lfg/internal/app"
	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
	"github.com/dkeye/lfg/internal/metrics"
)

// Reasons a session is torn down.
const (
	ReasonDeleted   = "deleted"
	ReasonReclaimed = "reclaimed"
	ReasonExpired   = "expired"
	ReasonShutdown  = "shutdown"
)

const (
	expireTimeout    = 15 * time.Second
	shutdownParallel = 8
)

type Settings struct {
	// MaxLifetime tears a session down after this long; 0 disables it.
	MaxLifetime time.Duration
	// ReclaimOnShutdown deletes every managed room and post on Shutdown.
	ReclaimOnShutdown bool
	// Guilds restricts the service to these guilds; empty allows all.
	Guilds  map[domain.GuildID]struct{}
	Mention func(domain.UserID) string
	Clock   clock.Clock
}

// Orchestrator applies user requests and platform events to sessions and
// rooms. Call Init before use and Shutdown when done.
type Orchestrator struct {
	Sessions  *app.SessionStore
	Rooms     *app.RoomManager
	Registry  *app.Registry
	Policy    app.Policy
	Publisher core.Publisher
	Notifier  core.Notifier
	Events    core.EventSink
	Settings  Settings

	lifetimes *app.TimerRegistry[domain.SessionID]
	locks     keyedMutex[domain.SessionID]
	initOnce  sync.Once
	stopOnce  sync.Once
}

// Outcome is the result of a request against a session.
type Outcome struct {
	Session domain.Session
	View    core.PostView
	// Controls is what the acting user should see after the request.
	Controls []domain.Control
	Changed  bool
	Deleted  bool
}

func (o *Orchestrator) Init() {
	o.initOnce.Do(func() {
		if o.Events == nil {
			o.Events = core.NopSink{}
		}
		if o.Notifier == nil {
			o.Notifier = logNotifier{}
		}
		if o.Policy == nil {
			o.Policy = app.PolicyFunc(func(context.Context, domain.GuildID, domain.UserID) bool { return false })
		}
		if o.Settings.Mention == nil {
			o.Settings.Mention = DefaultMention
		}
		if o.Settings.Clock == nil {
			o.Settings.Clock = clock.New()
		}
		o.lifetimes = app.NewTimerRegistry[domain.SessionID]("lifetime", o.Settings.Clock)
		o.Rooms.OnReclaimed(o.onReclaimed)
		log.Info().
			Str("module", "orch").
			Dur("max_lifetime", o.Settings.MaxLifetime).
			Int("guilds", len(o.Settings.Guilds)).
			Msg("orchestrator initialized")
	})
}

// Shutdown stops all timers. With ReclaimOnShutdown it also tears down every
// session and deletes every remaining managed room, since none of this state
// survives a restart.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var err error
	o.stopOnce.Do(func() {
		o.lifetimes.Stop()
		o.Rooms.Stop()
		if !o.Settings.ReclaimOnShutdown {
			return
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(shutdownParallel)
		for _, sess := range o.Sessions.List("") {
			g.Go(func() error {
				unlock := o.locks.Lock(sess.ID)
				defer unlock()
				_, _ = o.teardown(gctx, sess.ID, ReasonShutdown)
				return nil
			})
		}
		_ = g.Wait()

		var errs []error
		for _, room := range o.Rooms.List("") {
			if derr := o.Rooms.Destroy(ctx, room.Key()); derr != nil {
				errs = append(errs, derr)
			}
		}
		err = errors.Join(errs...)
		log.Info().Str("module", "orch").Err(err).Msg("orchestrator shut down")
	})
	return err
}

// ListSessions lists the open sessions of a guild.
func (o *Orchestrator) ListSessions(guild domain.GuildID) []domain.Session {
	return o.Sessions.List(guild)
}

func (o *Orchestrator) guildAllowed(guild domain.GuildID) bool {
	if len(o.Settings.Guilds) == 0 {
		return true
	}
	_, ok := o.Settings.Guilds[guild]
	return ok
}

func (o *Orchestrator) emit(t core.EventType, s domain.Session, reason string) {
	o.Events.Publish(core.Event{
		Type:      t,
		GuildID:   s.GuildID,
		SessionID: s.ID,
		RoomID:    s.RoomID,
		Members:   s.Members,
		Capacity:  s.Capacity,
		Reason:    reason,
		At:        o.Settings.Clock.Now(),
	})
}

// report logs a swallowed cleanup failure and forwards it to the operator.
func (o *Orchestrator) report(ctx context.Context, guild domain.GuildID, op string, err error) {
	metrics.CleanupFailures.WithLabelValues(op).Inc()
	log.Error().Err(err).Str("module", "orch").Str("guild", string(guild)).Str("op", op).Msg("cleanup failed")
	o.Notifier.NotifyOperator(ctx, guild, fmt.Sprintf("%s failed: %v", op, err))
}

// reject counts a refused request and hands the error back.
func reject(err error) error {
	metrics.RecordRejection(rejectionKind(err))
	return err
}

func rejectionKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateSession):
		return "duplicate_session"
	case errors.Is(err, domain.ErrPartyFull):
		return "party_full"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrProvisionFailed):
		return "provision_failed"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, domain.ErrSpawnExists):
		return "spawn_exists"
	case errors.Is(err, domain.ErrGuildNotConfigured):
		return "guild_not_configured"
	default:
		return "other"
	}
}

type logNotifier struct{}

func (logNotifier) NotifyOperator(_ context.Context, guild domain.GuildID, msg string) {
	log.Warn().Str("module", "orch").Str("guild", string(guild)).Msg(msg)
}

func (logNotifier) NotifyUser(_ context.Context, user domain.UserID, msg string) error {
	log.Info().Str("module", "orch").Str("user", string(user)).Msg(msg)
	return nil
}
