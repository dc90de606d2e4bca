package app

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
	"github.com/dkeye/lfg/internal/metrics"
)

const (
	DefaultLFGGrace   = 60 * time.Second
	DefaultSpawnGrace = 10 * time.Second

	reclaimTimeout = 15 * time.Second
)

// ReclaimedFunc is told about a room the idle timer took down. err is the
// platform delete failure, if any; the room is gone from every index either way.
type ReclaimedFunc func(ctx context.Context, room domain.ManagedRoom, err error)

type RoomManagerConfig struct {
	LFGGrace   time.Duration
	SpawnGrace time.Duration
	Clock      clock.Clock
}

// RoomManager creates and destroys the voice rooms the service owns and
// drives their idle timers from occupancy changes.
type RoomManager struct {
	platform core.VoicePlatform
	registry *Registry
	timers   *TimerRegistry[domain.RoomKey]
	clock    clock.Clock
	grace    map[domain.RoomKind]time.Duration

	mu          sync.RWMutex
	rooms       map[domain.RoomKey]*domain.ManagedRoom
	onReclaimed ReclaimedFunc
}

func NewRoomManager(platform core.VoicePlatform, registry *Registry, cfg RoomManagerConfig) *RoomManager {
	if cfg.LFGGrace <= 0 {
		cfg.LFGGrace = DefaultLFGGrace
	}
	if cfg.SpawnGrace <= 0 {
		cfg.SpawnGrace = DefaultSpawnGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &RoomManager{
		platform: platform,
		registry: registry,
		timers:   NewTimerRegistry[domain.RoomKey]("idle", cfg.Clock),
		clock:    cfg.Clock,
		grace: map[domain.RoomKind]time.Duration{
			domain.KindLFG:   cfg.LFGGrace,
			domain.KindSpawn: cfg.SpawnGrace,
		},
		rooms: make(map[domain.RoomKey]*domain.ManagedRoom),
	}
}

// OnReclaimed registers the hook run after an idle room was reclaimed.
func (m *RoomManager) OnReclaimed(fn ReclaimedFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReclaimed = fn
}

// Provision creates a room on the platform and starts managing it. The idle
// timer is armed right away; the first occupant cancels it.
func (m *RoomManager) Provision(ctx context.Context, spec core.RoomSpec, ownerSession domain.SessionID, ownerUser domain.UserID) (domain.ManagedRoom, error) {
	id, err := m.platform.CreateVoiceRoom(ctx, spec)
	if err != nil {
		log.Error().Err(err).Str("module", "app.rooms").Str("guild", string(spec.GuildID)).Str("kind", spec.Kind.String()).Msg("create room failed")
		return domain.ManagedRoom{}, fmt.Errorf("%w: %w", domain.ErrProvisionFailed, err)
	}
	room := &domain.ManagedRoom{
		ID:           id,
		GuildID:      spec.GuildID,
		Kind:         spec.Kind,
		OwnerSession: ownerSession,
		OwnerUser:    ownerUser,
		CreatedAt:    m.clock.Now(),
	}

	m.mu.Lock()
	m.rooms[room.Key()] = room
	m.mu.Unlock()
	metrics.ManagedRooms.WithLabelValues(room.Kind.String()).Inc()

	log.Info().
		Str("module", "app.rooms").
		Str("room", room.Key().String()).
		Str("kind", room.Kind.String()).
		Str("name", spec.Name).
		Msg("room provisioned")

	m.armIdle(room.Key())
	return *room, nil
}

// SetOwner links a managed room to the session created for it.
func (m *RoomManager) SetOwner(key domain.RoomKey, sid domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[key]; ok {
		room.OwnerSession = sid
	}
}

func (m *RoomManager) Managed(key domain.RoomKey) (domain.ManagedRoom, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[key]
	if !ok {
		return domain.ManagedRoom{}, false
	}
	return *room, true
}

// List returns the managed rooms of a guild, oldest first. An empty guild lists all.
func (m *RoomManager) List(guild domain.GuildID) []domain.ManagedRoom {
	m.mu.RLock()
	out := make([]domain.ManagedRoom, 0, len(m.rooms))
	for _, room := range m.rooms {
		if guild == "" || room.GuildID == guild {
			out = append(out, *room)
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.ManagedRoom) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

// Admit moves a user into a managed room.
func (m *RoomManager) Admit(ctx context.Context, key domain.RoomKey, user domain.UserID) error {
	if _, ok := m.Managed(key); !ok {
		return domain.ErrNotFound
	}
	return m.platform.MoveMember(ctx, key.Guild, user, key.Room)
}

// IdlePending reports whether an idle timer is running for the room.
func (m *RoomManager) IdlePending(key domain.RoomKey) bool {
	return m.timers.Pending(key)
}

// Destroy stops managing the room and deletes it on the platform. It is a
// no-op for rooms that are not managed. Indices are cleared before the
// platform call, so a failed delete never leaves them inconsistent.
func (m *RoomManager) Destroy(ctx context.Context, key domain.RoomKey) error {
	room, ok := m.Forget(key)
	if !ok {
		return nil
	}
	if err := m.platform.DeleteVoiceRoom(ctx, key); err != nil {
		metrics.CleanupFailures.WithLabelValues("delete_room").Inc()
		log.Error().Err(err).Str("module", "app.rooms").Str("room", key.String()).Msg("delete room failed")
		return fmt.Errorf("delete room %s: %w", key, err)
	}
	log.Info().Str("module", "app.rooms").Str("room", key.String()).Str("kind", room.Kind.String()).Msg("room destroyed")
	return nil
}

// Forget drops the room from every index without touching the platform.
// The timer is cancelled under m.mu so armIdle cannot re-arm it afterwards.
func (m *RoomManager) Forget(key domain.RoomKey) (domain.ManagedRoom, bool) {
	m.mu.Lock()
	room, ok := m.rooms[key]
	if !ok {
		m.mu.Unlock()
		return domain.ManagedRoom{}, false
	}
	delete(m.rooms, key)
	m.timers.Cancel(key)
	m.mu.Unlock()

	if room.Kind == domain.KindSpawn {
		m.registry.ReleaseSpawnRoom(key)
	}
	metrics.ManagedRooms.WithLabelValues(room.Kind.String()).Dec()
	return *room, true
}

// OnOccupancyChanged arms the idle timer of an empty managed room and
// disarms it as soon as somebody is inside.
func (m *RoomManager) OnOccupancyChanged(key domain.RoomKey, count int) {
	if _, ok := m.Managed(key); !ok {
		return
	}
	if count == 0 {
		m.armIdle(key)
		return
	}
	if m.timers.Cancel(key) {
		metrics.IdleTimers.WithLabelValues("cancelled").Inc()
		log.Debug().Str("module", "app.rooms").Str("room", key.String()).Int("count", count).Msg("idle timer disarmed")
	}
}

// armIdle arms the idle timer only while the room is still managed. It
// holds m.mu across the check and the arm, pairing with Forget.
func (m *RoomManager) armIdle(key domain.RoomKey) bool {
	m.mu.Lock()
	room, ok := m.rooms[key]
	if !ok {
		m.mu.Unlock()
		return false
	}
	grace := m.grace[room.Kind]
	m.timers.Arm(key, grace, m.reclaim)
	m.mu.Unlock()

	metrics.IdleTimers.WithLabelValues("armed").Inc()
	log.Debug().Str("module", "app.rooms").Str("room", key.String()).Dur("grace", grace).Msg("idle timer armed")
	return true
}

// reclaim runs when an idle timer expires. Occupancy may have changed since
// the timer was armed, so it is checked again before anything is deleted.
func (m *RoomManager) reclaim(key domain.RoomKey) {
	metrics.IdleTimers.WithLabelValues("fired").Inc()
	room, ok := m.Managed(key)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), reclaimTimeout)
	defer cancel()

	count, exists, err := m.platform.RoomOccupancy(ctx, key)
	if err != nil {
		if m.armIdle(key) {
			log.Warn().Err(err).Str("module", "app.rooms").Str("room", key.String()).Msg("occupancy check failed, retrying later")
		}
		return
	}
	if exists && count > 0 {
		metrics.IdleTimers.WithLabelValues("race").Inc()
		log.Debug().Err(domain.ErrReclaimRace).Str("module", "app.rooms").Str("room", key.String()).Int("count", count).Msg("reclaim aborted")
		return
	}

	var destroyErr error
	if exists {
		destroyErr = m.Destroy(ctx, key)
	} else {
		m.Forget(key)
	}
	log.Info().Str("module", "app.rooms").Str("room", key.String()).Bool("existed", exists).Msg("idle room reclaimed")

	m.mu.RLock()
	hook := m.onReclaimed
	m.mu.RUnlock()
	if hook != nil {
		hook(ctx, room, destroyErr)
	}
}

// Stop cancels all idle timers. Managed rooms are left alone.
func (m *RoomManager) Stop() {
	m.timers.Stop()
}
