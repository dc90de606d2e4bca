package orch

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

// JoinTrigger is a user entering a designated join-to-create room.
type JoinTrigger struct {
	GuildID     domain.GuildID
	UserID      domain.UserID
	DisplayName string
	TriggerRoom domain.RoomID
	// ParentID is the category of the trigger room; spawns are created next to it.
	ParentID string
}

// OnRoomOccupancyChanged feeds a membership change of a voice room into the
// idle timers. Rooms the service does not manage are ignored.
func (o *Orchestrator) OnRoomOccupancyChanged(_ context.Context, guild domain.GuildID, room domain.RoomID, count int) {
	o.Rooms.OnOccupancyChanged(domain.RoomKey{Guild: guild, Room: room}, count)
}

// OnJoinTriggerEntered spawns a personal room for the user and moves them in.
// A user owns at most one spawn; a second attempt fails with ErrSpawnExists
// and changes nothing.
func (o *Orchestrator) OnJoinTriggerEntered(ctx context.Context, t JoinTrigger) (domain.RoomID, error) {
	if !o.guildAllowed(t.GuildID) {
		return "", reject(domain.ErrGuildNotConfigured)
	}
	key := domain.UserKey{Guild: t.GuildID, User: t.UserID}
	if !o.Registry.ReserveSpawn(key) {
		return "", reject(domain.ErrSpawnExists)
	}

	name := strings.TrimSpace(t.DisplayName)
	if name == "" {
		name = string(t.UserID)
	}
	room, err := o.Rooms.Provision(ctx, core.RoomSpec{
		GuildID:  t.GuildID,
		Name:     name + "'s VC",
		Kind:     domain.KindSpawn,
		ParentID: t.ParentID,
	}, "", t.UserID)
	if err != nil {
		o.Registry.ReleaseSpawn(key, "")
		return "", reject(err)
	}
	o.Registry.BindSpawn(key, room.ID)

	if err := o.Rooms.Admit(ctx, room.Key(), t.UserID); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", room.Key().String()).Str("user", string(t.UserID)).Msg("move to spawn failed")
	}
	o.Events.Publish(core.Event{
		Type:    core.EventRoomSpawned,
		GuildID: t.GuildID,
		RoomID:  room.ID,
		Members: []domain.UserID{t.UserID},
		At:      o.Settings.Clock.Now(),
	})
	return room.ID, nil
}

// OnRoomRemoved handles a managed room deleted by someone else. The room is
// forgotten; its session stays open without a room.
func (o *Orchestrator) OnRoomRemoved(ctx context.Context, guild domain.GuildID, room domain.RoomID) {
	key := domain.RoomKey{Guild: guild, Room: room}
	managed, ok := o.Rooms.Forget(key)
	if !ok || managed.Kind != domain.KindLFG {
		return
	}
	sid := o.sessionOf(managed)
	if sid == "" {
		return
	}

	unlock := o.locks.Lock(sid)
	defer unlock()
	sess, err := o.Sessions.DetachRoom(sid)
	if err != nil {
		return
	}
	log.Info().Str("module", "orch").Str("session", string(sid)).Str("room", key.String()).Msg("room removed externally")
	o.refresh(ctx, sess)
	o.emit(core.EventSessionUpdated, sess, "room_removed")
}

// onReclaimed tears down the session of a room the idle timer reclaimed.
func (o *Orchestrator) onReclaimed(ctx context.Context, room domain.ManagedRoom, err error) {
	if err != nil {
		o.report(ctx, room.GuildID, "reclaim room", err)
	}
	o.Events.Publish(core.Event{
		Type:      core.EventRoomReclaimed,
		GuildID:   room.GuildID,
		RoomID:    room.ID,
		SessionID: room.OwnerSession,
		At:        o.Settings.Clock.Now(),
	})
	if room.Kind != domain.KindLFG {
		return
	}
	sid := o.sessionOf(room)
	if sid == "" {
		return
	}

	unlock := o.locks.Lock(sid)
	defer unlock()
	sess, gerr := o.Sessions.Get(sid)
	if gerr != nil || sess.RoomID != room.ID {
		return
	}
	if _, terr := o.teardown(ctx, sid, ReasonReclaimed); terr != nil && !errors.Is(terr, domain.ErrNotFound) {
		log.Error().Err(terr).Str("module", "orch").Str("session", string(sid)).Msg("reclaim teardown failed")
	}
}

func (o *Orchestrator) sessionOf(room domain.ManagedRoom) domain.SessionID {
	if room.OwnerSession != "" {
		return room.OwnerSession
	}
	sid, _ := o.Sessions.ByRoom(room.Key())
	return sid
}
