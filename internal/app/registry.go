package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/domain"
)

// Registry holds the per-user indices: the active session of an ordinary
// user and the join-to-create room a user spawned.
//
// An entry can be reserved before the resource exists so that two concurrent
// requests from the same user cannot both pass the one-per-user check.
// A reservation is an entry with an empty value.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserKey]domain.SessionID
	spawns   map[domain.UserKey]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserKey]domain.SessionID),
		spawns:   make(map[domain.UserKey]domain.RoomID),
	}
}

// ReserveSession claims the session slot of a user. It fails if the user
// already has a session or a pending reservation.
func (r *Registry) ReserveSession(key domain.UserKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; ok {
		return false
	}
	r.sessions[key] = ""
	return true
}

func (r *Registry) BindSession(key domain.UserKey, sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[key] = sid
	log.Info().Str("module", "app.registry").Str("user", key.String()).Str("session", string(sid)).Msg("bound session")
}

// BindSessionIfFree binds sid only when the user holds no session and no
// reservation. It reports whether the slot was taken.
func (r *Registry) BindSessionIfFree(key domain.UserKey, sid domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; ok {
		return false
	}
	r.sessions[key] = sid
	log.Info().Str("module", "app.registry").Str("user", key.String()).Str("session", string(sid)).Msg("bound session")
	return true
}

// ReleaseSession clears the slot if it still points at sid. Pass an empty
// sid to drop a reservation.
func (r *Registry) ReleaseSession(key domain.UserKey, sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[key]; ok && cur == sid {
		delete(r.sessions, key)
		log.Info().Str("module", "app.registry").Str("user", key.String()).Str("session", string(sid)).Msg("released session")
	}
}

func (r *Registry) SessionOf(key domain.UserKey) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.sessions[key]
	if !ok || sid == "" {
		return "", false
	}
	return sid, true
}

// ReserveSpawn claims the spawn slot of a user.
func (r *Registry) ReserveSpawn(key domain.UserKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.spawns[key]; ok {
		return false
	}
	r.spawns[key] = ""
	return true
}

func (r *Registry) BindSpawn(key domain.UserKey, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spawns[key] = room
	log.Info().Str("module", "app.registry").Str("user", key.String()).Str("room", string(room)).Msg("bound spawn")
}

// ReleaseSpawn clears the spawn slot if it still points at room.
func (r *Registry) ReleaseSpawn(key domain.UserKey, room domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.spawns[key]; ok && cur == room {
		delete(r.spawns, key)
		log.Info().Str("module", "app.registry").Str("user", key.String()).Str("room", string(room)).Msg("released spawn")
	}
}

// ReleaseSpawnRoom clears every slot pointing at the room.
func (r *Registry) ReleaseSpawnRoom(room domain.RoomKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, id := range r.spawns {
		if key.Guild == room.Guild && id == room.Room {
			delete(r.spawns, key)
			log.Info().Str("module", "app.registry").Str("user", key.String()).Str("room", string(id)).Msg("released spawn")
		}
	}
}

func (r *Registry) SpawnOf(key domain.UserKey) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.spawns[key]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
