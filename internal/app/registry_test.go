package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/lfg/internal/domain"
)

func TestRegistry_SessionSlot(t *testing.T) {
	r := NewRegistry()
	key := domain.UserKey{Guild: "g1", User: "u1"}

	assert.True(t, r.ReserveSession(key))
	assert.False(t, r.ReserveSession(key), "reservation blocks a second request")
	_, ok := r.SessionOf(key)
	assert.False(t, ok, "a reservation is not a session")

	r.BindSession(key, "s1")
	sid, ok := r.SessionOf(key)
	assert.True(t, ok)
	assert.Equal(t, domain.SessionID("s1"), sid)

	r.ReleaseSession(key, "other")
	_, ok = r.SessionOf(key)
	assert.True(t, ok, "release of a different session keeps the slot")

	r.ReleaseSession(key, "s1")
	assert.True(t, r.ReserveSession(key))
}

func TestRegistry_SlotsAreScopedByGuild(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.ReserveSession(domain.UserKey{Guild: "g1", User: "u1"}))
	assert.True(t, r.ReserveSession(domain.UserKey{Guild: "g2", User: "u1"}))
}

func TestRegistry_SpawnSlot(t *testing.T) {
	r := NewRegistry()
	key := domain.UserKey{Guild: "g1", User: "u1"}

	assert.True(t, r.ReserveSpawn(key))
	assert.False(t, r.ReserveSpawn(key))
	r.ReleaseSpawn(key, "")
	assert.True(t, r.ReserveSpawn(key))

	r.BindSpawn(key, "r9")
	room, ok := r.SpawnOf(key)
	assert.True(t, ok)
	assert.Equal(t, domain.RoomID("r9"), room)

	r.ReleaseSpawnRoom(domain.RoomKey{Guild: "g2", Room: "r9"})
	_, ok = r.SpawnOf(key)
	assert.True(t, ok, "same room id in another guild is a different room")

	r.ReleaseSpawnRoom(domain.RoomKey{Guild: "g1", Room: "r9"})
	_, ok = r.SpawnOf(key)
	assert.False(t, ok)
}

func TestRegistry_BindSessionIfFreeKeepsExistingSlot(t *testing.T) {
	r := NewRegistry()
	key := domain.UserKey{Guild: "g1", User: "u1"}

	assert.True(t, r.BindSessionIfFree(key, "s1"))
	assert.False(t, r.BindSessionIfFree(key, "s2"))
	sid, ok := r.SessionOf(key)
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("s1"), sid)

	r.ReleaseSession(key, "s2")
	_, ok = r.SessionOf(key)
	assert.True(t, ok, "releasing an unbound session leaves the slot alone")

	other := domain.UserKey{Guild: "g1", User: "u2"}
	require.True(t, r.ReserveSession(other))
	assert.False(t, r.BindSessionIfFree(other, "s3"), "a pending reservation is not free")
}
