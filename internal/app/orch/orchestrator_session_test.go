package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/lfg/internal/app"
	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

func TestCreate_OpensSessionRoomAndPost(t *testing.T) {
	f := newFixture(t)
	out := f.create(t, "alice", "4")

	sess := out.Session
	assert.Equal(t, []domain.UserID{"alice"}, sess.Members)
	assert.NotEmpty(t, sess.RoomID)
	assert.Equal(t, "msg-1", sess.Post.MessageID)
	assert.Equal(t, "1/4 <@alice>", out.View.Roster)
	assert.Equal(t, []domain.Control{domain.ControlLeave, domain.ControlDelete}, out.Controls)

	room, ok := f.orch.Rooms.Managed(sess.RoomKey())
	require.True(t, ok)
	assert.Equal(t, sess.ID, room.OwnerSession)
	assert.Equal(t, sess.RoomID, f.platform.moves["alice"])

	post, ok := f.publisher.post("msg-1")
	require.True(t, ok)
	assert.Equal(t, sess.ID, post.SessionID)
	assert.Equal(t, PublicControls(), post.Controls)
	assert.True(t, f.events.has(core.EventSessionCreated, ""))
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t)

	for _, raw := range []string{"-1", "abc", ""} {
		_, err := f.orch.OnCreateRequested(context.Background(), CreateRequest{GuildID: "g1", UserID: "alice", Capacity: raw})
		assert.ErrorIs(t, err, domain.ErrInvalidCapacity, raw)
	}
	assert.Empty(t, f.orch.Rooms.List(""))

	out := f.create(t, "alice", "0")
	assert.Equal(t, "<@alice>", out.Session.HostLabel)
	assert.Equal(t, "1/∞ <@alice>", out.View.Roster)
}

func TestCapacityScenario(t *testing.T) {
	f := newFixture(t)
	sid := f.create(t, "alice", "2").Session.ID

	out, err := f.control("bob", sid, domain.ActionJoin)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, "1/2 <@alice>\n2/2 <@bob>", out.View.Roster)
	assert.Equal(t, []domain.Control{domain.ControlLeave}, out.Controls)

	_, err = f.control("carol", sid, domain.ActionJoin)
	assert.ErrorIs(t, err, domain.ErrPartyFull)

	post, _ := f.publisher.post("msg-1")
	assert.Equal(t, 2, post.MemberCount)

	out, err = f.control("bob", sid, domain.ActionLeave)
	require.NoError(t, err)
	assert.Equal(t, "1/2 <@alice>", out.View.Roster)

	out, err = f.control("carol", sid, domain.ActionJoin)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserID{"alice", "carol"}, out.Session.Members)
}

func TestJoinTwiceAndLeaveWithoutMembership(t *testing.T) {
	f := newFixture(t)
	sid := f.create(t, "alice", "0").Session.ID

	out, err := f.control("alice", sid, domain.ActionJoin)
	require.NoError(t, err)
	assert.False(t, out.Changed)

	out, err = f.control("bob", sid, domain.ActionLeave)
	require.NoError(t, err)
	assert.False(t, out.Changed)
	assert.Equal(t, 0, f.publisher.updates)
}

func TestHostCanLeaveAndRejoin(t *testing.T) {
	f := newFixture(t)
	sid := f.create(t, "alice", "0").Session.ID

	out, err := f.control("alice", sid, domain.ActionLeave)
	require.NoError(t, err)
	assert.Equal(t, EmptyRoster, out.View.Roster)
	assert.Equal(t, []domain.Control{domain.ControlJoin, domain.ControlDelete}, out.Controls)

	_, err = f.control("alice", sid, domain.ActionJoin)
	require.NoError(t, err)
}

func TestDuplicateSessionGuard(t *testing.T) {
	f := newFixture(t)
	sid := f.create(t, "alice", "0").Session.ID

	_, err := f.orch.OnCreateRequested(context.Background(), CreateRequest{GuildID: "g1", UserID: "alice", Capacity: "3"})
	require.ErrorIs(t, err, domain.ErrDuplicateSession)
	assert.Len(t, f.orch.Rooms.List(""), 1, "no room created for a rejected request")

	_, err = f.control("alice", sid, domain.ActionDelete)
	require.NoError(t, err)
	f.create(t, "alice", "0")
}

func TestDuplicateGuardUnderConcurrency(t *testing.T) {
	f := newFixture(t)

	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.OnCreateRequested(context.Background(), CreateRequest{GuildID: "g1", UserID: "alice", Capacity: "0"})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrDuplicateSession):
				dup.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(9), dup.Load())
	assert.Equal(t, 1, f.orch.Sessions.Len())
}

func TestPrivilegedUsersAreExempt(t *testing.T) {
	f := newFixture(t, withOfficers("officer"))
	f.create(t, "officer", "0")
	f.create(t, "officer", "0")
	assert.Equal(t, 2, f.orch.Sessions.Len())
}

func TestPromotedUserKeepsFirstSessionIndexed(t *testing.T) {
	f := newFixture(t)
	var officer atomic.Bool
	f.orch.Policy = app.PolicyFunc(func(context.Context, domain.GuildID, domain.UserID) bool { return officer.Load() })
	key := domain.UserKey{Guild: "g1", User: "alice"}

	first := f.create(t, "alice", "0").Session.ID
	officer.Store(true)
	second := f.create(t, "alice", "0").Session.ID

	sid, ok := f.orch.Registry.SessionOf(key)
	require.True(t, ok)
	assert.Equal(t, first, sid)

	officer.Store(false)
	_, err := f.control("alice", second, domain.ActionDelete)
	require.NoError(t, err)

	sid, ok = f.orch.Registry.SessionOf(key)
	require.True(t, ok)
	assert.Equal(t, first, sid)
	_, err = f.orch.OnCreateRequested(context.Background(), CreateRequest{GuildID: "g1", UserID: "alice", Capacity: "0"})
	require.ErrorIs(t, err, domain.ErrDuplicateSession)

	_, err = f.control("alice", first, domain.ActionDelete)
	require.NoError(t, err)
	f.create(t, "alice", "0")
}

func TestDeleteAuthorization(t *testing.T) {
	f := newFixture(t, withOfficers("officer"))
	sid := f.create(t, "alice", "0").Session.ID
	_, err := f.control("bob", sid, domain.ActionJoin)
	require.NoError(t, err)

	out, err := f.control("bob", sid, domain.ActionDelete)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.False(t, out.Deleted)
	_, err = f.orch.Sessions.Get(sid)
	require.NoError(t, err)

	out, err = f.control("officer", sid, domain.ActionDelete)
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.True(t, out.View.Closed)
}

func TestDeleteReleasesEverything(t *testing.T) {
	f := newFixture(t)
	sess := f.create(t, "alice", "0").Session

	_, err := f.control("alice", sess.ID, domain.ActionDelete)
	require.NoError(t, err)

	assert.False(t, f.platform.exists(sess.RoomKey()))
	_, managed := f.orch.Rooms.Managed(sess.RoomKey())
	assert.False(t, managed)
	assert.False(t, f.orch.Rooms.IdlePending(sess.RoomKey()))
	_, bound := f.orch.Registry.SessionOf(sess.HostKey())
	assert.False(t, bound)
	assert.Equal(t, 1, f.publisher.retiredCount())
	assert.True(t, f.events.has(core.EventSessionDeleted, ReasonDeleted))

	for _, action := range []domain.Action{domain.ActionJoin, domain.ActionLeave, domain.ActionDelete} {
		_, err := f.control("bob", sess.ID, action)
		assert.ErrorIs(t, err, domain.ErrNotFound, action.String())
	}
}

func TestConcurrentDeletesTearDownOnce(t *testing.T) {
	f := newFixture(t, withOfficers("officer"))
	sid := f.create(t, "alice", "0").Session.ID

	var deleted, missing atomic.Int32
	var wg sync.WaitGroup
	for _, user := range []domain.UserID{"alice", "officer", "alice", "officer"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.control(user, sid, domain.ActionDelete)
			switch {
			case err == nil:
				deleted.Add(1)
			case errors.Is(err, domain.ErrNotFound):
				missing.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), deleted.Load())
	assert.Equal(t, int32(3), missing.Load())
	assert.Equal(t, 1, f.platform.deletedCount())
	assert.Equal(t, 1, f.publisher.retiredCount())
}

func TestConcurrentJoinsRespectCapacity(t *testing.T) {
	f := newFixture(t)
	sid := f.create(t, "alice", "3").Session.ID

	var joined atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.control(domain.UserID(fmt.Sprintf("u%d", i)), sid, domain.ActionJoin); err == nil {
				joined.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(2), joined.Load())

	sess, err := f.orch.Sessions.Get(sid)
	require.NoError(t, err)
	post, _ := f.publisher.post(sess.Post.MessageID)
	assert.Equal(t, 3, post.MemberCount, "last render matches the final roster")
}

func TestGuildMismatchIsNotFound(t *testing.T) {
	f := newFixture(t)
	sid := f.create(t, "alice", "0").Session.ID
	_, err := f.orch.OnControlActivated(context.Background(), ControlRequest{SessionID: sid, GuildID: "g2", UserID: "bob", Action: domain.ActionJoin})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUnconfiguredGuildIsRejected(t *testing.T) {
	f := newFixture(t, func(o *Orchestrator) {
		o.Settings.Guilds = map[domain.GuildID]struct{}{"g2": {}}
	})
	_, err := f.orch.OnCreateRequested(context.Background(), CreateRequest{GuildID: "g1", UserID: "alice", Capacity: "0"})
	assert.ErrorIs(t, err, domain.ErrGuildNotConfigured)
}

func TestProvisionFailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	f.platform.createErr = errors.New("missing permission")

	_, err := f.orch.OnCreateRequested(context.Background(), CreateRequest{GuildID: "g1", UserID: "alice", Capacity: "0"})
	require.ErrorIs(t, err, domain.ErrProvisionFailed)
	assert.Equal(t, 0, f.orch.Sessions.Len())
	_, bound := f.orch.Registry.SessionOf(domain.UserKey{Guild: "g1", User: "alice"})
	assert.False(t, bound)

	f.platform.createErr = nil
	f.create(t, "alice", "0")
}

func TestPublishFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.publisher.publishErr = errors.New("missing access")

	_, err := f.orch.OnCreateRequested(context.Background(), CreateRequest{GuildID: "g1", UserID: "alice", Capacity: "0"})
	require.ErrorIs(t, err, domain.ErrProvisionFailed)
	assert.Equal(t, 0, f.orch.Sessions.Len())
	assert.Empty(t, f.orch.Rooms.List(""))
	assert.Equal(t, 1, f.platform.deletedCount())

	f.publisher.publishErr = nil
	f.create(t, "alice", "0")
}

func TestUpdateFailureIsReportedNotReturned(t *testing.T) {
	f := newFixture(t)
	sid := f.create(t, "alice", "0").Session.ID
	f.publisher.updateErr = errors.New("rate limited")

	out, err := f.control("bob", sid, domain.ActionJoin)
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, 1, f.notifier.operatorCount())
}

func TestDeleteWithFailingRoomDeleteStillClosesSession(t *testing.T) {
	f := newFixture(t)
	sess := f.create(t, "alice", "0").Session
	f.platform.deleteErr = errors.New("boom")

	out, err := f.control("alice", sess.ID, domain.ActionDelete)
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	_, managed := f.orch.Rooms.Managed(sess.RoomKey())
	assert.False(t, managed)
	assert.Equal(t, 1, f.notifier.operatorCount())
	assert.Equal(t, 1, f.publisher.retiredCount())
}
