package app

import (
	"errors"
	"slices"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/domain"
)

// ErrRoomBound is returned when a room is already linked to another session.
var ErrRoomBound = errors.New("room already bound to a session")

// NewSession is the input of SessionStore.Create.
type NewSession struct {
	GuildID     domain.GuildID
	HostID      domain.UserID
	HostLabel   string
	Description string
	Capacity    int
	RoomID      domain.RoomID
}

// SessionStore is the in-memory source of truth for sessions and their rosters.
// Callers only ever see copies; every mutation happens under the store lock.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[domain.SessionID]*domain.Session
	roomIndex map[domain.RoomKey]domain.SessionID

	clock clock.Clock
	newID func() domain.SessionID
}

func NewSessionStore(clk clock.Clock) *SessionStore {
	if clk == nil {
		clk = clock.New()
	}
	return &SessionStore{
		sessions:  make(map[domain.SessionID]*domain.Session),
		roomIndex: make(map[domain.RoomKey]domain.SessionID),
		clock:     clk,
		newID:     func() domain.SessionID { return domain.SessionID(uuid.NewString()) },
	}
}

// Create inserts a session whose only member is the host and returns it with
// its freshly assigned id.
func (s *SessionStore) Create(ns NewSession) (domain.Session, error) {
	if ns.Capacity < 0 {
		return domain.Session{}, domain.ErrInvalidCapacity
	}
	sess := &domain.Session{
		ID:          s.newID(),
		GuildID:     ns.GuildID,
		HostID:      ns.HostID,
		HostLabel:   ns.HostLabel,
		Description: ns.Description,
		Capacity:    ns.Capacity,
		Members:     []domain.UserID{ns.HostID},
		RoomID:      ns.RoomID,
		CreatedAt:   s.clock.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.RoomID != "" {
		if _, taken := s.roomIndex[sess.RoomKey()]; taken {
			return domain.Session{}, ErrRoomBound
		}
		s.roomIndex[sess.RoomKey()] = sess.ID
	}
	s.sessions[sess.ID] = sess
	log.Info().
		Str("module", "app.sessions").
		Str("session", string(sess.ID)).
		Str("guild", string(sess.GuildID)).
		Str("host", string(sess.HostID)).
		Int("capacity", sess.Capacity).
		Msg("session created")
	return sess.Clone(), nil
}

func (s *SessionStore) Get(id domain.SessionID) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

// AddMember appends user to the roster and returns the new roster.
func (s *SessionStore) AddMember(id domain.SessionID, user domain.UserID) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sess.IsMember(user) {
		return slices.Clone(sess.Members), domain.ErrAlreadyMember
	}
	if sess.Full() {
		return slices.Clone(sess.Members), domain.ErrPartyFull
	}
	sess.Members = append(sess.Members, user)
	log.Info().Str("module", "app.sessions").Str("session", string(id)).Str("user", string(user)).Int("members", len(sess.Members)).Msg("member added")
	return slices.Clone(sess.Members), nil
}

// RemoveMember drops user from the roster. The bool reports whether the
// roster changed.
func (s *SessionStore) RemoveMember(id domain.SessionID, user domain.UserID) ([]domain.UserID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	idx := slices.Index(sess.Members, user)
	if idx < 0 {
		return slices.Clone(sess.Members), false, nil
	}
	sess.Members = slices.Delete(sess.Members, idx, idx+1)
	log.Info().Str("module", "app.sessions").Str("session", string(id)).Str("user", string(user)).Int("members", len(sess.Members)).Msg("member removed")
	return slices.Clone(sess.Members), true, nil
}

// Delete removes the session and returns its last state. Only the first of
// several concurrent deletes succeeds.
func (s *SessionStore) Delete(id domain.SessionID) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	if sess.RoomID != "" {
		delete(s.roomIndex, sess.RoomKey())
	}
	delete(s.sessions, id)
	log.Info().Str("module", "app.sessions").Str("session", string(id)).Msg("session deleted")
	return *sess, nil
}

// AttachPost records where the session was published.
func (s *SessionStore) AttachPost(id domain.SessionID, ref domain.PostRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sess.Post = ref
	return nil
}

// DetachRoom unlinks the room from the session; the post stays.
func (s *SessionStore) DetachRoom(id domain.SessionID) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	if sess.RoomID != "" {
		delete(s.roomIndex, sess.RoomKey())
		sess.RoomID = ""
	}
	return sess.Clone(), nil
}

// ByRoom returns the id of the session linked to the room.
func (s *SessionStore) ByRoom(key domain.RoomKey) (domain.SessionID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.roomIndex[key]
	return id, ok
}

// List returns the sessions of a guild, oldest first. An empty guild lists all.
func (s *SessionStore) List(guild domain.GuildID) []domain.Session {
	s.mu.RLock()
	out := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if guild == "" || sess.GuildID == guild {
			out = append(out, sess.Clone())
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.Session) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
