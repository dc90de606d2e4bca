package domain

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

type SessionID string

// UnlimitedLabel is shown instead of a capacity of zero.
const UnlimitedLabel = "∞"

// PostRef locates the rendered post of a session on the platform.
type PostRef struct {
	ChannelID string
	MessageID string
}

func (p PostRef) IsZero() bool { return p.MessageID == "" }

// Session is one LFG post and its roster.
// Members keeps join order, index 0 is the host at creation time.
type Session struct {
	ID          SessionID
	GuildID     GuildID
	HostID      UserID
	HostLabel   string
	Description string
	Capacity    int
	Members     []UserID
	RoomID      RoomID
	Post        PostRef
	CreatedAt   time.Time
}

func (s *Session) HostKey() UserKey { return UserKey{Guild: s.GuildID, User: s.HostID} }

func (s *Session) RoomKey() RoomKey { return RoomKey{Guild: s.GuildID, Room: s.RoomID} }

func (s *Session) IsMember(u UserID) bool { return slices.Contains(s.Members, u) }

// Full reports whether one more member would exceed the capacity.
func (s *Session) Full() bool {
	return s.Capacity != 0 && len(s.Members) >= s.Capacity
}

func (s *Session) CapacityLabel() string {
	return CapacityLabel(s.Capacity)
}

// Clone returns a copy that shares no slice memory with s.
func (s *Session) Clone() Session {
	c := *s
	c.Members = slices.Clone(s.Members)
	return c
}

func CapacityLabel(capacity int) string {
	if capacity == 0 {
		return UnlimitedLabel
	}
	return strconv.Itoa(capacity)
}

// ParseCapacity accepts the raw form input; 0 means unlimited.
func ParseCapacity(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, ErrInvalidCapacity
	}
	return n, nil
}
