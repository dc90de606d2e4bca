package core

import (
	"context"

	"github.com/dkeye/lfg/internal/domain"
)

// PostView is the platform-neutral render of a session post.
type PostView struct {
	SessionID     domain.SessionID `json:"session_id"`
	GuildID       domain.GuildID   `json:"guild_id"`
	Title         string           `json:"title"`
	Host          string           `json:"host"`
	HostID        domain.UserID    `json:"host_id"`
	RoomID        domain.RoomID    `json:"room_id,omitempty"`
	Roster        string           `json:"roster"`
	CapacityLabel string           `json:"capacity_label"`
	MemberCount   int              `json:"member_count"`
	// Controls are the buttons attached to the shared post.
	Controls []domain.Control `json:"-"`
	Closed   bool             `json:"closed"`
}

// Publisher renders session posts. Retire disables the controls of a post
// and removes it.
type Publisher interface {
	Publish(ctx context.Context, view PostView) (domain.PostRef, error)
	Update(ctx context.Context, ref domain.PostRef, view PostView) error
	Retire(ctx context.Context, ref domain.PostRef, view PostView) error
}

// Notifier reaches people outside of a post: the operator for failures that
// were swallowed, and single users for private notices.
type Notifier interface {
	NotifyOperator(ctx context.Context, guild domain.GuildID, msg string)
	NotifyUser(ctx context.Context, user domain.UserID, msg string) error
}

// MemberDirectory answers role lookups for guild members.
type MemberDirectory interface {
	MemberRoles(ctx context.Context, guild domain.GuildID, user domain.UserID) ([]string, error)
}
