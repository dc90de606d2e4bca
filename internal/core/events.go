package core

import (
	"time"

	"github.com/dkeye/lfg/internal/domain"
)

type EventType string

const (
	EventSessionCreated EventType = "session_created"
	EventSessionUpdated EventType = "session_updated"
	EventSessionDeleted EventType = "session_deleted"
	EventRoomSpawned    EventType = "room_spawned"
	EventRoomReclaimed  EventType = "room_reclaimed"
)

// Event is a state change observers can follow live.
type Event struct {
	Type      EventType        `json:"type"`
	GuildID   domain.GuildID   `json:"guild_id"`
	SessionID domain.SessionID `json:"session_id,omitempty"`
	RoomID    domain.RoomID    `json:"room_id,omitempty"`
	Members   []domain.UserID  `json:"members,omitempty"`
	Capacity  int              `json:"capacity,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	At        time.Time        `json:"at"`
}

// EventSink receives events; Publish must not block.
type EventSink interface {
	Publish(Event)
}

type NopSink struct{}

func (NopSink) Publish(Event) {}
