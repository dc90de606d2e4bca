package domain

import "time"

type RoomID string

// RoomKey identifies a voice room within its guild.
type RoomKey struct {
	Guild GuildID
	Room  RoomID
}

func (k RoomKey) String() string { return string(k.Guild) + "/" + string(k.Room) }

type RoomKind int

const (
	KindLFG RoomKind = iota
	KindSpawn
)

func (k RoomKind) String() string {
	switch k {
	case KindLFG:
		return "lfg"
	case KindSpawn:
		return "spawn"
	default:
		return "unknown"
	}
}

// ManagedRoom is a voice room the service created and has not deleted yet.
// Spawn rooms have no owning session, only an owning user.
type ManagedRoom struct {
	ID           RoomID
	GuildID      GuildID
	Kind         RoomKind
	OwnerSession SessionID
	OwnerUser    UserID
	CreatedAt    time.Time
}

func (r ManagedRoom) Key() RoomKey { return RoomKey{Guild: r.GuildID, Room: r.ID} }
