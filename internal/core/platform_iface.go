package core

//go:generate mockgen -destination=mock/mock_platform.go -package=mockcore -source=platform_iface.go

import (
	"context"

	"github.com/dkeye/lfg/internal/domain"
)

// RoomSpec describes a voice room to create.
type RoomSpec struct {
	GuildID domain.GuildID
	Name    string
	// Capacity is the user limit of the room, 0 means no limit.
	Capacity int
	Kind     domain.RoomKind
	// ParentID is the category to create the room in; empty lets the
	// platform pick the configured one for Kind.
	ParentID string
}

// VoicePlatform is the part of the chat platform that owns voice rooms.
// DeleteVoiceRoom must return nil when the room no longer exists.
type VoicePlatform interface {
	CreateVoiceRoom(ctx context.Context, spec RoomSpec) (domain.RoomID, error)
	DeleteVoiceRoom(ctx context.Context, key domain.RoomKey) error
	// RoomOccupancy reports the number of connected users and whether the
	// room still exists.
	RoomOccupancy(ctx context.Context, key domain.RoomKey) (count int, exists bool, err error)
	MoveMember(ctx context.Context, guild domain.GuildID, user domain.UserID, room domain.RoomID) error
}
