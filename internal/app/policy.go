package app

import (
	"context"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

// Policy decides who is privileged: exempt from the one-session limit and
// allowed to delete any session.
type Policy interface {
	IsPrivileged(ctx context.Context, guild domain.GuildID, user domain.UserID) bool
}

type PolicyFunc func(ctx context.Context, guild domain.GuildID, user domain.UserID) bool

func (f PolicyFunc) IsPrivileged(ctx context.Context, guild domain.GuildID, user domain.UserID) bool {
	return f(ctx, guild, user)
}

// RolePolicy grants privilege to the bot owner and to holders of one of the
// guild's officer roles.
type RolePolicy struct {
	Directory    core.MemberDirectory
	OwnerID      domain.UserID
	OfficerRoles map[domain.GuildID][]string
}

func (p RolePolicy) IsPrivileged(ctx context.Context, guild domain.GuildID, user domain.UserID) bool {
	if p.OwnerID != "" && user == p.OwnerID {
		return true
	}
	officer := p.OfficerRoles[guild]
	if len(officer) == 0 || p.Directory == nil {
		return false
	}
	roles, err := p.Directory.MemberRoles(ctx, guild, user)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.policy").Str("guild", string(guild)).Str("user", string(user)).Msg("role lookup failed")
		return false
	}
	return slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(officer, r) })
}
