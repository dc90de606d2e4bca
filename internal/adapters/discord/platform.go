package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/config"
	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

const maxUserLimit = 99

var (
	_ core.VoicePlatform   = (*Platform)(nil)
	_ core.Publisher       = (*Platform)(nil)
	_ core.Notifier        = (*Platform)(nil)
	_ core.MemberDirectory = (*Platform)(nil)
)

// Platform implements the core ports on top of a discordgo session.
type Platform struct {
	s        *discordgo.Session
	guilds   map[domain.GuildID]config.GuildConfig
	ownerID  string
	roleName string
}

func NewPlatform(s *discordgo.Session, cfg *config.Config) *Platform {
	guilds := make(map[domain.GuildID]config.GuildConfig, len(cfg.Guilds))
	for id, g := range cfg.Guilds {
		guilds[domain.GuildID(id)] = g
	}
	return &Platform{
		s:        s,
		guilds:   guilds,
		ownerID:  cfg.Discord.OwnerID,
		roleName: cfg.LFG.RoleName,
	}
}

func (p *Platform) guild(id domain.GuildID) (config.GuildConfig, error) {
	g, ok := p.guilds[id]
	if !ok {
		return config.GuildConfig{}, domain.ErrGuildNotConfigured
	}
	return g, nil
}

func (p *Platform) CreateVoiceRoom(ctx context.Context, spec core.RoomSpec) (domain.RoomID, error) {
	parent := spec.ParentID
	if parent == "" {
		if g, err := p.guild(spec.GuildID); err == nil {
			parent = g.CategoryID
		}
	}
	limit := spec.Capacity
	if limit > maxUserLimit {
		limit = 0
	}

	overwrites := []*discordgo.PermissionOverwrite{{
		ID:    string(spec.GuildID),
		Type:  discordgo.PermissionOverwriteTypeRole,
		Allow: discordgo.PermissionVoiceConnect,
	}}
	if p.s.State != nil && p.s.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    p.s.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionVoiceConnect | discordgo.PermissionManageChannels,
		})
	}

	ch, err := p.s.GuildChannelCreateComplex(string(spec.GuildID), discordgo.GuildChannelCreateData{
		Name:                 truncate(spec.Name, maxTitle),
		Type:                 discordgo.ChannelTypeGuildVoice,
		UserLimit:            limit,
		ParentID:             parent,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create voice channel: %w", err)
	}
	return domain.RoomID(ch.ID), nil
}

func (p *Platform) DeleteVoiceRoom(ctx context.Context, key domain.RoomKey) error {
	if _, err := p.s.ChannelDelete(string(key.Room), discordgo.WithContext(ctx)); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// RoomOccupancy counts voice states from the gateway cache. A channel the
// cache does not know is looked up over REST before it is declared gone.
func (p *Platform) RoomOccupancy(ctx context.Context, key domain.RoomKey) (int, bool, error) {
	if _, err := p.s.State.Channel(string(key.Room)); err != nil {
		if !errors.Is(err, discordgo.ErrStateNotFound) {
			return 0, false, err
		}
		if _, err := p.s.Channel(string(key.Room), discordgo.WithContext(ctx)); err != nil {
			if isNotFound(err) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("fetch channel: %w", err)
		}
	}
	return p.voiceCount(string(key.Guild), string(key.Room)), true, nil
}

func (p *Platform) voiceCount(guildID, channelID string) int {
	g, err := p.s.State.Guild(guildID)
	if err != nil {
		return 0
	}
	p.s.State.RLock()
	defer p.s.State.RUnlock()
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			n++
		}
	}
	return n
}

func (p *Platform) MoveMember(ctx context.Context, guild domain.GuildID, user domain.UserID, room domain.RoomID) error {
	var target *string
	if room != "" {
		id := string(room)
		target = &id
	}
	return p.s.GuildMemberMove(string(guild), string(user), target, discordgo.WithContext(ctx))
}

// Publish posts the session to the guild's alert channel and pings the LFG role.
func (p *Platform) Publish(ctx context.Context, view core.PostView) (domain.PostRef, error) {
	g, err := p.guild(view.GuildID)
	if err != nil {
		return domain.PostRef{}, err
	}
	content := "Looking for group!"
	if role, ok := p.lookupRole(ctx, string(view.GuildID)); ok {
		content = "<@&" + role.ID + "> " + content
	}
	msg, err := p.s.ChannelMessageSendComplex(g.AlertChannelID, &discordgo.MessageSend{
		Content:    content,
		Embeds:     []*discordgo.MessageEmbed{buildEmbed(view)},
		Components: buildControls(view),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return domain.PostRef{}, fmt.Errorf("send post: %w", err)
	}
	return domain.PostRef{ChannelID: msg.ChannelID, MessageID: msg.ID}, nil
}

func (p *Platform) Update(ctx context.Context, ref domain.PostRef, view core.PostView) error {
	embeds := []*discordgo.MessageEmbed{buildEmbed(view)}
	components := buildControls(view)
	_, err := p.s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref.MessageID,
		Channel:    ref.ChannelID,
		Embeds:     &embeds,
		Components: &components,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit post: %w", err)
	}
	return nil
}

// Retire disables the controls first so nobody can act on a post that is
// about to disappear, then deletes it.
func (p *Platform) Retire(ctx context.Context, ref domain.PostRef, view core.PostView) error {
	view.Closed = true
	if err := p.Update(ctx, ref, view); err != nil && !isNotFound(err) {
		log.Debug().Err(err).Str("module", "adapters.discord").Str("message", ref.MessageID).Msg("disable controls failed")
	}
	if err := p.s.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// NotifyOperator logs the message and sends it to the bot owner.
func (p *Platform) NotifyOperator(ctx context.Context, guild domain.GuildID, msg string) {
	log.Warn().Str("module", "adapters.discord").Str("guild", string(guild)).Msg(msg)
	if p.ownerID == "" {
		return
	}
	if err := p.NotifyUser(ctx, domain.UserID(p.ownerID), fmt.Sprintf("[guild %s] %s", guild, msg)); err != nil {
		log.Error().Err(err).Str("module", "adapters.discord").Msg("notify operator failed")
	}
}

func (p *Platform) NotifyUser(ctx context.Context, user domain.UserID, msg string) error {
	ch, err := p.s.UserChannelCreate(string(user), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm: %w", err)
	}
	if _, err := p.s.ChannelMessageSend(ch.ID, msg, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

func (p *Platform) MemberRoles(ctx context.Context, guild domain.GuildID, user domain.UserID) ([]string, error) {
	if m, err := p.s.State.Member(string(guild), string(user)); err == nil {
		return m.Roles, nil
	}
	m, err := p.s.GuildMember(string(guild), string(user), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch member: %w", err)
	}
	return m.Roles, nil
}

// ToggleRole adds the LFG role to the member or removes it. It reports
// whether the member holds the role afterwards.
func (p *Platform) ToggleRole(ctx context.Context, guild domain.GuildID, user domain.UserID) (bool, *discordgo.Role, error) {
	role, ok := p.lookupRole(ctx, string(guild))
	if !ok {
		return false, nil, fmt.Errorf("role %q not found", p.roleName)
	}
	roles, err := p.MemberRoles(ctx, guild, user)
	if err != nil {
		return false, role, err
	}
	for _, r := range roles {
		if r == role.ID {
			err := p.s.GuildMemberRoleRemove(string(guild), string(user), role.ID, discordgo.WithContext(ctx))
			return false, role, err
		}
	}
	err = p.s.GuildMemberRoleAdd(string(guild), string(user), role.ID, discordgo.WithContext(ctx))
	return err == nil, role, err
}

func (p *Platform) lookupRole(ctx context.Context, guildID string) (*discordgo.Role, bool) {
	if p.roleName == "" {
		return nil, false
	}
	var roles []*discordgo.Role
	if g, err := p.s.State.Guild(guildID); err == nil {
		p.s.State.RLock()
		roles = g.Roles
		p.s.State.RUnlock()
	} else {
		roles, err = p.s.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.discord").Str("guild", guildID).Msg("fetch roles failed")
			return nil, false
		}
	}
	return findRole(roles, p.roleName)
}

func findRole(roles []*discordgo.Role, name string) (*discordgo.Role, bool) {
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return nil, false
}

// isNotFound reports whether err means the target is already gone.
func isNotFound(err error) bool {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.Response != nil && rerr.Response.StatusCode == http.StatusNotFound {
		return true
	}
	if rerr.Message != nil {
		switch rerr.Message.Code {
		case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
			return true
		}
	}
	return false
}
