package discord

import (
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/app/orch"
	"github.com/dkeye/lfg/internal/domain"
)

const (
	cmdDeployButton = "!post_lfg_button"
	cmdSignup       = "!post_lfg_signup"

	slowDown = "⚠️ Slow down, try again in a moment."
)

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Info().Str("module", "adapters.discord").Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("logged in")
}

// voiceMoves returns the channel a member left and the one they entered.
// Either is empty when the update did not leave or enter a channel.
func voiceMoves(before *discordgo.VoiceState, after *discordgo.VoiceState) (left, entered string) {
	prev := ""
	if before != nil {
		prev = before.ChannelID
	}
	next := after.ChannelID
	if prev == next {
		return "", ""
	}
	return prev, next
}

// onVoiceStateUpdate runs after the gateway cache applied the update, so the
// voice counts read here already reflect it.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	ctx, cancel := b.handlerContext()
	defer cancel()

	guild := domain.GuildID(vsu.GuildID)
	left, entered := voiceMoves(vsu.BeforeUpdate, vsu.VoiceState)
	if left != "" {
		b.orch.OnRoomOccupancyChanged(ctx, guild, domain.RoomID(left), b.platform.voiceCount(vsu.GuildID, left))
	}
	if entered == "" {
		return
	}
	b.orch.OnRoomOccupancyChanged(ctx, guild, domain.RoomID(entered), b.platform.voiceCount(vsu.GuildID, entered))

	g, ok := b.guilds[guild]
	if !ok || g.JoinToCreateChannelID == "" || entered != g.JoinToCreateChannelID {
		return
	}
	parent := g.CategoryID
	if ch, err := s.State.Channel(entered); err == nil && ch.ParentID != "" {
		parent = ch.ParentID
	}
	user := domain.UserID(vsu.UserID)
	_, err := b.orch.OnJoinTriggerEntered(ctx, orch.JoinTrigger{
		GuildID:     guild,
		UserID:      user,
		DisplayName: displayName(vsu.Member),
		TriggerRoom: domain.RoomID(entered),
		ParentID:    parent,
	})
	if err == nil {
		return
	}
	if nerr := b.platform.NotifyUser(ctx, user, domain.Notice(err)); nerr != nil {
		log.Debug().Err(nerr).Str("module", "adapters.discord").Str("user", string(user)).Msg("dm failed")
	}
	if errors.Is(err, domain.ErrSpawnExists) {
		if merr := b.platform.MoveMember(ctx, guild, user, domain.RoomID(left)); merr != nil {
			log.Debug().Err(merr).Str("module", "adapters.discord").Str("user", string(user)).Msg("move back failed")
		}
	}
}

func (b *Bot) onChannelDelete(s *discordgo.Session, c *discordgo.ChannelDelete) {
	if c.Channel == nil || c.Type != discordgo.ChannelTypeGuildVoice {
		return
	}
	ctx, cancel := b.handlerContext()
	defer cancel()
	b.orch.OnRoomRemoved(ctx, domain.GuildID(c.GuildID), domain.RoomID(c.ID))
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" {
		return
	}
	user := interactionUser(i)
	key := domain.UserKey{Guild: domain.GuildID(i.GuildID), User: user}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		if !b.limiter.Allow(key) {
			b.reply(i, slowDown)
			return
		}
		id := i.MessageComponentData().CustomID
		switch id {
		case idCreate:
			if err := s.InteractionRespond(i.Interaction, createForm()); err != nil {
				log.Error().Err(err).Str("module", "adapters.discord").Msg("open form failed")
			}
		case idToggleRole:
			b.handleToggle(i, key)
		default:
			action, sid, ok := parseControlID(id)
			if !ok {
				log.Warn().Str("module", "adapters.discord").Str("custom_id", id).Msg("unknown component")
				return
			}
			b.handleControl(i, key, action, sid)
		}

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		if data.CustomID != idCreateForm {
			return
		}
		if !b.limiter.Allow(key) {
			b.reply(i, slowDown)
			return
		}
		b.handleCreate(i, key, formValues(data))
	}
}

func (b *Bot) handleCreate(i *discordgo.InteractionCreate, key domain.UserKey, values map[string]string) {
	if !b.deferReply(i) {
		return
	}
	ctx, cancel := b.handlerContext()
	defer cancel()

	_, err := b.orch.OnCreateRequested(ctx, orch.CreateRequest{
		GuildID:     key.Guild,
		UserID:      key.User,
		HostLabel:   values[fieldHost],
		Description: values[fieldDescription],
		Capacity:    values[fieldCapacity],
	})
	if err != nil {
		b.followUp(i, domain.Notice(err))
		return
	}
	b.followUp(i, "✅ Your LFG has been posted!")
}

func (b *Bot) handleControl(i *discordgo.InteractionCreate, key domain.UserKey, action domain.Action, sid domain.SessionID) {
	if !b.deferReply(i) {
		return
	}
	ctx, cancel := b.handlerContext()
	defer cancel()

	out, err := b.orch.OnControlActivated(ctx, orch.ControlRequest{
		SessionID: sid,
		GuildID:   key.Guild,
		UserID:    key.User,
		Action:    action,
	})
	if err != nil {
		b.followUp(i, domain.Notice(err))
		return
	}
	b.followUp(i, controlReply(action, out.Changed || out.Deleted))
}

func (b *Bot) handleToggle(i *discordgo.InteractionCreate, key domain.UserKey) {
	if !b.deferReply(i) {
		return
	}
	ctx, cancel := b.handlerContext()
	defer cancel()

	enlisted, role, err := b.platform.ToggleRole(ctx, key.Guild, key.User)
	switch {
	case role == nil:
		b.followUp(i, "⚠️ LFG role not found.")
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.discord").Str("user", key.String()).Msg("toggle role failed")
		b.followUp(i, domain.Notice(err))
	case enlisted:
		b.followUp(i, "✅ You have been enlisted into "+role.Mention()+"!")
	default:
		b.followUp(i, "❌ You have been unenlisted from "+role.Mention()+".")
	}
}

// onMessageCreate serves the officer commands that post the deploy button
// and the role signup.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	cmd := strings.TrimSpace(m.Content)
	if cmd != cmdDeployButton && cmd != cmdSignup {
		return
	}
	ctx, cancel := b.handlerContext()
	defer cancel()

	guild := domain.GuildID(m.GuildID)
	if !b.orch.Policy.IsPrivileged(ctx, guild, domain.UserID(m.Author.ID)) {
		log.Info().Str("module", "adapters.discord").Str("user", m.Author.ID).Str("cmd", cmd).Msg("command refused")
		return
	}

	var err error
	switch cmd {
	case cmdDeployButton:
		channel := m.ChannelID
		if g, ok := b.guilds[guild]; ok && g.PostingChannelID != "" {
			channel = g.PostingChannelID
		}
		_, err = s.ChannelMessageSendComplex(channel, &discordgo.MessageSend{
			Content:    "Click the button below to create an LFG post:",
			Components: deployButton(),
		}, discordgo.WithContext(ctx))
	case cmdSignup:
		_, err = s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{signupEmbed()},
			Components: signupButton(),
		}, discordgo.WithContext(ctx))
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.discord").Str("cmd", cmd).Msg("command failed")
	}
}

func (b *Bot) reply(i *discordgo.InteractionCreate, msg string) {
	err := b.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: msg, Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.discord").Msg("reply failed")
	}
}

// deferReply acknowledges the interaction privately; platform calls may take
// longer than the acknowledgement window.
func (b *Bot) deferReply(i *discordgo.InteractionCreate) bool {
	err := b.s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.discord").Msg("defer reply failed")
		return false
	}
	return true
}

func (b *Bot) followUp(i *discordgo.InteractionCreate, msg string) {
	if _, err := b.s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &msg}); err != nil {
		log.Error().Err(err).Str("module", "adapters.discord").Msg("follow up failed")
	}
}

func interactionUser(i *discordgo.InteractionCreate) domain.UserID {
	if i.Member != nil && i.Member.User != nil {
		return domain.UserID(i.Member.User.ID)
	}
	if i.User != nil {
		return domain.UserID(i.User.ID)
	}
	return ""
}

func displayName(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}
