package orch

import (
	"fmt"
	"strings"

	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

// EmptyRoster is rendered for a session without members.
const EmptyRoster = "Empty"

// DefaultMention renders a user the way the chat platform links users.
func DefaultMention(u domain.UserID) string { return "<@" + string(u) + ">" }

// RenderRoster renders the roster as numbered lines "i/capacity mention".
func RenderRoster(s domain.Session, mention func(domain.UserID) string) string {
	if len(s.Members) == 0 {
		return EmptyRoster
	}
	if mention == nil {
		mention = DefaultMention
	}
	label := s.CapacityLabel()
	lines := make([]string, len(s.Members))
	for i, m := range s.Members {
		lines[i] = fmt.Sprintf("%d/%s %s", i+1, label, mention(m))
	}
	return strings.Join(lines, "\n")
}

// VisibleControls is the set of controls viewer gets on s: Leave for members,
// Join otherwise, and Delete for the host and privileged users.
func VisibleControls(s domain.Session, viewer domain.UserID, privileged bool) []domain.Control {
	controls := make([]domain.Control, 0, 2)
	if s.IsMember(viewer) {
		controls = append(controls, domain.ControlLeave)
	} else {
		controls = append(controls, domain.ControlJoin)
	}
	if viewer == s.HostID || privileged {
		controls = append(controls, domain.ControlDelete)
	}
	return controls
}

// PublicControls are attached to the shared post; the actual permission is
// checked when a control is used.
func PublicControls() []domain.Control {
	return []domain.Control{domain.ControlJoin, domain.ControlLeave, domain.ControlDelete}
}

func (o *Orchestrator) view(s domain.Session, closed bool) core.PostView {
	v := core.PostView{
		SessionID:     s.ID,
		GuildID:       s.GuildID,
		Title:         s.Description,
		Host:          s.HostLabel,
		HostID:        s.HostID,
		RoomID:        s.RoomID,
		Roster:        RenderRoster(s, o.Settings.Mention),
		CapacityLabel: s.CapacityLabel(),
		MemberCount:   len(s.Members),
		Closed:        closed,
	}
	if !closed {
		v.Controls = PublicControls()
	}
	return v
}
