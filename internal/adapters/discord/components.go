package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

// Custom ids of the components the bot owns. Post controls carry the
// session id: lfg:<action>:<session>.
const (
	idPrefix     = "lfg"
	idCreate     = "lfg:create"
	idToggleRole = "lfg:toggle"
	idCreateForm = "lfg:form"

	fieldHost        = "host"
	fieldDescription = "description"
	fieldCapacity    = "capacity"
)

const (
	embedColor  = 0x3498db
	closedColor = 0x95a5a6
	maxTitle    = 100
)

func controlID(c domain.Control, sid domain.SessionID) string {
	return idPrefix + ":" + c.Action().String() + ":" + string(sid)
}

// parseControlID is the inverse of controlID.
func parseControlID(id string) (domain.Action, domain.SessionID, bool) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[0] != idPrefix || parts[2] == "" {
		return 0, "", false
	}
	action, err := domain.ParseAction(parts[1])
	if err != nil {
		return 0, "", false
	}
	return action, domain.SessionID(parts[2]), true
}

func buildEmbed(view core.PostView) *discordgo.MessageEmbed {
	room := "None"
	if view.RoomID != "" {
		room = "<#" + string(view.RoomID) + ">"
	}
	title := truncate(view.Title, maxTitle)
	color := embedColor
	if view.Closed {
		title = truncate("[Closed] "+view.Title, maxTitle)
		color = closedColor
	}
	return &discordgo.MessageEmbed{
		Title: title,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Host", Value: view.Host},
			{Name: "Voice Channel", Value: room},
			{Name: "Current Squad", Value: view.Roster},
			{Name: "Max Party Size", Value: view.CapacityLabel},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Session " + string(view.SessionID)},
	}
}

// buildControls renders the control row of a post. A closed post keeps its
// buttons, disabled.
func buildControls(view core.PostView) []discordgo.MessageComponent {
	controls := view.Controls
	disabled := view.Closed
	if disabled {
		controls = []domain.Control{domain.ControlJoin, domain.ControlLeave, domain.ControlDelete}
	}
	if len(controls) == 0 {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(controls))
	for _, c := range controls {
		buttons = append(buttons, discordgo.Button{
			Label:    c.Label(),
			Style:    buttonStyle(c),
			CustomID: controlID(c, view.SessionID),
			Disabled: disabled,
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func buttonStyle(c domain.Control) discordgo.ButtonStyle {
	if c == domain.ControlJoin {
		return discordgo.SuccessButton
	}
	return discordgo.DangerButton
}

func deployButton() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "Create LFG Post", Style: discordgo.PrimaryButton, CustomID: idCreate},
	}}}
}

func signupEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "📢 LFG Role Signup",
		Description: "Click the button to **toggle enlistment**.\nIf enlisted, you'll receive notifications for new groups.",
		Color:       embedColor,
	}
}

func signupButton() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "Enlist/Unenlist", Style: discordgo.PrimaryButton, CustomID: idToggleRole},
	}}}
}

func createForm() *discordgo.InteractionResponse {
	input := func(id, label, placeholder string, max int) discordgo.MessageComponent {
		return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    id,
				Label:       label,
				Style:       discordgo.TextInputShort,
				Placeholder: placeholder,
				Required:    true,
				MaxLength:   max,
			},
		}}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: idCreateForm,
			Title:    "Create LFG Post",
			Components: []discordgo.MessageComponent{
				input(fieldHost, "Host", "Who is leading the group?", 100),
				input(fieldDescription, "Channel Description", "What is this squad doing?", maxTitle),
				input(fieldCapacity, "Max Party Size (0 = unlimited)", "Enter a number", 4),
			},
		},
	}
}

// formValues flattens the text inputs of a submitted form by custom id.
func formValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	out := make(map[string]string)
	for _, row := range data.Components {
		var inner []discordgo.MessageComponent
		switch r := row.(type) {
		case *discordgo.ActionsRow:
			inner = r.Components
		case discordgo.ActionsRow:
			inner = r.Components
		}
		for _, c := range inner {
			switch in := c.(type) {
			case *discordgo.TextInput:
				out[in.CustomID] = in.Value
			case discordgo.TextInput:
				out[in.CustomID] = in.Value
			}
		}
	}
	return out
}

// controlReply is the private confirmation after a control was applied.
func controlReply(action domain.Action, changed bool) string {
	switch action {
	case domain.ActionJoin:
		if !changed {
			return "You are already in this party."
		}
		return "✅ You joined the party."
	case domain.ActionLeave:
		if !changed {
			return "You are not in this party."
		}
		return "You left the party."
	case domain.ActionDelete:
		return "✅ LFG post deleted."
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
