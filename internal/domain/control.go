package domain

import "fmt"

// Action is an operation a user applies to a session through its controls.
type Action int

const (
	ActionJoin Action = iota + 1
	ActionLeave
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionJoin:
		return "join"
	case ActionLeave:
		return "leave"
	case ActionDelete:
		return "delete"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

func ParseAction(s string) (Action, error) {
	switch s {
	case "join":
		return ActionJoin, nil
	case "leave":
		return ActionLeave, nil
	case "delete":
		return ActionDelete, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Control is a button a viewer may see on a post.
type Control int

const (
	ControlJoin Control = iota + 1
	ControlLeave
	ControlDelete
)

// Action returns the action the control triggers.
func (c Control) Action() Action {
	switch c {
	case ControlJoin:
		return ActionJoin
	case ControlLeave:
		return ActionLeave
	case ControlDelete:
		return ActionDelete
	}
	return 0
}

func (c Control) Label() string {
	switch c {
	case ControlJoin:
		return "Join"
	case ControlLeave:
		return "Leave"
	case ControlDelete:
		return "Delete"
	}
	return ""
}
