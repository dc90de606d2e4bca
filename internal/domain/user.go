// Package domain contains entities and their invariants, no transport or lifecycle logic.
package domain

type (
	GuildID string
	UserID  string
)

// UserKey scopes a user identity to its guild; ids are only unique within one.
type UserKey struct {
	Guild GuildID
	User  UserID
}

func (k UserKey) String() string { return string(k.Guild) + "/" + string(k.User) }
