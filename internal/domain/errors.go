package domain

import "errors"

var (
	ErrDuplicateSession   = errors.New("user already has an active session")
	ErrPartyFull          = errors.New("party is full")
	ErrUnauthorized       = errors.New("not allowed to delete this session")
	ErrProvisionFailed    = errors.New("room provisioning failed")
	ErrNotFound           = errors.New("session not found")
	ErrReclaimRace        = errors.New("room became occupied before reclaim")
	ErrAlreadyMember      = errors.New("user is already a member")
	ErrInvalidCapacity    = errors.New("capacity must be a non-negative integer")
	ErrSpawnExists        = errors.New("user already has an active spawned room")
	ErrGuildNotConfigured = errors.New("guild is not configured")
)

// Notice returns the private message shown to the user whose request failed with err.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDuplicateSession):
		return "⚠️ You already have an active LFG post. Delete it before creating another."
	case errors.Is(err, ErrPartyFull):
		return "⚠️ Party is full!"
	case errors.Is(err, ErrUnauthorized):
		return "Only Officers or the Host can delete this LFG post."
	case errors.Is(err, ErrProvisionFailed):
		return "⚠️ Failed to create the voice channel. Check bot permissions."
	case errors.Is(err, ErrNotFound):
		return "⚠️ This LFG post no longer exists."
	case errors.Is(err, ErrInvalidCapacity):
		return "⚠️ Max Party Size must be a non-negative number."
	case errors.Is(err, ErrSpawnExists):
		return "⚠️ You already have an active Join-to-Create VC!"
	case errors.Is(err, ErrGuildNotConfigured):
		return "⚠️ Setup issue, contact an Officer."
	default:
		return "⚠️ Something went wrong, try again later."
	}
}
