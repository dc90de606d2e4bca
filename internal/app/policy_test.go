package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/lfg/internal/domain"
)

type fakeDirectory struct {
	roles map[domain.UserID][]string
	err   error
	calls int
}

func (d *fakeDirectory) MemberRoles(_ context.Context, _ domain.GuildID, user domain.UserID) ([]string, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.roles[user], nil
}

func TestRolePolicy(t *testing.T) {
	dir := &fakeDirectory{roles: map[domain.UserID][]string{
		"officer": {"member", "officers"},
		"member":  {"member"},
	}}
	p := RolePolicy{
		Directory:    dir,
		OwnerID:      "owner",
		OfficerRoles: map[domain.GuildID][]string{"g1": {"officers"}},
	}
	ctx := context.Background()

	assert.True(t, p.IsPrivileged(ctx, "g1", "owner"))
	assert.True(t, p.IsPrivileged(ctx, "g1", "officer"))
	assert.False(t, p.IsPrivileged(ctx, "g1", "member"))
	assert.False(t, p.IsPrivileged(ctx, "g2", "officer"), "no officer roles configured for g2")
	assert.True(t, p.IsPrivileged(ctx, "g2", "owner"))
}

func TestRolePolicy_LookupFailureIsNotPrivileged(t *testing.T) {
	p := RolePolicy{
		Directory:    &fakeDirectory{err: errors.New("boom")},
		OfficerRoles: map[domain.GuildID][]string{"g1": {"officers"}},
	}
	assert.False(t, p.IsPrivileged(context.Background(), "g1", "officer"))
}

func TestPolicyFunc(t *testing.T) {
	p := PolicyFunc(func(_ context.Context, _ domain.GuildID, u domain.UserID) bool { return u == "admin" })
	assert.True(t, p.IsPrivileged(context.Background(), "g1", "admin"))
	assert.False(t, p.IsPrivileged(context.Background(), "g1", "user"))
}
