package orch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/app"
	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
	"github.com/dkeye/lfg/internal/metrics"
)

const defaultDescription = "Looking for group"

// CreateRequest is the submitted session-creation form.
type CreateRequest struct {
	GuildID     domain.GuildID
	UserID      domain.UserID
	HostLabel   string
	Description string
	// Capacity is the raw form value; it must parse as a non-negative integer.
	Capacity string
}

// ControlRequest is a control activated on a session post.
type ControlRequest struct {
	SessionID domain.SessionID
	GuildID   domain.GuildID
	UserID    domain.UserID
	Action    domain.Action
}

// OnCreateRequested validates the form, enforces the one-session-per-user
// rule, provisions the room and publishes the post. Nothing is left behind
// when any step fails.
func (o *Orchestrator) OnCreateRequested(ctx context.Context, req CreateRequest) (Outcome, error) {
	logger := log.With().Str("module", "orch").Str("guild", string(req.GuildID)).Str("user", string(req.UserID)).Logger()

	if !o.guildAllowed(req.GuildID) {
		return Outcome{}, reject(domain.ErrGuildNotConfigured)
	}
	capacity, err := domain.ParseCapacity(req.Capacity)
	if err != nil {
		return Outcome{}, reject(err)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultDescription
	}
	hostLabel := strings.TrimSpace(req.HostLabel)
	if hostLabel == "" {
		hostLabel = o.Settings.Mention(req.UserID)
	}

	key := domain.UserKey{Guild: req.GuildID, User: req.UserID}
	privileged := o.Policy.IsPrivileged(ctx, req.GuildID, req.UserID)
	if !privileged && !o.Registry.ReserveSession(key) {
		return Outcome{}, reject(domain.ErrDuplicateSession)
	}
	committed := false
	defer func() {
		if !committed && !privileged {
			o.Registry.ReleaseSession(key, "")
		}
	}()

	room, err := o.Rooms.Provision(ctx, core.RoomSpec{
		GuildID:  req.GuildID,
		Name:     description,
		Capacity: capacity,
		Kind:     domain.KindLFG,
	}, "", "")
	if err != nil {
		return Outcome{}, reject(err)
	}

	sess, err := o.Sessions.Create(app.NewSession{
		GuildID:     req.GuildID,
		HostID:      req.UserID,
		HostLabel:   hostLabel,
		Description: description,
		Capacity:    capacity,
		RoomID:      room.ID,
	})
	if err != nil {
		if derr := o.Rooms.Destroy(ctx, room.Key()); derr != nil {
			o.report(ctx, req.GuildID, "rollback room", derr)
		}
		return Outcome{}, reject(fmt.Errorf("%w: %w", domain.ErrProvisionFailed, err))
	}
	o.Rooms.SetOwner(room.Key(), sess.ID)

	// The id exists before the post does, so no control can ever refer to a
	// session that is not in the store yet.
	unlock := o.locks.Lock(sess.ID)
	defer unlock()

	ref, err := o.Publisher.Publish(ctx, o.view(sess, false))
	if err != nil {
		logger.Error().Err(err).Str("session", string(sess.ID)).Msg("publish post failed")
		_, _ = o.Sessions.Delete(sess.ID)
		if derr := o.Rooms.Destroy(ctx, room.Key()); derr != nil {
			o.report(ctx, req.GuildID, "rollback room", derr)
		}
		return Outcome{}, reject(fmt.Errorf("%w: publish post: %w", domain.ErrProvisionFailed, err))
	}
	if err := o.Sessions.AttachPost(sess.ID, ref); err != nil {
		return Outcome{}, reject(err)
	}
	sess.Post = ref

	if privileged {
		// An earlier session keeps the slot; a second one is exempt, not indexed.
		o.Registry.BindSessionIfFree(key, sess.ID)
	} else {
		o.Registry.BindSession(key, sess.ID)
	}
	committed = true
	if o.Settings.MaxLifetime > 0 {
		o.lifetimes.Arm(sess.ID, o.Settings.MaxLifetime, o.expire)
	}
	metrics.RecordSessionCreated()
	o.emit(core.EventSessionCreated, sess, "")

	if err := o.Rooms.Admit(ctx, room.Key(), req.UserID); err != nil {
		// The host is usually not connected to voice yet.
		logger.Debug().Err(err).Str("room", room.Key().String()).Msg("host not moved")
	}

	logger.Info().
		Str("session", string(sess.ID)).
		Str("room", string(room.ID)).
		Int("capacity", capacity).
		Bool("privileged", privileged).
		Msg("session opened")

	return Outcome{
		Session:  sess,
		View:     o.view(sess, false),
		Controls: VisibleControls(sess, req.UserID, privileged),
		Changed:  true,
	}, nil
}

// OnControlActivated applies a Join, Leave or Delete to a session. Requests
// for the same session are applied one at a time.
func (o *Orchestrator) OnControlActivated(ctx context.Context, req ControlRequest) (Outcome, error) {
	unlock := o.locks.Lock(req.SessionID)
	defer unlock()

	sess, err := o.Sessions.Get(req.SessionID)
	if err != nil {
		return Outcome{}, reject(err)
	}
	if req.GuildID != "" && sess.GuildID != req.GuildID {
		return Outcome{}, reject(domain.ErrNotFound)
	}
	privileged := o.Policy.IsPrivileged(ctx, sess.GuildID, req.UserID)
	out, err := o.apply(ctx, sess, req.UserID, req.Action, privileged)
	if err != nil {
		log.Info().
			Err(err).
			Str("module", "orch").
			Str("session", string(sess.ID)).
			Str("user", string(req.UserID)).
			Str("action", req.Action.String()).
			Msg("request rejected")
		return out, reject(err)
	}
	return out, nil
}

// apply is the session state machine. The caller holds the session lock.
func (o *Orchestrator) apply(ctx context.Context, sess domain.Session, user domain.UserID, action domain.Action, privileged bool) (Outcome, error) {
	changed := false
	switch action {
	case domain.ActionJoin:
		roster, err := o.Sessions.AddMember(sess.ID, user)
		switch {
		case errors.Is(err, domain.ErrAlreadyMember):
		case err != nil:
			return o.outcome(sess, user, privileged, false), err
		default:
			sess.Members = roster
			changed = true
		}

	case domain.ActionLeave:
		roster, removed, err := o.Sessions.RemoveMember(sess.ID, user)
		if err != nil {
			return Outcome{}, err
		}
		sess.Members = roster
		changed = removed

	case domain.ActionDelete:
		if user != sess.HostID && !privileged {
			return o.outcome(sess, user, privileged, false), domain.ErrUnauthorized
		}
		return o.teardown(ctx, sess.ID, ReasonDeleted)

	default:
		return Outcome{}, fmt.Errorf("unsupported action %s", action)
	}

	if changed {
		o.refresh(ctx, sess)
		o.emit(core.EventSessionUpdated, sess, action.String())
	}
	return o.outcome(sess, user, privileged, changed), nil
}

func (o *Orchestrator) outcome(sess domain.Session, viewer domain.UserID, privileged, changed bool) Outcome {
	return Outcome{
		Session:  sess,
		View:     o.view(sess, false),
		Controls: VisibleControls(sess, viewer, privileged),
		Changed:  changed,
	}
}

// refresh re-renders the post of sess. Failures are reported, not returned.
func (o *Orchestrator) refresh(ctx context.Context, sess domain.Session) {
	if sess.Post.IsZero() {
		return
	}
	if err := o.Publisher.Update(ctx, sess.Post, o.view(sess, false)); err != nil {
		o.report(ctx, sess.GuildID, "update post", err)
	}
}

// teardown removes a session and releases everything it holds. The caller
// holds the session lock. Only the first teardown of a session does anything;
// later ones get ErrNotFound.
func (o *Orchestrator) teardown(ctx context.Context, id domain.SessionID, reason string) (Outcome, error) {
	last, err := o.Sessions.Delete(id)
	if err != nil {
		return Outcome{}, err
	}
	o.lifetimes.Cancel(id)
	o.Registry.ReleaseSession(last.HostKey(), id)

	var errs []error
	if last.RoomID != "" {
		if err := o.Rooms.Destroy(ctx, last.RoomKey()); err != nil {
			errs = append(errs, err)
		}
	}
	view := o.view(last, true)
	if !last.Post.IsZero() {
		if err := o.Publisher.Retire(ctx, last.Post, view); err != nil {
			errs = append(errs, fmt.Errorf("retire post: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		o.report(ctx, last.GuildID, "teardown "+reason, err)
	}

	metrics.RecordSessionDeleted(reason)
	o.emit(core.EventSessionDeleted, last, reason)
	log.Info().Str("module", "orch").Str("session", string(id)).Str("guild", string(last.GuildID)).Str("reason", reason).Msg("session closed")

	return Outcome{Session: last, View: view, Deleted: true}, nil
}

// expire is the lifetime timer action.
func (o *Orchestrator) expire(id domain.SessionID) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()
	unlock := o.locks.Lock(id)
	defer unlock()
	if _, err := o.teardown(ctx, id, ReasonExpired); err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error().Err(err).Str("module", "orch").Str("session", string(id)).Msg("expire failed")
	}
}
