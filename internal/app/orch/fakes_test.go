package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dkeye/lfg/internal/app"
	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
	quiet   = 50 * time.Millisecond
)

// fakePlatform keeps voice rooms in memory.
type fakePlatform struct {
	mu        sync.Mutex
	next      int
	rooms     map[domain.RoomKey]int
	deleted   []domain.RoomKey
	moves     map[domain.UserID]domain.RoomID
	createErr error
	deleteErr error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		rooms: make(map[domain.RoomKey]int),
		moves: make(map[domain.UserID]domain.RoomID),
	}
}

func (p *fakePlatform) CreateVoiceRoom(_ context.Context, spec core.RoomSpec) (domain.RoomID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return "", p.createErr
	}
	p.next++
	id := domain.RoomID(fmt.Sprintf("room-%d", p.next))
	p.rooms[domain.RoomKey{Guild: spec.GuildID, Room: id}] = 0
	return id, nil
}

func (p *fakePlatform) DeleteVoiceRoom(_ context.Context, key domain.RoomKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.rooms, key)
	p.deleted = append(p.deleted, key)
	return nil
}

func (p *fakePlatform) RoomOccupancy(_ context.Context, key domain.RoomKey) (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.rooms[key]
	return n, ok, nil
}

func (p *fakePlatform) MoveMember(_ context.Context, _ domain.GuildID, user domain.UserID, room domain.RoomID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.moves[user] = room
	return nil
}

func (p *fakePlatform) setOccupancy(key domain.RoomKey, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms[key] = n
}

func (p *fakePlatform) exists(key domain.RoomKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rooms[key]
	return ok
}

func (p *fakePlatform) deletedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deleted)
}

// fakePublisher keeps the latest view of every post.
type fakePublisher struct {
	mu         sync.Mutex
	next       int
	posts      map[string]core.PostView
	retired    map[string]core.PostView
	updates    int
	publishErr error
	updateErr  error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		posts:   make(map[string]core.PostView),
		retired: make(map[string]core.PostView),
	}
}

func (p *fakePublisher) Publish(_ context.Context, view core.PostView) (domain.PostRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return domain.PostRef{}, p.publishErr
	}
	p.next++
	id := fmt.Sprintf("msg-%d", p.next)
	p.posts[id] = view
	return domain.PostRef{ChannelID: "alerts", MessageID: id}, nil
}

func (p *fakePublisher) Update(_ context.Context, ref domain.PostRef, view core.PostView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	if _, ok := p.posts[ref.MessageID]; !ok {
		return errors.New("unknown message")
	}
	p.updates++
	p.posts[ref.MessageID] = view
	return nil
}

func (p *fakePublisher) Retire(_ context.Context, ref domain.PostRef, view core.PostView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.posts, ref.MessageID)
	p.retired[ref.MessageID] = view
	return nil
}

func (p *fakePublisher) post(id string) (core.PostView, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.posts[id]
	return v, ok
}

func (p *fakePublisher) retiredCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.retired)
}

type fakeNotifier struct {
	mu       sync.Mutex
	operator []string
	users    map[domain.UserID][]string
}

func (n *fakeNotifier) NotifyOperator(_ context.Context, _ domain.GuildID, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.operator = append(n.operator, msg)
}

func (n *fakeNotifier) NotifyUser(_ context.Context, user domain.UserID, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.users == nil {
		n.users = make(map[domain.UserID][]string)
	}
	n.users[user] = append(n.users[user], msg)
	return nil
}

func (n *fakeNotifier) operatorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.operator)
}

type eventLog struct {
	mu     sync.Mutex
	events []core.Event
}

func (l *eventLog) Publish(ev core.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) has(t core.EventType, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Type == t && (reason == "" || ev.Reason == reason) {
			return true
		}
	}
	return false
}

type fixture struct {
	orch      *Orchestrator
	platform  *fakePlatform
	publisher *fakePublisher
	notifier  *fakeNotifier
	events    *eventLog
	clock     *clock.Mock
}

type fixtureOption func(*Orchestrator)

func withMaxLifetime(d time.Duration) fixtureOption {
	return func(o *Orchestrator) { o.Settings.MaxLifetime = d }
}

func withOfficers(users ...domain.UserID) fixtureOption {
	return func(o *Orchestrator) {
		o.Policy = app.PolicyFunc(func(_ context.Context, _ domain.GuildID, u domain.UserID) bool {
			for _, officer := range users {
				if u == officer {
					return true
				}
			}
			return false
		})
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		platform:  newFakePlatform(),
		publisher: newFakePublisher(),
		notifier:  &fakeNotifier{},
		events:    &eventLog{},
		clock:     clock.NewMock(),
	}
	registry := app.NewRegistry()
	f.orch = &Orchestrator{
		Sessions:  app.NewSessionStore(f.clock),
		Rooms:     app.NewRoomManager(f.platform, registry, app.RoomManagerConfig{Clock: f.clock}),
		Registry:  registry,
		Publisher: f.publisher,
		Notifier:  f.notifier,
		Events:    f.events,
		Settings: Settings{
			ReclaimOnShutdown: true,
			Clock:             f.clock,
		},
	}
	for _, opt := range opts {
		opt(f.orch)
	}
	f.orch.Init()
	t.Cleanup(func() {
		f.orch.Settings.ReclaimOnShutdown = false
		_ = f.orch.Shutdown(context.Background())
	})
	return f
}

func (f *fixture) create(t *testing.T, user domain.UserID, capacity string) Outcome {
	t.Helper()
	out, err := f.orch.OnCreateRequested(context.Background(), CreateRequest{
		GuildID:     "g1",
		UserID:      user,
		Description: "Raid night",
		Capacity:    capacity,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return out
}

func (f *fixture) control(user domain.UserID, sid domain.SessionID, action domain.Action) (Outcome, error) {
	return f.orch.OnControlActivated(context.Background(), ControlRequest{
		SessionID: sid,
		GuildID:   "g1",
		UserID:    user,
		Action:    action,
	})
}
