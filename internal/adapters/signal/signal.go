package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/core"
	"github.com/dkeye/lfg/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const sendBuffer = 32

// Hub streams session and room events to websocket observers. It implements
// core.EventSink; a slow observer loses events instead of blocking the caller.
type Hub struct {
	mu    sync.RWMutex
	conns map[*WsEventConn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*WsEventConn]struct{})}
}

type WsEventConn struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
	guild  domain.GuildID
}

func (c *WsEventConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsEventConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// Guild is the guild the observer follows; empty means every guild.
func (c *WsEventConn) Guild() domain.GuildID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guild
}

func (c *WsEventConn) setGuild(g domain.GuildID) {
	c.mu.Lock()
	c.guild = g
	c.mu.Unlock()
}

func (h *Hub) Publish(ev core.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if g := c.Guild(); g != "" && g != ev.GuildID {
			continue
		}
		if err := c.TrySend(b); err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("conn", c.id).Str("event", string(ev.Type)).Msg("event dropped")
		}
	}
}

// Len is the number of connected observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*WsEventConn]struct{})
	h.mu.Unlock()
	for c := range conns {
		c.Close()
	}
}

func (h *Hub) add(c *WsEventConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(c *WsEventConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleEvents upgrades the request and streams events until either side
// closes. The optional guild query parameter filters the stream.
func (h *Hub) HandleEvents(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsEventConn{
		id:    uuid.NewString(),
		conn:  ws,
		send:  make(chan []byte, sendBuffer),
		guild: domain.GuildID(c.Query("guild")),
	}
	h.add(conn)
	log.Info().Str("module", "signal").Str("conn", conn.id).Str("guild", string(conn.guild)).Msg("new WS observer")

	go h.writePump(ctx, conn)
	go h.readPump(ctx, conn)
}
