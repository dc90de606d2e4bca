package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/domain"
)

const writeWait = 5 * time.Second

func (h *Hub) writePump(ctx context.Context, c *WsEventConn) {
	defer func() {
		h.remove(c)
		c.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", c.id).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", c.id).Msg("writePump write error")
				return
			}
		}
	}
}

func (h *Hub) readPump(ctx context.Context, c *WsEventConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", c.id).Msg("readPump closing")
		h.remove(c)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("readPump read error")
				}
				return
			}
			h.handleMessage(c, data)
		}
	}
}

// handleMessage serves the small control protocol of observers:
// ping and subscribe.
func (h *Hub) handleMessage(c *WsEventConn, data []byte) {
	var env struct {
		Type  string `json:"type"`
		Guild string `json:"guild"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		sendJSON(c, map[string]any{"type": "error", "error": "bad_payload"})
		return
	}

	switch env.Type {
	case "ping":
		sendJSON(c, map[string]any{"type": "pong"})
	case "subscribe":
		c.setGuild(domain.GuildID(env.Guild))
		sendJSON(c, map[string]any{"type": "subscribed", "guild": env.Guild})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message")
		sendJSON(c, map[string]any{"type": "error", "error": "unknown_type"})
	}
}

func sendJSON(c *WsEventConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
