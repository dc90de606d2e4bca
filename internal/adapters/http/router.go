package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/lfg/internal/adapters/signal"
	"github.com/dkeye/lfg/internal/app/orch"
	"github.com/dkeye/lfg/internal/config"
	"github.com/dkeye/lfg/internal/domain"
)

// RequestIDMiddleware tags every request with an id, reusing the caller's
// X-Request-ID when present.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

type postDTO struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

type sessionDTO struct {
	ID            domain.SessionID `json:"id"`
	GuildID       domain.GuildID   `json:"guild_id"`
	HostID        domain.UserID    `json:"host_id"`
	Host          string           `json:"host"`
	Description   string           `json:"description"`
	Capacity      int              `json:"capacity"`
	CapacityLabel string           `json:"capacity_label"`
	Members       []domain.UserID  `json:"members"`
	RoomID        domain.RoomID    `json:"room_id,omitempty"`
	Post          *postDTO         `json:"post,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

type roomDTO struct {
	ID           domain.RoomID    `json:"id"`
	GuildID      domain.GuildID   `json:"guild_id"`
	Kind         string           `json:"kind"`
	OwnerSession domain.SessionID `json:"owner_session,omitempty"`
	OwnerUser    domain.UserID    `json:"owner_user,omitempty"`
	IdlePending  bool             `json:"idle_pending"`
	CreatedAt    time.Time        `json:"created_at"`
}

func toSessionDTO(s domain.Session) sessionDTO {
	dto := sessionDTO{
		ID:            s.ID,
		GuildID:       s.GuildID,
		HostID:        s.HostID,
		Host:          s.HostLabel,
		Description:   s.Description,
		Capacity:      s.Capacity,
		CapacityLabel: s.CapacityLabel(),
		Members:       s.Members,
		RoomID:        s.RoomID,
		CreatedAt:     s.CreatedAt,
	}
	if dto.Members == nil {
		dto.Members = []domain.UserID{}
	}
	if !s.Post.IsZero() {
		dto.Post = &postDTO{ChannelID: s.Post.ChannelID, MessageID: s.Post.MessageID}
	}
	return dto
}

// SetupRouter wires the operational HTTP surface: health, metrics, read-only
// listings and the live event stream.
func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, hub *signal.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"sessions":  o.Sessions.Len(),
			"rooms":     len(o.Rooms.List("")),
			"observers": hub.Len(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	guilds := api.Group("/guilds/:guild")
	guilds.GET("/sessions", func(c *gin.Context) {
		sessions := o.ListSessions(domain.GuildID(c.Param("guild")))
		out := make([]sessionDTO, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, toSessionDTO(s))
		}
		c.JSON(http.StatusOK, gin.H{"sessions": out})
	})
	guilds.GET("/sessions/:id", func(c *gin.Context) {
		s, err := o.Sessions.Get(domain.SessionID(c.Param("id")))
		if err != nil || s.GuildID != domain.GuildID(c.Param("guild")) {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, toSessionDTO(s))
	})
	guilds.GET("/rooms", func(c *gin.Context) {
		rooms := o.Rooms.List(domain.GuildID(c.Param("guild")))
		out := make([]roomDTO, 0, len(rooms))
		for _, room := range rooms {
			out = append(out, roomDTO{
				ID:           room.ID,
				GuildID:      room.GuildID,
				Kind:         room.Kind.String(),
				OwnerSession: room.OwnerSession,
				OwnerUser:    room.OwnerUser,
				IdlePending:  o.Rooms.IdlePending(room.Key()),
				CreatedAt:    room.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"rooms": out})
	})

	api.GET("/ws/events", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Msg("ws events endpoint hit")
		hub.HandleEvents(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
