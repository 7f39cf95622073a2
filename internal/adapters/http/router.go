package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/adapters/signal"
	"github.com/klynov/lectern/internal/app"
	"github.com/klynov/lectern/internal/config"
	"github.com/klynov/lectern/internal/core"
	"github.com/klynov/lectern/internal/domain"
	"github.com/klynov/lectern/internal/recording"
)

// ClientTokenMiddleware pins a transport identity to the browser via a
// cookie; the WS signaling session reuses it as its session id.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator, uploader *recording.Uploader) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LecternSessions", store))
	r.Use(ClientTokenMiddleware())

	ctl := signal.NewSignalWSController(orch, cfg)

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": orch.Rooms.List()})
	})

	// Pre-create a room before any browser joins it. Teacher only; the
	// requester's client token becomes the owner connection.
	api.POST("/rooms", func(c *gin.Context) {
		var req struct {
			ID string `json:"id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		sid := core.SessionID(c.GetString("client_token"))
		u, _, ok := orch.Registry.Lookup(sid)
		if !ok || u.Role != domain.RoleTeacher {
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized"})
			return
		}
		room := orch.Rooms.Create(domain.RoomID(req.ID), sid)
		c.JSON(http.StatusCreated, core.RoomInfo{
			ID:          room.Room().ID,
			MemberCount: room.MemberCount(),
			Flags:       room.Flags(),
		})
	})

	// Explicit end-meeting by the owner.
	api.DELETE("/rooms/:id", func(c *gin.Context) {
		sid := core.SessionID(c.GetString("client_token"))
		err := ctl.EndMeeting(domain.RoomID(c.Param("id")), sid)
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		case errors.Is(err, domain.ErrNotAuthorized):
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "end meeting failed"})
		default:
			c.Status(http.StatusNoContent)
		}
	})

	api.GET("/rooms/:id", func(c *gin.Context) {
		room, ok := orch.Rooms.Get(domain.RoomID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, core.RoomInfo{
			ID:          room.Room().ID,
			MemberCount: room.MemberCount(),
			Flags:       room.Flags(),
		})
	})

	api.GET("/rooms/:id/members", func(c *gin.Context) {
		room, ok := orch.Rooms.Get(domain.RoomID(c.Param("id")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, room.MembersSnapshot())
	})

	api.GET("/recordings/:meetingId", func(c *gin.Context) {
		snap, ok := orch.Recordings.Get(domain.RoomID(c.Param("meetingId")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no recording session"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	// The owner's browser posts the captured blob here after the stop
	// signal. An empty body is a legal outcome: the recorder produced
	// nothing and the session closes with no artifact.
	api.POST("/recordings/:meetingId/blob", func(c *gin.Context) {
		meeting := domain.RoomID(c.Param("meetingId"))
		sid := core.SessionID(c.GetString("client_token"))
		if room, ok := orch.Rooms.Get(meeting); ok && !room.IsOwner(sid) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not authorized"})
			return
		}
		blob, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		mime := c.ContentType()
		if mime == "" {
			mime = "video/webm"
		}
		uploader.HandleBlob(ctx, meeting, blob, mime)
		snap, _ := orch.Recordings.Get(meeting)
		c.JSON(http.StatusAccepted, snap)
	})

	// Callback from the AI transcription/notes pipeline.
	api.POST("/recordings/:meetingId/processing", func(c *gin.Context) {
		var req struct {
			Success     *bool    `json:"success" binding:"required"`
			OutputRefs  []string `json:"output_refs"`
			ErrorReason string   `json:"error_reason"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		meeting := domain.RoomID(c.Param("meetingId"))
		if !*req.Success {
			log.Warn().Str("module", "adapters.http").Str("meeting", string(meeting)).
				Str("reason", req.ErrorReason).Msg("pipeline reported failure")
		}
		orch.Recordings.ProcessingResult(meeting, *req.Success)
		snap, _ := orch.Recordings.Get(meeting)
		c.JSON(http.StatusOK, snap)
	})

	return r
}
