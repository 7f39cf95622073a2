package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/app"
	"github.com/klynov/lectern/internal/config"
	"github.com/klynov/lectern/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type SignalWSController struct {
	Orch     *app.Orchestrator
	ChatRate *RoomRateLimiter
	cfg      *config.Config
}

func NewSignalWSController(orch *app.Orchestrator, cfg *config.Config) *SignalWSController {
	return &SignalWSController{
		Orch:     orch,
		ChatRate: NewRoomRateLimiter(cfg.ChatRateLimit, cfg.ChatRateInterval),
		cfg:      cfg,
	}
}

// WsSignalConn is the outbound end of a signaling connection. Sends are
// queued into a bounded channel; a full queue is reported to the caller
// as backpressure, never waited out.
type WsSignalConn struct {
	conn   *websocket.Conn
	send   chan core.Frame
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and runs the connection's pumps.
// Identity is not known yet: the client must send a register event
// before anything else works.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	conn := &WsSignalConn{
		conn:   ws,
		send:   make(chan core.Frame, ctl.cfg.SendBuffer),
		cancel: cancel,
	}

	go ctl.writePump(ctx, conn)
	ctl.readPump(ctx, sid, conn)
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, msg string) {
	ctl.sendJSON(c, errorEvent{Type: evError, Error: msg})
}

// broadcastFrom fans an event out to the sender's roommates.
func (ctl *SignalWSController) broadcastFrom(sid core.SessionID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	ctl.Orch.Broadcast(sid, b)
}
