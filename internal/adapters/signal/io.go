package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/core"
)

const writeTimeout = 5 * time.Second

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ping := time.NewTicker(ctl.cfg.PingPeriod)
	defer ping.Stop()
	// Closing here unblocks the read loop, so a cancelled session
	// (reaper, backpressure kick) runs the full disconnect path.
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ping.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
		ctl.handleDisconnect(sid)
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	c.conn.SetPongHandler(func(string) error {
		ctl.Orch.Registry.Touch(sid)
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(sid core.SessionID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}
	ctl.Orch.Registry.Touch(sid)

	switch env.Type {
	case evRegister:
		ctl.handleRegister(sid, c, data)
	case evJoinRoom:
		ctl.handleJoin(sid, c, data)
	case evLeaveRoom:
		ctl.handleLeave(sid, c)
	case evOffer:
		ctl.handleOffer(sid, c, data)
	case evAnswer:
		ctl.handleAnswer(sid, c, data)
	case evICECandidate:
		ctl.handleCandidate(sid, c, data)
	case evToggleVideo, evToggleAudio:
		ctl.handleToggle(sid, c, env.Type, data)
	case evRaiseHand:
		ctl.handleHand(sid, c, true)
	case evLowerHand:
		ctl.handleHand(sid, c, false)
	case evChatMessage:
		ctl.handleChat(sid, c, data)
	case evStartScreen:
		ctl.handleScreenShare(sid, c, true)
	case evStopScreen:
		ctl.handleScreenShare(sid, c, false)
	case evRecordingStart:
		ctl.handleRecording(sid, c, true)
	case evRecordingStop:
		ctl.handleRecording(sid, c, false)
	case evPing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}
