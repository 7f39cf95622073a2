package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/core"
	"github.com/klynov/lectern/internal/domain"
)

func (ctl *SignalWSController) handlePing(conn *WsSignalConn) {
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{evPong})
}

func (ctl *SignalWSController) handleToggle(
	sid core.SessionID,
	conn *WsSignalConn,
	eventType string,
	data []byte,
) {
	var p togglePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad toggle payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	user, sess, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		ctl.sendError(conn, "not_registered")
		return
	}
	roomID, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	switch eventType {
	case evToggleVideo:
		sess.Meta().VideoOn = p.State
	case evToggleAudio:
		sess.Meta().AudioOn = p.State
	}
	ctl.broadcastFrom(sid, roomEvent{
		Type:   eventType,
		RoomID: roomID,
		UserID: user.ID,
		State:  p.State,
	})
}

func (ctl *SignalWSController) handleHand(sid core.SessionID, conn *WsSignalConn, raised bool) {
	user, _, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		ctl.sendError(conn, "not_registered")
		return
	}
	if err := ctl.Orch.SetHand(sid, raised); err != nil {
		return
	}
	roomID, _ := ctl.Orch.Registry.RoomOf(sid)
	eventType := evLowerHand
	if raised {
		eventType = evRaiseHand
	}
	ctl.broadcastFrom(sid, roomEvent{
		Type:   eventType,
		RoomID: roomID,
		UserID: user.ID,
		State:  raised,
	})
}

// handleChat relays a chat line to roommates. Nothing is persisted;
// the client timestamp passes through untouched.
func (ctl *SignalWSController) handleChat(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p chatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	user, _, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		ctl.sendError(conn, "not_registered")
		return
	}
	if !ctl.ChatRate.Allow(user.ID) {
		ctl.sendError(conn, "rate_limited")
		return
	}
	roomID, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	ctl.broadcastFrom(sid, roomEvent{
		Type:      evChatMessage,
		RoomID:    roomID,
		UserID:    user.ID,
		UserName:  user.Name,
		Message:   p.Message,
		Timestamp: p.Timestamp,
	})
}

func (ctl *SignalWSController) handleScreenShare(sid core.SessionID, conn *WsSignalConn, on bool) {
	user, _, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		ctl.sendError(conn, "not_registered")
		return
	}
	if err := ctl.Orch.SetScreenShare(sid, on); err != nil {
		if errors.Is(err, domain.ErrNotAuthorized) {
			ctl.sendError(conn, "not_authorized")
		}
		return
	}
	roomID, _ := ctl.Orch.Registry.RoomOf(sid)
	eventType := evStopScreen
	if on {
		eventType = evStartScreen
	}
	ctl.broadcastFrom(sid, roomEvent{
		Type:   eventType,
		RoomID: roomID,
		UserID: user.ID,
		State:  on,
	})
}

// handleRecording applies the owner's authoritative recording signal.
// A start while already recording is answered with a warning, not an
// error: the room is in the desired state. Duplicate stops broadcast
// nothing the second time.
func (ctl *SignalWSController) handleRecording(sid core.SessionID, conn *WsSignalConn, start bool) {
	user, _, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		ctl.sendError(conn, "not_registered")
		return
	}
	roomID, _ := ctl.Orch.Registry.RoomOf(sid)

	if start {
		err := ctl.Orch.StartRecording(sid)
		switch {
		case errors.Is(err, domain.ErrAlreadyRecording):
			// already in the desired state: warn, don't error
			ctl.sendJSON(conn, warningEvent{Type: evWarning, Reason: "already_recording"})
			return
		case errors.Is(err, domain.ErrNotAuthorized):
			ctl.sendError(conn, "not_authorized")
			return
		case err != nil:
			return
		}
		ctl.broadcastFrom(sid, roomEvent{Type: evRecordingStart, RoomID: roomID, UserID: user.ID, State: true})
		return
	}

	stopped, err := ctl.Orch.StopRecording(sid)
	if errors.Is(err, domain.ErrNotAuthorized) {
		ctl.sendError(conn, "not_authorized")
		return
	}
	if err != nil || !stopped {
		return
	}
	ctl.broadcastFrom(sid, roomEvent{Type: evRecordingStop, RoomID: roomID, UserID: user.ID})
}
