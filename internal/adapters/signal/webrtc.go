package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/core"
)

// WebRTC handshake relay. Payloads are opaque to the server: offers,
// answers and candidates are forwarded to the target peer verbatim. A
// target that already left is dropped silently — clients do not retry,
// and late candidates for a gone peer are expected, not an error.

func (ctl *SignalWSController) handleOffer(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p offerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	ctl.relay(sid, p.Target, relayEvent{
		Type:   evOffer,
		RoomID: roomID,
		From:   sid,
		Offer:  &p.Offer,
	})
}

func (ctl *SignalWSController) handleAnswer(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p answerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	ctl.relay(sid, p.Target, relayEvent{
		Type:   evAnswer,
		RoomID: roomID,
		From:   sid,
		Answer: &p.Answer,
	})
}

func (ctl *SignalWSController) handleCandidate(sid core.SessionID, conn *WsSignalConn, data []byte) {
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return
	}
	ctl.relay(sid, p.Target, relayEvent{
		Type:      evICECandidate,
		RoomID:    roomID,
		From:      sid,
		Candidate: &p.Candidate,
	})
}

func (ctl *SignalWSController) relay(sid, target core.SessionID, ev relayEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("relay marshal")
		return
	}
	if !ctl.Orch.Relay(sid, target, b) {
		log.Debug().Str("module", "signal").Str("from", string(sid)).
			Str("to", string(target)).Str("type", ev.Type).Msg("relay dropped")
	}
}
