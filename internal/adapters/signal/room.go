package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/app"
	"github.com/klynov/lectern/internal/core"
	"github.com/klynov/lectern/internal/domain"
)

func (ctl *SignalWSController) handleRegister(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p registerPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad register payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	role, err := domain.ParseRole(p.Role)
	if err != nil {
		ctl.sendError(conn, "bad_role")
		return
	}
	user, err := domain.NewUser(domain.UserID(p.UserID), p.UserName, role)
	if err != nil {
		ctl.sendError(conn, "bad_identity")
		return
	}

	sess := core.NewMemberSession(domain.NewMember(user), conn)
	if err := ctl.Orch.Register(sid, user, sess, conn.cancel); err != nil {
		if errors.Is(err, domain.ErrDuplicateConnection) {
			ctl.sendError(conn, "duplicate_connection")
			return
		}
		ctl.sendError(conn, "register_failed")
		return
	}

	ctl.sendJSON(conn, struct {
		Type string         `json:"type"`
		SID  core.SessionID `json:"session_id"`
		User *domain.User   `json:"user"`
	}{evRegistered, sid, user})
}

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	user, _, ok := ctl.Orch.Registry.Lookup(sid)
	if !ok {
		ctl.sendError(conn, "not_registered")
		return
	}

	roomID := domain.RoomID(p.RoomID)
	res, err := ctl.Orch.Join(sid, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			ctl.sendError(conn, "room_not_found")
			return
		}
		ctl.sendError(conn, "join_failed")
		return
	}
	if res.Left != nil {
		ctl.notifyLeave(res.Left)
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("room", p.RoomID).Msg("join")

	ctl.sendJSON(conn, roomStateEvent{
		Type:    evRoomState,
		RoomID:  roomID,
		Members: res.Room.MembersSnapshot(),
		Flags:   res.Room.Flags(),
	})
	ctl.broadcastFrom(sid, participantEvent{
		Type:   evParticipantJoin,
		RoomID: roomID,
		User:   user,
		SID:    sid,
	})
}

// handleLeave exits the current room; the connection itself stays up.
func (ctl *SignalWSController) handleLeave(sid core.SessionID, conn *WsSignalConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	if res, ok := ctl.Orch.Leave(sid); ok {
		ctl.notifyLeave(res)
	}
	ctl.sendJSON(conn, map[string]any{"type": "left"})
}

func (ctl *SignalWSController) handleDisconnect(sid core.SessionID) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("disconnect")
	if res, ok := ctl.Orch.Disconnect(sid); ok {
		ctl.notifyLeave(res)
	}
}

// EndMeeting handles the owner's explicit end-meeting request from the
// REST surface and notifies members over their signaling connections.
func (ctl *SignalWSController) EndMeeting(roomID domain.RoomID, sid core.SessionID) error {
	res, err := ctl.Orch.EndRoom(roomID, sid)
	if err != nil {
		return err
	}
	ctl.notifyLeave(res)
	return nil
}

// notifyLeave delivers the aftermath of a departure: either a single
// participant_left to the remaining members, or meeting_ended to each
// member the teardown force-removed.
func (ctl *SignalWSController) notifyLeave(res *app.LeaveResult) {
	var ev any
	if res.MeetingEnded {
		ev = participantEvent{Type: evMeetingEnded, RoomID: res.Room, User: res.User}
	} else {
		ev = participantEvent{Type: evParticipantLeft, RoomID: res.Room, User: res.User}
	}
	for _, sess := range res.Notify {
		ctl.sendJSON(sess.Signal(), ev)
	}
}
