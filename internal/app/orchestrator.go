package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/core"
	"github.com/klynov/lectern/internal/domain"
	"github.com/klynov/lectern/internal/recording"
)

// Orchestrator composes the connection registry, the room manager, the
// backpressure policy and the recording lifecycle. Adapters call it;
// it never touches transports beyond the non-blocking send interface.
type Orchestrator struct {
	Registry   *Registry
	Rooms      core.RoomManager
	Policy     Policy
	Recordings *recording.Manager
}

// LeaveResult tells the adapter who must hear about a departure.
// When MeetingEnded is set the room is gone and Notify holds the
// force-removed members; otherwise Notify holds the remaining ones.
type LeaveResult struct {
	Room         domain.RoomID
	User         *domain.User
	MeetingEnded bool
	Notify       []core.MemberSession
}

// JoinResult carries the joined room plus the departure from a previous
// room, if the connection was still in one.
type JoinResult struct {
	Room core.RoomService
	Left *LeaveResult
}

func (o *Orchestrator) Register(sid core.SessionID, u *domain.User, sess core.MemberSession, cancel context.CancelFunc) error {
	return o.Registry.Register(sid, u, sess, cancel)
}

// Join adds the connection to the room. A missing room is created
// implicitly only when a teacher joins; the teacher becomes its owner.
// Re-joining a room the connection is already in is a no-op.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID) (JoinResult, error) {
	u, sess, ok := o.Registry.Lookup(sid)
	if !ok {
		return JoinResult{}, domain.ErrRoomNotFound
	}

	var res JoinResult
	if prev, ok := o.Registry.RoomOf(sid); ok {
		if prev == roomID {
			if room, ok := o.Rooms.Get(roomID); ok && room.HasMember(sid) {
				res.Room = room
				return res, nil
			}
		} else if left, ok := o.Leave(sid); ok {
			res.Left = left
		}
	}

	room, ok := o.Rooms.Get(roomID)
	if !ok {
		if u.Role != domain.RoleTeacher {
			return JoinResult{}, domain.ErrRoomNotFound
		}
		room = o.Rooms.Create(roomID, sid)
		log.Info().Str("module", "app.orch").Str("room", string(roomID)).
			Str("sid", string(sid)).Msg("room created by owner")
	}
	room.AddMember(sid, sess)
	o.Registry.UpdateRoom(sid, roomID)
	res.Room = room
	return res, nil
}

// Leave removes the connection from its current room. An owner leaving
// tears the whole room down: the recording is aborted and every
// remaining member is force-removed. Leaving while in no room is a
// no-op.
func (o *Orchestrator) Leave(sid core.SessionID) (*LeaveResult, bool) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, false
	}
	o.Registry.ClearRoom(sid)
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, false
	}
	u, _, _ := o.Registry.Lookup(sid)

	if !room.IsOwner(sid) {
		room.RemoveMember(sid)
		notify := o.sessionsOf(room.MembersSnapshot())
		return &LeaveResult{Room: roomID, User: u, Notify: notify}, true
	}

	// Owner departure ends the meeting for everyone.
	notify := o.teardown(room, sid)
	log.Info().Str("module", "app.orch").Str("room", string(roomID)).
		Int("members", len(notify)).Msg("meeting ended by owner departure")
	return &LeaveResult{Room: roomID, User: u, MeetingEnded: true, Notify: notify}, true
}

// EndRoom tears the room down on the owner's explicit end-meeting
// request. Unlike Leave it works even before the owner has joined over
// the signaling channel, covering rooms pre-created server-side.
func (o *Orchestrator) EndRoom(roomID domain.RoomID, sid core.SessionID) (*LeaveResult, error) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !room.IsOwner(sid) {
		return nil, domain.ErrNotAuthorized
	}
	u, _, _ := o.Registry.Lookup(sid)
	notify := o.teardown(room, sid)
	log.Info().Str("module", "app.orch").Str("room", string(roomID)).
		Int("members", len(notify)).Msg("meeting ended explicitly")
	return &LeaveResult{Room: roomID, User: u, MeetingEnded: true, Notify: notify}, nil
}

// teardown force-removes every member, stops the room and aborts any
// live recording. It returns the sessions (exclude omitted) that must
// hear meeting_ended, in registration order.
func (o *Orchestrator) teardown(room core.RoomService, exclude core.SessionID) []core.MemberSession {
	roomID := room.Room().ID
	members := room.MembersSnapshot()
	notify := make([]core.MemberSession, 0, len(members))
	for _, m := range members {
		if m.SessionID != exclude {
			if _, sess, ok := o.Registry.Lookup(m.SessionID); ok {
				notify = append(notify, sess)
			}
		}
		room.RemoveMember(m.SessionID)
		o.Registry.ClearRoom(m.SessionID)
	}
	o.Rooms.StopRoom(roomID)
	if o.Recordings != nil {
		o.Recordings.Abort(roomID)
	}
	return notify
}

// Disconnect runs the leave path and drops the registration. Safe to
// call for never-registered or already-gone sessions.
func (o *Orchestrator) Disconnect(sid core.SessionID) (*LeaveResult, bool) {
	res, ok := o.Leave(sid)
	o.Registry.Unregister(sid)
	return res, ok
}

// Broadcast fans data out to the sender's roommates. A dead room is a
// silent no-op: it may have been torn down concurrently with the send.
func (o *Orchestrator) Broadcast(sid core.SessionID, data core.Frame) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	res := room.Broadcast(sid, data)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case KickMember:
			o.Registry.Cancel(slow)
		case MarkSlow, DropFrame, NoAction:
		}
	}
}

// Relay delivers a directed signaling payload to one roommate. False
// means the target is gone (stale peer) — callers must not treat that
// as an error.
func (o *Orchestrator) Relay(sid core.SessionID, target core.SessionID, data core.Frame) bool {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	return room.SendTo(sid, target, data)
}

// StartRecording is owner-only and authoritative: the room flag mirrors
// the lifecycle state, never the other way around.
func (o *Orchestrator) StartRecording(sid core.SessionID) error {
	room, err := o.ownedRoom(sid)
	if err != nil {
		return err
	}
	if err := o.Recordings.Start(room.Room().ID); err != nil {
		return err
	}
	room.SetRecording(true)
	return nil
}

// StopRecording reports whether this call performed the transition;
// duplicate stops return false with no error.
func (o *Orchestrator) StopRecording(sid core.SessionID) (bool, error) {
	room, err := o.ownedRoom(sid)
	if err != nil {
		return false, err
	}
	stopped := o.Recordings.Stop(room.Room().ID)
	room.SetRecording(false)
	return stopped, nil
}

func (o *Orchestrator) SetScreenShare(sid core.SessionID, on bool) error {
	room, err := o.ownedRoom(sid)
	if err != nil {
		return err
	}
	room.SetScreenShare(on)
	return nil
}

func (o *Orchestrator) SetHand(sid core.SessionID, raised bool) error {
	u, _, ok := o.Registry.Lookup(sid)
	if !ok {
		return domain.ErrRoomNotFound
	}
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if raised {
		room.RaiseHand(u.ID)
	} else {
		room.LowerHand(u.ID)
	}
	return nil
}

// RunReaper disconnects connections with no heartbeat for maxAge.
// Cancellation unwinds through the adapter's read loop, so the normal
// disconnect path (owner teardown included) applies.
func (o *Orchestrator) RunReaper(ctx context.Context, interval, maxAge time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, sid := range o.Registry.Stale(maxAge) {
				log.Warn().Str("module", "app.orch").Str("sid", string(sid)).
					Msg("no heartbeat, disconnecting")
				o.Registry.Cancel(sid)
			}
		}
	}
}

func (o *Orchestrator) ownedRoom(sid core.SessionID) (core.RoomService, error) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !room.IsOwner(sid) {
		return nil, domain.ErrNotAuthorized
	}
	return room, nil
}

func (o *Orchestrator) sessionsOf(members []core.MemberDTO) []core.MemberSession {
	out := make([]core.MemberSession, 0, len(members))
	for _, m := range members {
		if _, sess, ok := o.Registry.Lookup(m.SessionID); ok {
			out = append(out, sess)
		}
	}
	return out
}
