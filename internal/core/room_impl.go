package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/domain"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	owner SessionID

	mu     sync.RWMutex
	bySID  map[SessionID]MemberSession
	order  []SessionID
	byUser map[domain.UserID]SessionID

	recording     bool
	screenSharing bool
	handsRaised   map[domain.UserID]struct{}
}

func NewRoomService(room *domain.Room, owner SessionID) RoomService {
	return &roomImpl{
		room:        room,
		owner:       owner,
		bySID:       make(map[SessionID]MemberSession),
		byUser:      make(map[domain.UserID]SessionID),
		handsRaised: make(map[domain.UserID]struct{}),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) Owner() SessionID { return r.owner }

func (r *roomImpl) IsOwner(sid SessionID) bool { return sid == r.owner }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) HasMember(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySID[sid]
	return ok
}

func (r *roomImpl) AddMember(sid SessionID, ms MemberSession) {
	u := ms.Meta().User.ID
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; ok {
		return
	}
	r.bySID[sid] = ms
	r.byUser[u] = sid
	r.order = append(r.order, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("sid", string(sid)).Str("user", string(u)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.bySID[sid]
	if !ok {
		return
	}
	u := ms.Meta().User.ID
	delete(r.byUser, u)
	delete(r.handsRaised, u)
	delete(r.bySID, sid)
	for i, s := range r.order {
		if s == sid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	log.Info().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("sid", string(sid)).Msg("member removed")
}

func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, sid := range r.order {
		if sid == from {
			continue
		}
		if err := r.bySID[sid].Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).
		Str("from", string(from)).Int("sent_to", res.SentTo).
		Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) SendTo(from, to SessionID, data Frame) bool {
	if from == to {
		return false
	}
	r.mu.RLock()
	ms, ok := r.bySID[to]
	r.mu.RUnlock()
	if !ok {
		// Stale peer: the target left between send and delivery.
		log.Debug().Str("module", "core.room").Str("room", string(r.room.ID)).
			Str("from", string(from)).Str("to", string(to)).Msg("relay target gone, dropped")
		return false
	}
	if err := ms.Signal().TrySend(data); err != nil {
		return false
	}
	return true
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.order))
	for _, sid := range r.order {
		m := r.bySID[sid].Meta()
		out = append(out, MemberDTO{
			SessionID: sid,
			ID:        m.User.ID,
			Name:      m.User.Name,
			Role:      m.User.Role,
			VideoOn:   m.VideoOn,
			AudioOn:   m.AudioOn,
		})
	}
	return out
}

func (r *roomImpl) SetRecording(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = on
}

func (r *roomImpl) SetScreenShare(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screenSharing = on
}

func (r *roomImpl) RaiseHand(uid domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handsRaised[uid] = struct{}{}
}

func (r *roomImpl) LowerHand(uid domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handsRaised, uid)
}

func (r *roomImpl) Flags() RoomFlags {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hands := make([]domain.UserID, 0, len(r.handsRaised))
	for uid := range r.handsRaised {
		hands = append(hands, uid)
	}
	return RoomFlags{
		Recording:     r.recording,
		ScreenSharing: r.screenSharing,
		HandsRaised:   hands,
	}
}
