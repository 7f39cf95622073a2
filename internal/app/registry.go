package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/core"
	"github.com/klynov/lectern/internal/domain"
)

type connEntry struct {
	User     *domain.User
	RoomID   domain.RoomID
	Session  core.MemberSession
	Cancel   context.CancelFunc
	LastSeen time.Time
}

// Registry maps transport sessions to identities and liveness.
// Room membership itself lives in core; the registry only remembers
// which room a session is in so cleanup can find it.
type Registry struct {
	mu      sync.RWMutex
	entries map[core.SessionID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[core.SessionID]*connEntry)}
}

// Register binds an identity to a transport session. Re-registering the
// same session with the same user id is idempotent; with a different
// user id it is rejected.
func (r *Registry) Register(sid core.SessionID, u *domain.User, sess core.MemberSession, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok {
		if e.User.ID == u.ID {
			e.LastSeen = time.Now()
			return nil
		}
		return domain.ErrDuplicateConnection
	}
	r.entries[sid] = &connEntry{
		User:     u,
		Session:  sess,
		Cancel:   cancel,
		LastSeen: time.Now(),
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).
		Str("user", string(u.ID)).Str("role", string(u.Role)).Msg("registered connection")
	return nil
}

// Unregister removes the session. Unknown sids are a no-op.
func (r *Registry) Unregister(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered connection")
}

func (r *Registry) Lookup(sid core.SessionID) (*domain.User, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil, nil, false
	}
	return e.User, e.Session, true
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[sid]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

func (r *Registry) UpdateRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return false
	}
	e.RoomID = room
	return true
}

func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok {
		e.RoomID = ""
	}
}

// Touch records heartbeat activity for the reaper.
func (r *Registry) Touch(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[sid]; ok {
		e.LastSeen = time.Now()
	}
}

// Stale returns sessions silent for longer than maxAge.
func (r *Registry) Stale(maxAge time.Duration) []core.SessionID {
	cutoff := time.Now().Add(-maxAge)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.SessionID
	for sid, e := range r.entries {
		if e.LastSeen.Before(cutoff) {
			out = append(out, sid)
		}
	}
	return out
}

// Cancel tears down the session's transport context. The adapter's read
// loop observes the cancellation and runs its normal disconnect path.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.entries[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
