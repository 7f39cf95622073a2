// Package recording tracks a meeting's capture-to-publish lifecycle.
//
// Client-side recorder teardown is asynchronous and unreliable: a stop
// signal can arrive before the blob does, the blob can be empty, stop
// can fire twice, and storage/pipeline callbacks can arrive after the
// live room is long gone. Every transition is therefore guarded against
// the current state; a signal that does not match a valid transition is
// logged and ignored, never surfaced as an error.
package recording

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/klynov/lectern/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	// StateStoppedWithBlob: the recorder produced data, upload pending.
	StateStoppedWithBlob
	// StateStoppedNoBlob: the recorder yielded nothing. A normal outcome,
	// not a failure; there is just nothing to publish.
	StateStoppedNoBlob
	StateUploading
	StateProcessing
	StatePublished
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateStoppedWithBlob:
		return "stopped"
	case StateStoppedNoBlob:
		return "stopped_empty"
	case StateUploading:
		return "uploading"
	case StateProcessing:
		return "processing"
	case StatePublished:
		return "published"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateStoppedNoBlob, StatePublished, StateFailed, StateAborted:
		return true
	}
	return false
}

type session struct {
	meeting        domain.RoomID
	state          State
	byteSize       int64
	artifactRef    string
	uploadFailures int
	startedAt      time.Time
	stoppedAt      time.Time
}

// Snapshot is a read-only copy of a session for APIs and logs.
type Snapshot struct {
	Meeting     domain.RoomID `json:"meeting_id"`
	State       string        `json:"state"`
	ByteSize    int64         `json:"byte_size"`
	ArtifactRef string        `json:"artifact_ref,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	StoppedAt   time.Time     `json:"stopped_at,omitempty"`
}

// Manager owns every RecordingSession, keyed by meeting id.
type Manager struct {
	mu            sync.Mutex
	sessions      map[domain.RoomID]*session
	uploadRetries int
}

// NewManager creates a manager allowing uploadRetries re-attempts after
// the first failed upload before the session is declared failed.
func NewManager(uploadRetries int) *Manager {
	return &Manager{
		sessions:      make(map[domain.RoomID]*session),
		uploadRetries: uploadRetries,
	}
}

// Start begins a recording for the meeting. Only valid when no live
// session exists; a finished one from an earlier run is replaced.
func (m *Manager) Start(meeting domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[meeting]; ok && !s.state.Terminal() {
		return domain.ErrAlreadyRecording
	}
	m.sessions[meeting] = &session{
		meeting:   meeting,
		state:     StateRecording,
		startedAt: time.Now(),
	}
	log.Info().Str("module", "recording").Str("meeting", string(meeting)).Msg("recording started")
	return nil
}

// Stop requests recording teardown. The first call transitions to
// stopping and returns true; duplicates are absorbed without
// double-firing side effects.
func (m *Manager) Stop(meeting domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok || s.state != StateRecording {
		m.ignore(meeting, s, "stop")
		return false
	}
	s.state = StateStopping
	s.stoppedAt = time.Now()
	log.Info().Str("module", "recording").Str("meeting", string(meeting)).Msg("recording stopping")
	return true
}

// BlobReceived resolves the stopping state once the recorder reports its
// output size. Zero bytes means the recorder failed or captured nothing;
// such a session is closed without any upload attempt.
func (m *Manager) BlobReceived(meeting domain.RoomID, size int64) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok || s.state != StateStopping {
		m.ignore(meeting, s, "blob_received")
		return StateIdle, false
	}
	s.byteSize = size
	if size > 0 {
		s.state = StateStoppedWithBlob
	} else {
		s.state = StateStoppedNoBlob
	}
	log.Info().Str("module", "recording").Str("meeting", string(meeting)).
		Int64("bytes", size).Str("state", s.state.String()).Msg("blob received")
	return s.state, true
}

func (m *Manager) UploadStart(meeting domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok || s.state != StateStoppedWithBlob {
		m.ignore(meeting, s, "upload_start")
		return false
	}
	s.state = StateUploading
	return true
}

func (m *Manager) UploadComplete(meeting domain.RoomID, artifactRef string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok || s.state != StateUploading {
		m.ignore(meeting, s, "upload_complete")
		return false
	}
	s.artifactRef = artifactRef
	s.state = StateProcessing
	log.Info().Str("module", "recording").Str("meeting", string(meeting)).
		Str("artifact", artifactRef).Msg("upload complete, processing")
	return true
}

// UploadFailed records a failed upload attempt. It reports whether
// another attempt may be made; once the retry budget is spent the
// session is failed.
func (m *Manager) UploadFailed(meeting domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok || s.state != StateUploading {
		m.ignore(meeting, s, "upload_failed")
		return false
	}
	s.uploadFailures++
	if s.uploadFailures > m.uploadRetries {
		s.state = StateFailed
		log.Warn().Str("module", "recording").Str("meeting", string(meeting)).
			Int("failures", s.uploadFailures).Msg("upload failed, giving up")
		return false
	}
	s.state = StateStoppedWithBlob
	log.Warn().Str("module", "recording").Str("meeting", string(meeting)).
		Int("failures", s.uploadFailures).Msg("upload failed, will retry")
	return true
}

// ProcessingResult records the external pipeline's outcome. Late results
// for an aborted meeting are absorbed: the artifact is already stored
// and user-owned even though the live room is gone.
func (m *Manager) ProcessingResult(meeting domain.RoomID, success bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok || s.state != StateProcessing {
		m.ignore(meeting, s, "processing_result")
		return false
	}
	if success {
		s.state = StatePublished
	} else {
		s.state = StateFailed
	}
	log.Info().Str("module", "recording").Str("meeting", string(meeting)).
		Bool("success", success).Str("state", s.state.String()).Msg("processing result")
	return true
}

// Abort cancels a live session during room teardown. Sessions already
// uploading or later are left alone: the artifact outlives the room and
// the upload completes or fails on its own.
func (m *Manager) Abort(meeting domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok {
		return false
	}
	switch s.state {
	case StateRecording, StateStopping, StateStoppedWithBlob:
		s.state = StateAborted
		log.Info().Str("module", "recording").Str("meeting", string(meeting)).Msg("recording aborted")
		return true
	}
	return false
}

func (m *Manager) Get(meeting domain.RoomID) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Meeting:     s.meeting,
		State:       s.state.String(),
		ByteSize:    s.byteSize,
		ArtifactRef: s.artifactRef,
		StartedAt:   s.startedAt,
		StoppedAt:   s.stoppedAt,
	}, true
}

// stateOf exposes the raw state for tests in this package.
func (m *Manager) stateOf(meeting domain.RoomID) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[meeting]
	if !ok {
		return StateIdle, false
	}
	return s.state, true
}

func (m *Manager) ignore(meeting domain.RoomID, s *session, signal string) {
	ev := log.Debug().Str("module", "recording").Str("meeting", string(meeting)).Str("signal", signal)
	if s != nil {
		ev = ev.Str("state", s.state.String())
	}
	ev.Msg("signal does not match current state, ignored")
}
