package core

import "github.com/klynov/lectern/internal/domain"

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
// Media flags are included so a late joiner can render the current
// camera/mic state of everyone already in the room.
type MemberDTO struct {
	SessionID SessionID     `json:"session_id"`
	ID        domain.UserID `json:"id"`
	Name      string        `json:"name"`
	Role      domain.Role   `json:"role"`
	VideoOn   bool          `json:"video_on"`
	AudioOn   bool          `json:"audio_on"`
}

// RoomFlags is a snapshot of room-level control state.
type RoomFlags struct {
	Recording     bool            `json:"recording"`
	ScreenSharing bool            `json:"screen_sharing"`
	HandsRaised   []domain.UserID `json:"hands_raised"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	Owner() SessionID
	IsOwner(sid SessionID) bool

	MemberCount() int
	HasMember(sid SessionID) bool
	MembersSnapshot() []MemberDTO

	// AddMember is idempotent; re-adding an existing sid keeps its
	// original position in delivery order.
	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)

	// Broadcast enqueues data to every member except from, in
	// registration order. It never blocks on a slow member.
	Broadcast(from SessionID, data Frame) PublishResult
	// SendTo delivers data to a single member. A target that is no
	// longer a member is reported as false, never an error.
	SendTo(from, to SessionID, data Frame) bool

	SetRecording(on bool)
	SetScreenShare(on bool)
	RaiseHand(uid domain.UserID)
	LowerHand(uid domain.UserID)
	Flags() RoomFlags
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"member_count"`
	Flags       RoomFlags     `json:"flags"`
}

// RoomManager owns the set of live rooms.
type RoomManager interface {
	// Create registers a new room owned by the given session. Creating
	// an already-live room returns the existing one.
	Create(id domain.RoomID, owner SessionID) RoomService
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	StopRoom(id domain.RoomID)
}
