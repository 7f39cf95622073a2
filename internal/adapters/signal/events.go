package signal

import (
	"github.com/pion/webrtc/v4"

	"github.com/klynov/lectern/internal/core"
	"github.com/klynov/lectern/internal/domain"
)

// Inbound event types. Dispatch in io.go is exhaustive over these.
const (
	evRegister       = "register"
	evJoinRoom       = "join_room"
	evLeaveRoom      = "leave_room"
	evOffer          = "webrtc_offer"
	evAnswer         = "webrtc_answer"
	evICECandidate   = "webrtc_ice_candidate"
	evToggleVideo    = "toggle_video"
	evToggleAudio    = "toggle_audio"
	evRaiseHand      = "raise_hand"
	evLowerHand      = "lower_hand"
	evChatMessage    = "chat_message"
	evStartScreen    = "start_screen_share"
	evStopScreen     = "stop_screen_share"
	evRecordingStart = "recording_started"
	evRecordingStop  = "recording_stopped"
	evPing           = "ping"
)

// Outbound-only event types.
const (
	evRegistered      = "registered"
	evRoomState       = "room_state"
	evParticipantJoin = "participant_joined"
	evParticipantLeft = "participant_left"
	evMeetingEnded    = "meeting_ended"
	evError           = "error"
	evWarning         = "warning"
	evPong            = "pong"
)

type registerPayload struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

type joinPayload struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type offerPayload struct {
	Type   string                    `json:"type"`
	Target core.SessionID            `json:"target"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

type answerPayload struct {
	Type   string                    `json:"type"`
	Target core.SessionID            `json:"target"`
	Answer webrtc.SessionDescription `json:"answer"`
}

type candidatePayload struct {
	Type      string                  `json:"type"`
	Target    core.SessionID          `json:"target"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type togglePayload struct {
	Type  string `json:"type"`
	State bool   `json:"state"`
}

type chatPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// relayEvent wraps a directed handshake payload with sender identity so
// the receiving peer knows whom to answer. The SDP/candidate body is
// forwarded untouched.
type relayEvent struct {
	Type      string                     `json:"type"`
	RoomID    domain.RoomID              `json:"room_id"`
	From      core.SessionID             `json:"from"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// roomEvent is the common broadcast shape: everything a roommate hears
// is tagged with the room and the sender.
type roomEvent struct {
	Type      string        `json:"type"`
	RoomID    domain.RoomID `json:"room_id"`
	UserID    domain.UserID `json:"user_id"`
	UserName  string        `json:"user_name,omitempty"`
	State     bool          `json:"state,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp int64         `json:"timestamp,omitempty"`
}

type roomStateEvent struct {
	Type    string           `json:"type"`
	RoomID  domain.RoomID    `json:"room_id"`
	Members []core.MemberDTO `json:"members"`
	Flags   core.RoomFlags   `json:"flags"`
}

type participantEvent struct {
	Type   string         `json:"type"`
	RoomID domain.RoomID  `json:"room_id"`
	User   *domain.User   `json:"user"`
	SID    core.SessionID `json:"session_id,omitempty"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// warningEvent reports that a request was a no-op: the room is already
// in the desired state. Clients must not render it as a failure.
type warningEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
