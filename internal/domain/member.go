package domain

// Member represents user's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	User    *User
	VideoOn bool
	AudioOn bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
// Cameras and mics start enabled; clients announce toggles after joining.
func NewMember(user *User) *Member {
	return &Member{User: user, VideoOn: true, AudioOn: true}
}
