package domain

import (
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "teacher", want: RoleTeacher},
		{in: "student", want: RoleStudent},
		{in: "parent", want: RoleParent},
		{in: "admin", wantErr: true},
		{in: "", wantErr: true},
		{in: "Teacher", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewUser(t *testing.T) {
	tests := []struct {
		name    string
		id      UserID
		display string
		role    Role
		wantErr error
	}{
		{name: "ok", id: "u1", display: "Anna", role: RoleStudent},
		{name: "empty name", id: "u1", display: "", role: RoleStudent, wantErr: ErrNameEmpty},
		{name: "long name", id: "u1", display: strings.Repeat("x", MaxDisplayNameLen+1), role: RoleStudent, wantErr: ErrNameTooLong},
		{name: "bad role", id: "u1", display: "Anna", role: "admin", wantErr: ErrBadRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NewUser(tt.id, tt.display, tt.role)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("NewUser() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewUser() error = %v", err)
			}
			if u.ID != tt.id || u.Name != tt.display || u.Role != tt.role {
				t.Errorf("NewUser() = %+v", u)
			}
		})
	}
}
