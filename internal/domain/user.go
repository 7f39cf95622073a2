// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen      = 64
	MaxDisplayNameLen = 64
)

var (
	ErrNameTooLong = errors.New("display name too long")
	ErrNameEmpty   = errors.New("display name empty")
	ErrBadRole     = errors.New("unknown role")
)

type UserID string

// Role is the declared participant role. Only a teacher may own a room.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleParent  Role = "parent"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleTeacher, RoleStudent, RoleParent:
		return Role(s), nil
	}
	return "", ErrBadRole
}

type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, name string, role Role) (*User, error) {
	if len(id) == 0 || len(id) > MaxUserIDLen {
		return nil, errors.New("bad user id")
	}
	if len(name) == 0 {
		return nil, ErrNameEmpty
	}
	if len(name) > MaxDisplayNameLen {
		return nil, ErrNameTooLong
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	return &User{ID: id, Name: name, Role: role}, nil
}
