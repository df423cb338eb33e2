// Package model holds the persisted domain shapes shared by the store,
// session, registry, and dispatch packages.
package model

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// State is the moderation state attached to a User row.
type State string

const (
	StateValid  State = "valid"
	StateKick   State = "kick"
	StateKickIP State = "kick_ip"
	StateBan    State = "ban"
	StateBanIP  State = "ban_ip"
)

// User is the persisted account row. Password is never stored in clear;
// SetPassword/PasswordMatches are the only ways to write or check it.
type User struct {
	Name         string
	PasswordHash string
	IP           string
	State        State
	Reason       string
	Timeout      time.Time
	DateCreation time.Time
	PendingRooms []string
}

// SetPassword hashes input with bcrypt and stores the result.
func (u *User) SetPassword(input string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(input), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// PasswordMatches compares input against the stored hash in constant time.
func PasswordMatches(hash, input string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(input))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, err
}

// PendingRoomsCSV joins PendingRooms the way the persisted column stores
// them: a comma-joined string.
func (u *User) PendingRoomsCSV() string {
	return strings.Join(u.PendingRooms, ",")
}

// ParsePendingRooms splits a persisted comma-joined pending_rooms column
// back into a slice, tolerating an empty column.
func ParsePendingRooms(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

// IsIPScoped reports whether a moderation state applies to an IP address
// rather than to a single account.
func (s State) IsIPScoped() bool {
	return s == StateKickIP || s == StateBanIP
}

// IsKick reports whether a state is one of the two kick variants.
func (s State) IsKick() bool {
	return s == StateKick || s == StateKickIP
}

// IsBan reports whether a state is one of the two ban variants.
func (s State) IsBan() bool {
	return s == StateBan || s == StateBanIP
}
