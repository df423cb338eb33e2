package model

import "sort"

// RoomType distinguishes operator-gated public rooms from implicitly
// created two-party private rooms.
type RoomType string

const (
	RoomPublic  RoomType = "public"
	RoomPrivate RoomType = "private"
)

// Room is the persisted room row.
type Room struct {
	Name string
	Type RoomType
}

// PrivateRoomName derives the deterministic name of the two-party private
// room between a and b: the lexicographically sorted concatenation of
// both names. Either party initiating recovers the same room.
func PrivateRoomName(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + pair[1]
}
