// Package store is the sole interface through which the rest of the tree
// touches the relational store. Every query is parameterized; callers
// never assemble SQL fragments.
package store

import (
	"time"

	"github.com/rexlx/chaps/internal/model"
)

// ModerationScope selects whether a moderation update targets a single
// account by name or every account last seen from a given IP.
type ModerationScope struct {
	Name string
	IP   string
}

// ByName builds a name-scoped ModerationScope.
func ByName(name string) ModerationScope { return ModerationScope{Name: name} }

// ByIP builds an IP-scoped ModerationScope.
func ByIP(ip string) ModerationScope { return ModerationScope{IP: ip} }

// IsIP reports whether the scope selects by IP rather than by name.
func (s ModerationScope) IsIP() bool { return s.IP != "" }

// Store is the persistence gateway's query vocabulary: every operation the
// rest of the server needs against users, rooms, memberships, and messages.
type Store interface {
	// CreateTables idempotently ensures the logical schema exists.
	CreateTables() error
	Close() error

	UserExists(name string) (bool, error)
	FetchUserPassword(name string) (string, error)
	FetchUserState(name string) (model.State, error)
	FetchUser(name string) (model.User, error)
	InsertUser(u model.User) error
	UpdateUserIP(name, ip string) error
	UpdatePendingRooms(name string, pendingRooms []string) error

	// UpdateModeration applies a new moderation state to every user row
	// matching scope (one row if scope is by name, every row whose last
	// seen ip matches if scope is by IP). timeout is stored whatever the
	// state; the registry passes the zero time for non-kick states.
	UpdateModeration(scope ModerationScope, state model.State, reason string, timeout time.Time) error
	// FetchModerated returns every user name currently matching scope.
	FetchModerated(scope ModerationScope) ([]string, error)

	GetRooms() ([]string, error)
	RoomExists(name string) (bool, error)
	InsertRoom(name string, t model.RoomType) error
	InsertMembership(user, room string) error
	FetchMembership(user string) ([]string, error)
	MembershipExists(user, room string) (bool, error)

	InsertMessage(m model.Message) error
	FetchMessagesSince(since time.Time) ([]model.Message, error)
}
