// Package session implements the per-connection Session state machine:
// CONNECTED -> AUTHENTICATED -> TERMINATING/CLOSED, plus moderation
// side-transitions.
package session

import (
	"net"
	"sync"
	"time"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/wire"
)

// Phase names the coarse state of the Session state machine.
type Phase int

const (
	PhaseConnected Phase = iota
	PhaseAuthenticated
	PhaseTerminating
	PhaseClosed
)

// Session is created on accept and owns one client connection: its
// authenticated identity (once established), its subscribed and pending
// rooms, its moderation state, and its receive loop. Mutable fields are
// guarded by mu.
type Session struct {
	Conn    *wire.Conn
	Addr    string
	writeMu sync.Mutex // serializes unsolicited frames against responses

	mu           sync.RWMutex
	name         string
	login        bool
	phase        Phase
	state        model.State
	rooms        []string
	pendingRooms []string
}

// New wraps an accepted net.Conn as a fresh, unauthenticated Session.
func New(nc net.Conn) *Session {
	return &Session{
		Conn:  wire.NewConn(nc),
		Addr:  nc.RemoteAddr().String(),
		phase: PhaseConnected,
		state: model.StateValid,
	}
}

// Name returns the authenticated username, or "" pre-authentication.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// LoggedIn reports whether signin/signup has succeeded for this session.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.login
}

// State returns the in-memory moderation state mirror.
func (s *Session) State() model.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState updates the in-memory moderation state mirror. Called both by
// the session's own handlers (post-signin) and by the registry
// (moderation operations from the admin console).
func (s *Session) SetState(state model.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Phase returns the coarse lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// SetPhase transitions the coarse lifecycle phase.
func (s *Session) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// Rooms returns a snapshot of the subscribed room names.
func (s *Session) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.rooms...)
}

// HasRoom reports whether room is in the subscribed set.
func (s *Session) HasRoom(room string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r == room {
			return true
		}
	}
	return false
}

// PendingRooms returns a snapshot of the pending room requests.
func (s *Session) PendingRooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.pendingRooms...)
}

// Authenticate transitions CONNECTED -> AUTHENTICATED, populating identity
// and initial moderation/room state loaded from storage by the caller.
func (s *Session) Authenticate(name string, state model.State, rooms, pendingRooms []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	s.login = true
	s.phase = PhaseAuthenticated
	s.state = state
	s.rooms = append([]string(nil), rooms...)
	s.pendingRooms = append([]string(nil), pendingRooms...)
}

// AddPendingRoom appends room to the pending set in memory; the caller is
// responsible for persisting the updated CSV.
func (s *Session) AddPendingRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRooms = append(s.pendingRooms, room)
}

// InRoom reports whether room is already a membership (used to reject a
// duplicate pending_room request).
func (s *Session) InRoom(room string) bool {
	return s.HasRoom(room)
}

// InPending reports whether room is already pending.
func (s *Session) InPending(room string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.pendingRooms {
		if r == room {
			return true
		}
	}
	return false
}

// MigratePendingToRoom is the atomic addroom primitive: it removes room
// from pendingRooms and appends it to rooms in a single critical section.
// The caller still owns persisting the new
// pending_rooms CSV and the belong(user, room) row; this method only
// updates the in-memory mirror, and it is always called while holding the
// lock implicitly via its own mu.
func (s *Session) MigratePendingToRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.pendingRooms[:0:0]
	for _, r := range s.pendingRooms {
		if r != room {
			next = append(next, r)
		}
	}
	s.pendingRooms = next
	s.rooms = append(s.rooms, room)
}

// AddRoom appends room directly to the membership set — used when a room
// is joined by a path other than the pending-approval flow (private room
// creation). The caller still owns persisting the belong(user, room) row.
func (s *Session) AddRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r == room {
			return
		}
	}
	s.rooms = append(s.rooms, room)
}

// Send writes a single frame to the client, serialized against any other
// concurrent Send (moderation notices racing a handler's own response).
func (s *Session) Send(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.Conn.WriteMessage(v)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.Conn.Underlying().Close()
}

// SetReadDeadline bounds the next Read so the receive loop can observe
// shutdown flags promptly instead of blocking indefinitely.
func (s *Session) SetReadDeadline(d time.Duration) error {
	return s.Conn.Underlying().SetReadDeadline(time.Now().Add(d))
}
