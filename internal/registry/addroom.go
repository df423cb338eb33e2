package registry

import (
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// AcceptPending is the atomic pending-room-to-membership primitive: it
// migrates room from sess's pending set to its membership set, persisting
// both the updated pending_rooms CSV and the new belong(user, room) row
// before notifying the client. The in-memory migration happens in one
// critical section under the session's own lock (MigratePendingToRoom), so
// the in-memory pending and membership sets never both hold room; the two
// persistence writes follow, in this order, outside that lock.
func (r *Registry) AcceptPending(sess *session.Session, room string) error {
	sess.MigratePendingToRoom(room)

	if err := r.Store.UpdatePendingRooms(sess.Name(), sess.PendingRooms()); err != nil {
		return err
	}
	if err := r.Store.InsertMembership(sess.Name(), room); err != nil {
		return err
	}

	return sess.Send(wire.PendingRoomResponse{
		Type:   wire.TypePendingRoom,
		Status: wire.StatusOK,
		Room:   room,
	})
}
