package dispatch

import (
	"encoding/json"

	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// handlePendingRoom requires AUTHENTICATED. It rejects unknown rooms and
// rooms already joined, otherwise appends to pending_rooms and persists.
// There is no ok response here by design: the client learns the request
// was granted later, via the pending_room/status=ok frame AcceptPending
// sends at operator acceptance.
func handlePendingRoom(reg *registry.Registry, sess *session.Session, data []byte) {
	if !sess.LoggedIn() {
		sendError(sess, wire.TypePendingRoom, "not_logged_in")
		return
	}

	var req wire.PendingRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		reg.Logger.Printf("malformed pending_room from %s: %v", sess.Addr, err)
		return
	}

	exists, err := reg.Store.RoomExists(req.Room)
	if err != nil {
		sendStorageError(sess, wire.TypePendingRoom, err)
		return
	}
	if !exists {
		sendError(sess, wire.TypePendingRoom, "room_does_not_exist")
		return
	}
	if sess.InRoom(req.Room) {
		sendError(sess, wire.TypePendingRoom, "already_in_room")
		return
	}
	if sess.InPending(req.Room) {
		return
	}

	sess.AddPendingRoom(req.Room)
	if err := reg.Store.UpdatePendingRooms(sess.Name(), sess.PendingRooms()); err != nil {
		sendStorageError(sess, wire.TypePendingRoom, err)
		return
	}
}
