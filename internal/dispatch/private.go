package dispatch

import (
	"encoding/json"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// handlePrivate requires AUTHENTICATED and state=valid. It resolves the
// recipient among live sessions, derives the deterministic private room
// name, creates the room and both memberships if absent, and replies ok.
// It does not relay the initiating message body; subsequent traffic flows
// as "public" frames targeting the private room.
func handlePrivate(reg *registry.Registry, sess *session.Session, data []byte) {
	if !sess.LoggedIn() {
		sendError(sess, wire.TypePrivate, "not_logged_in")
		return
	}
	if sess.State() != model.StateValid {
		sendError(sess, wire.TypePrivate, "not_valid_sender")
		return
	}

	var req wire.PrivateRequest
	if err := json.Unmarshal(data, &req); err != nil {
		reg.Logger.Printf("malformed private message from %s: %v", sess.Addr, err)
		return
	}

	recipient, ok := reg.FindByName(req.To)
	if !ok {
		sendError(sess, wire.TypePrivate, "recipient_not_found")
		return
	}

	room := model.PrivateRoomName(sess.Name(), recipient.Name())

	exists, err := reg.Store.RoomExists(room)
	if err != nil {
		sendStorageError(sess, wire.TypePrivate, err)
		return
	}
	if !exists {
		if err := reg.Store.InsertRoom(room, model.RoomPrivate); err != nil {
			sendStorageError(sess, wire.TypePrivate, err)
			return
		}
	}

	if err := ensureMembership(reg, sess, room); err != nil {
		sendStorageError(sess, wire.TypePrivate, err)
		return
	}
	if err := ensureMembership(reg, recipient, room); err != nil {
		sendStorageError(sess, wire.TypePrivate, err)
		return
	}

	sess.Send(wire.PrivateResponse{Type: wire.TypePrivate, Status: wire.StatusOK})
}

// ensureMembership adds room to sess's membership, persisting the
// belong(user, room) row only the first time.
func ensureMembership(reg *registry.Registry, sess *session.Session, room string) error {
	if sess.HasRoom(room) {
		return nil
	}
	if err := reg.Store.InsertMembership(sess.Name(), room); err != nil {
		return err
	}
	sess.AddRoom(room)
	return nil
}
