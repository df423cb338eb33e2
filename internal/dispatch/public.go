package dispatch

import (
	"encoding/json"
	"time"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// handlePublic requires AUTHENTICATED and state=valid. It inserts a
// Message row then broadcasts the relay to every live session subscribed
// to room with state=valid — including the sender, since Broadcast does
// not special-case the originator.
func handlePublic(reg *registry.Registry, sess *session.Session, data []byte) {
	if !sess.LoggedIn() {
		sendError(sess, wire.TypePublic, "not_logged_in")
		return
	}
	if sess.State() != model.StateValid {
		sendError(sess, wire.TypePublic, "not_valid_sender")
		return
	}

	var req wire.PublicRequest
	if err := json.Unmarshal(data, &req); err != nil {
		reg.Logger.Printf("malformed public message from %s: %v", sess.Addr, err)
		return
	}

	msg := model.Message{
		User:        sess.Name(),
		Room:        req.Room,
		DateMessage: time.Now(),
		Body:        req.Message,
	}
	if err := reg.Store.InsertMessage(msg); err != nil {
		sendStorageError(sess, wire.TypePublic, err)
		return
	}

	reg.Stats.Incr("broadcasts")
	reg.Broadcast(req.Room, wire.PublicResponse{
		Type:    wire.TypePublic,
		Room:    req.Room,
		User:    sess.Name(),
		Message: req.Message,
	})
}
