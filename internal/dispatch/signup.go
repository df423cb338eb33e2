package dispatch

import (
	"encoding/json"
	"time"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// handleSignup creates a new user with a freshly-salted password hash,
// records the peer ip, transitions the session to AUTHENTICATED, auto-joins
// the configured default public room, and replies ok — or an error on name
// collision or storage failure.
func handleSignup(reg *registry.Registry, sess *session.Session, data []byte) {
	var req wire.SignupRequest
	if err := json.Unmarshal(data, &req); err != nil {
		reg.Logger.Printf("malformed signup from %s: %v", sess.Addr, err)
		return
	}

	exists, err := reg.Store.UserExists(req.Username)
	if err != nil {
		sendStorageError(sess, wire.TypeSignup, err)
		return
	}
	if exists {
		sendError(sess, wire.TypeSignup, "username_already_used")
		return
	}

	u := model.User{
		Name:         req.Username,
		IP:           ipOf(sess.Addr),
		State:        model.StateValid,
		DateCreation: time.Now(),
	}
	if err := u.SetPassword(req.Password); err != nil {
		sendStorageError(sess, wire.TypeSignup, err)
		return
	}
	if err := reg.Store.InsertUser(u); err != nil {
		// A concurrent signup may have claimed the name between the
		// existence check above and this insert.
		if taken, _ := reg.Store.UserExists(req.Username); taken {
			sendError(sess, wire.TypeSignup, "username_already_used")
			return
		}
		sendStorageError(sess, wire.TypeSignup, err)
		return
	}
	if err := reg.Store.InsertMembership(u.Name, reg.DefaultRoom); err != nil {
		sendStorageError(sess, wire.TypeSignup, err)
		return
	}

	sess.Authenticate(u.Name, model.StateValid, []string{reg.DefaultRoom}, nil)
	reg.Stats.Incr("signups")

	sess.Send(wire.AuthResponse{Type: wire.TypeSignup, Status: wire.StatusOK})
}
