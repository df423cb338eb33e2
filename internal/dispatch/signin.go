package dispatch

import (
	"encoding/json"
	"time"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// handleSignin verifies the password against the stored hash, then
// branches on the persisted moderation state: valid -> ok; kick/kick_ip
// with an elapsed timeout -> promoted to valid and treated as ok;
// kick/kick_ip still active -> status=kick then close; ban/ban_ip ->
// status=ban then close.
func handleSignin(reg *registry.Registry, sess *session.Session, data []byte) {
	var req wire.SigninRequest
	if err := json.Unmarshal(data, &req); err != nil {
		reg.Logger.Printf("malformed signin from %s: %v", sess.Addr, err)
		return
	}

	exists, err := reg.Store.UserExists(req.Username)
	if err != nil {
		sendStorageError(sess, wire.TypeSignin, err)
		return
	}
	if !exists {
		sendError(sess, wire.TypeSignin, "incorrect_username")
		return
	}

	hash, err := reg.Store.FetchUserPassword(req.Username)
	if err != nil {
		sendStorageError(sess, wire.TypeSignin, err)
		return
	}
	ok, err := model.PasswordMatches(hash, req.Password)
	if err != nil {
		sendStorageError(sess, wire.TypeSignin, err)
		return
	}
	if !ok {
		sendError(sess, wire.TypeSignin, "incorrect_password")
		return
	}

	u, err := reg.Store.FetchUser(req.Username)
	if err != nil {
		sendStorageError(sess, wire.TypeSignin, err)
		return
	}

	state := u.State
	if state.IsKick() && !u.Timeout.IsZero() && !time.Now().Before(u.Timeout) {
		if err := reg.ClearExpiredKick(req.Username); err != nil {
			sendStorageError(sess, wire.TypeSignin, err)
			return
		}
		state = model.StateValid
	}

	if err := reg.Store.UpdateUserIP(req.Username, ipOf(sess.Addr)); err != nil {
		sendStorageError(sess, wire.TypeSignin, err)
		return
	}

	switch {
	case state == model.StateValid:
		rooms, err := reg.Store.FetchMembership(req.Username)
		if err != nil {
			sendStorageError(sess, wire.TypeSignin, err)
			return
		}
		sess.Authenticate(req.Username, model.StateValid, rooms, u.PendingRooms)
		reg.Stats.Incr("logins")
		sess.Send(wire.AuthResponse{
			Type:     wire.TypeSignin,
			Status:   wire.StatusOK,
			AllRooms: reg.Rooms(),
			Rooms:    rooms,
		})

	case state.IsKick():
		sess.Send(wire.AuthResponse{
			Type:    wire.TypeSignin,
			Status:  wire.StatusKick,
			Timeout: formatTimeout(u.Timeout),
			Reason:  u.Reason,
		})
		sess.SetPhase(session.PhaseTerminating)

	case state.IsBan():
		sess.Send(wire.AuthResponse{
			Type:   wire.TypeSignin,
			Status: wire.StatusBan,
			Reason: u.Reason,
		})
		sess.SetPhase(session.PhaseTerminating)
	}
}
