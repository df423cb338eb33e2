package dispatch

import (
	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// handleDisconnect acknowledges the request then transitions the session
// to TERMINATING, which unwinds the receive loop in Serve and lets Run's
// deferred cleanup unregister and close the connection.
func handleDisconnect(reg *registry.Registry, sess *session.Session, data []byte) {
	sess.Send(wire.DisconnectResponse{Type: wire.TypeDisconnect, Status: wire.StatusOK})
	sess.SetPhase(session.PhaseTerminating)
}
