package dispatch

import (
	"time"

	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// ipOf strips the port off a "host:port" remote address.
func ipOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

// formatTimeout renders an absolute expiry as "YYYY-MM-DD HH:MM:SS".
func formatTimeout(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// sendError writes a status=error response of typ with reason, the shape
// every authorisation/authentication error takes.
func sendError(sess *session.Session, typ wire.Type, reason string) {
	sess.Send(wire.AuthResponse{Type: typ, Status: wire.StatusError, Reason: reason})
}

// sendStorageError is sendError specialised for a bubbled-up storage
// failure: the underlying reason is reported to the client, but the
// session is not terminated.
func sendStorageError(sess *session.Session, typ wire.Type, err error) {
	sendError(sess, typ, err.Error())
}
