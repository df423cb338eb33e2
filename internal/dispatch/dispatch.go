// Package dispatch tag-dispatches a decoded request to the correct
// handler, and owns the Session's receive loop since the loop's only job
// is to read a frame and hand it to this package.
package dispatch

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/wire"
)

// readTimeout bounds each socket read so the loop observes
// Registry.StoppingClients promptly instead of blocking indefinitely on an
// idle connection.
const readTimeout = time.Second

// Serve is the Session's receive loop, wired in as registry.ConnHandler by
// cmd/server. It terminates on peer close, socket error, the registry's
// stop-clients flag, or after a disconnect/kick/ban terminal response.
func Serve(reg *registry.Registry, sess *session.Session) {
	for {
		if reg.StoppingClients() {
			return
		}
		if err := sess.SetReadDeadline(readTimeout); err != nil {
			return
		}

		raw, err := sess.Conn.ReadRaw()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			if errors.Is(err, wire.ErrClosed) {
				return
			}
			var jsonErr *json.SyntaxError
			if errors.As(err, &jsonErr) {
				reg.Logger.Printf("protocol error from %s: %v", sess.Addr, err)
				continue
			}
			reg.Logger.Printf("connection error from %s: %v", sess.Addr, err)
			return
		}

		typ, _ := raw["type"].(string)
		dispatchOne(reg, sess, wire.Type(typ), raw)

		if sess.Phase() == session.PhaseTerminating {
			return
		}
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// dispatchOne is the fixed tag table over the closed set of request types.
// Unknown type is logged and dropped; the session stays open.
func dispatchOne(reg *registry.Registry, sess *session.Session, typ wire.Type, raw map[string]interface{}) {
	data, err := json.Marshal(raw)
	if err != nil {
		reg.Logger.Printf("re-encode error from %s: %v", sess.Addr, err)
		return
	}

	switch typ {
	case wire.TypeSignup:
		handleSignup(reg, sess, data)
	case wire.TypeSignin:
		handleSignin(reg, sess, data)
	case wire.TypeDisconnect:
		handleDisconnect(reg, sess, data)
	case wire.TypePendingRoom:
		handlePendingRoom(reg, sess, data)
	case wire.TypePublic:
		handlePublic(reg, sess, data)
	case wire.TypePrivate:
		handlePrivate(reg, sess, data)
	default:
		reg.Logger.Printf("unknown message type %q from %s", typ, sess.Addr)
	}
}
