package registry

import (
	"fmt"
	"time"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/store"
	"github.com/rexlx/chaps/internal/wire"
)

// formatTimeout renders an absolute expiry for kick notices as
// "YYYY-MM-DD HH:MM:SS".
func formatTimeout(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// notifyModerated pushes an unsolicited frame to every live session that
// matches scope, updating each session's in-memory state mirror first.
func (r *Registry) notifyModerated(scope store.ModerationScope, state model.State, frame interface{}) {
	for _, s := range r.Sessions() {
		match := false
		if scope.IsIP() {
			match = s.Addr != "" && ipOf(s.Addr) == scope.IP
		} else {
			match = s.Name() == scope.Name
		}
		if !match {
			continue
		}
		s.SetState(state)
		if err := s.Send(frame); err != nil {
			r.Logger.Printf("moderation notice to %s failed: %v", s.Addr, err)
		}
	}
}

// ipOf strips the port off a "host:port" remote address.
func ipOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

// KickUser kicks name until timeout, with reason, verifying the user
// exists first.
func (r *Registry) KickUser(name string, timeout time.Time, reason string) error {
	exists, err := r.Store.UserExists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("registry: user %q does not exist", name)
	}
	scope := store.ByName(name)
	if err := r.Store.UpdateModeration(scope, model.StateKick, reason, timeout); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateKick, wire.ModerationNotice{
		Type: wire.TypeKick, Timeout: formatTimeout(timeout), Reason: reason,
	})
	return nil
}

// KickIP kicks every account last seen from ip until timeout, with reason.
// The ip is additionally recorded as the "<ip>:reason" prefix so the
// persisted reason still carries the originating address.
func (r *Registry) KickIP(ip string, timeout time.Time, reason string) error {
	scope := store.ByIP(ip)
	prefixed := ip + ":" + reason
	if err := r.Store.UpdateModeration(scope, model.StateKickIP, prefixed, timeout); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateKickIP, wire.ModerationNotice{
		Type: wire.TypeKickIP, Timeout: formatTimeout(timeout), Reason: reason,
	})
	return nil
}

// BanUser permanently bans name with reason.
func (r *Registry) BanUser(name, reason string) error {
	exists, err := r.Store.UserExists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("registry: user %q does not exist", name)
	}
	scope := store.ByName(name)
	if err := r.Store.UpdateModeration(scope, model.StateBan, reason, time.Time{}); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateBan, wire.ModerationNotice{Type: wire.TypeBan, Reason: reason})
	return nil
}

// BanIP permanently bans every account last seen from ip.
func (r *Registry) BanIP(ip, reason string) error {
	scope := store.ByIP(ip)
	prefixed := ip + ":" + reason
	if err := r.Store.UpdateModeration(scope, model.StateBanIP, prefixed, time.Time{}); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateBanIP, wire.ModerationNotice{Type: wire.TypeBanIP, Reason: reason})
	return nil
}

// UnkickUser reverts name to valid, clearing reason and timeout.
func (r *Registry) UnkickUser(name string) error {
	scope := store.ByName(name)
	if err := r.Store.UpdateModeration(scope, model.StateValid, "", time.Time{}); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateValid, wire.ModerationNotice{Type: wire.TypeUnkick})
	return nil
}

// UnkickIP reverts every account last seen from ip to valid.
func (r *Registry) UnkickIP(ip string) error {
	scope := store.ByIP(ip)
	if err := r.Store.UpdateModeration(scope, model.StateValid, "", time.Time{}); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateValid, wire.ModerationNotice{Type: wire.TypeUnkickIP})
	return nil
}

// UnbanUser reverts name to valid, clearing reason.
func (r *Registry) UnbanUser(name string) error {
	scope := store.ByName(name)
	if err := r.Store.UpdateModeration(scope, model.StateValid, "", time.Time{}); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateValid, wire.ModerationNotice{Type: wire.TypeUnban})
	return nil
}

// UnbanIP reverts every account last seen from ip to valid.
func (r *Registry) UnbanIP(ip string) error {
	scope := store.ByIP(ip)
	if err := r.Store.UpdateModeration(scope, model.StateValid, "", time.Time{}); err != nil {
		return err
	}
	r.notifyModerated(scope, model.StateValid, wire.ModerationNotice{Type: wire.TypeUnbanIP})
	return nil
}

// ClearExpiredKick promotes name back to valid without sending a
// notification frame, used by the signin handler when a kick's timeout
// has already elapsed: the session isn't authenticated yet, so there's no
// live peer to notify, just the persisted row to fix up.
func (r *Registry) ClearExpiredKick(name string) error {
	return r.Store.UpdateModeration(store.ByName(name), model.StateValid, "", time.Time{})
}

// Kill sends a kill frame to the named live session; the client is
// expected to close on receipt.
func (r *Registry) Kill(name, reason string) error {
	sess, ok := r.FindByName(name)
	if !ok {
		return fmt.Errorf("registry: user %q is not connected", name)
	}
	return sess.Send(wire.ModerationNotice{Type: wire.TypeKill, Reason: reason})
}
