// Package registry implements the server registry: the process singleton
// owning the listening socket, the live Session set, the public room name
// set, and the persistence gateway handle.
package registry

import (
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/session"
	"github.com/rexlx/chaps/internal/store"
)

// ConnHandler runs a Session's receive loop. It is supplied by the caller
// (normally internal/dispatch.Serve, wired in by cmd/server) so that this
// package never has to import the dispatcher — registry owns Sessions,
// dispatch decides what to do with their frames.
type ConnHandler func(*Registry, *session.Session)

// Registry is the in-memory singleton holding live Sessions, public room
// names, and a Store handle, guarded against concurrent mutation by
// network goroutines and the admin console.
type Registry struct {
	Address     string
	DefaultRoom string
	Logger      *log.Logger
	Store       store.Store
	Stats       *model.Stats
	Handler     ConnHandler

	mu          sync.Mutex
	sessions    map[*session.Session]struct{}
	rooms       map[string]bool
	listener    net.Listener
	stopServer  bool
	stopClients bool
}

// New builds a Registry bound to address, with store as its persistence
// handle. The listener is not opened until Run is called.
func New(address, defaultRoom string, logger *log.Logger, st store.Store) *Registry {
	return &Registry{
		Address:     address,
		DefaultRoom: defaultRoom,
		Logger:      logger,
		Store:       st,
		Stats:       model.NewStats(),
		sessions:    make(map[*session.Session]struct{}),
		rooms:       make(map[string]bool),
	}
}

// LoadRooms seeds the in-memory public room set from storage, normally
// called once at startup before Run.
func (r *Registry) LoadRooms() error {
	names, err := r.Store.GetRooms()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range names {
		r.rooms[n] = true
	}
	return nil
}

// Run binds the listener, then loops accepting connections and dispatching
// each to a fresh Session + goroutine running Handler, until Close is
// called. It returns when the listener is closed.
func (r *Registry) Run() error {
	ln, err := net.Listen("tcp", r.Address)
	if err != nil {
		return fmt.Errorf("registry: listen: %w", err)
	}
	r.mu.Lock()
	r.listener = ln
	r.mu.Unlock()

	r.Logger.Printf("listening on %s", r.Address)

	for {
		conn, err := ln.Accept()
		if err != nil {
			r.mu.Lock()
			stopping := r.stopServer
			r.mu.Unlock()
			if stopping {
				return nil
			}
			r.Logger.Printf("accept error: %v", err)
			continue
		}

		sess := session.New(conn)
		r.register(sess)

		go func() {
			defer r.unregister(sess)
			defer sess.Close()
			if r.Handler != nil {
				r.Handler(r, sess)
			}
		}()
	}
}

// ListenAddr returns the bound listener's address, or "" before Run has
// bound it. Callers that listen on an ephemeral port (":0") use this to
// discover the actual port.
func (r *Registry) ListenAddr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// register inserts sess into the live set exactly once. This is the only
// insertion point, deliberately: a Session must never be live in two
// places at once.
func (r *Registry) register(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess] = struct{}{}
}

func (r *Registry) unregister(sess *session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sess)
}

// StoppingClients reports whether the registry has asked every Session's
// receive loop to wind down (polled once per receive-loop iteration).
func (r *Registry) StoppingClients() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopClients
}

// Close sets the shutdown flags, closes the listener (which unblocks the
// pending Accept immediately since a concurrent Accept returns an error
// once its listener is closed), and disposes the persistence gateway. Live
// sessions drain as their loops observe StoppingClients or hit read errors
// on their now-closing sockets.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.stopServer = true
	r.stopClients = true
	ln := r.listener
	sessions := make([]*session.Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if ln != nil {
		if err := ln.Close(); err != nil {
			return err
		}
	}
	return r.Store.Close()
}

// AddRoom inserts a public room both in storage and the in-memory set
// (admin `add room` command).
func (r *Registry) AddRoom(name string) error {
	if err := r.Store.InsertRoom(name, model.RoomPublic); err != nil {
		return err
	}
	r.mu.Lock()
	r.rooms[name] = true
	r.mu.Unlock()
	return nil
}

// Rooms returns a snapshot of the known public room names.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.rooms))
	for n := range r.rooms {
		names = append(names, n)
	}
	return names
}

// Sessions returns a snapshot of the live Session set.
func (r *Registry) Sessions() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// FindByName returns the live Session authenticated as name, if any.
func (r *Registry) FindByName(name string) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.sessions {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Broadcast is the fan-out primitive: it delivers frame to every live
// session whose rooms contain room and whose state is valid, best-effort —
// a write error is logged and does not abort delivery to the remaining
// peers.
func (r *Registry) Broadcast(room string, frame interface{}) {
	for _, s := range r.Sessions() {
		if !s.HasRoom(room) || s.State() != model.StateValid {
			continue
		}
		if err := s.Send(frame); err != nil {
			r.Logger.Printf("broadcast to %s failed: %v", s.Addr, err)
		}
	}
}
