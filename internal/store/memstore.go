package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/rexlx/chaps/internal/model"
)

// MemStore is an in-memory Store used by tests that don't need a real
// Postgres instance. It implements the exact same narrow query vocabulary
// as PostgresStore so dispatch/registry logic is exercised identically.
type MemStore struct {
	mu       sync.Mutex
	users    map[string]model.User
	rooms    map[string]model.Room
	belong   map[string]map[string]bool
	messages []model.Message
}

// NewMemStore returns an empty, ready-to-use MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		users:  make(map[string]model.User),
		rooms:  make(map[string]model.Room),
		belong: make(map[string]map[string]bool),
	}
}

func (m *MemStore) CreateTables() error { return nil }
func (m *MemStore) Close() error        { return nil }

func (m *MemStore) UserExists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[name]
	return ok, nil
}

func (m *MemStore) FetchUserPassword(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[name].PasswordHash, nil
}

func (m *MemStore) FetchUserState(name string) (model.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return "", nil
	}
	return u.State, nil
}

func (m *MemStore) FetchUser(name string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return model.User{}, fmt.Errorf("store: user %q not found", name)
	}
	cp := u
	cp.PendingRooms = append([]string(nil), u.PendingRooms...)
	return cp, nil
}

func (m *MemStore) InsertUser(u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Name]; ok {
		return fmt.Errorf("store: user %q already exists", u.Name)
	}
	m.users[u.Name] = u
	return nil
}

func (m *MemStore) UpdateUserIP(name, ip string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return fmt.Errorf("store: user %q not found", name)
	}
	u.IP = ip
	m.users[name] = u
	return nil
}

func (m *MemStore) UpdatePendingRooms(name string, pendingRooms []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return fmt.Errorf("store: user %q not found", name)
	}
	u.PendingRooms = append([]string(nil), pendingRooms...)
	m.users[name] = u
	return nil
}

func (m *MemStore) UpdateModeration(scope ModerationScope, state model.State, reason string, timeout time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, u := range m.users {
		if scope.IsIP() {
			if u.IP != scope.IP {
				continue
			}
		} else if name != scope.Name {
			continue
		}
		u.State = state
		u.Reason = reason
		u.Timeout = timeout
		m.users[name] = u
	}
	return nil
}

func (m *MemStore) FetchModerated(scope ModerationScope) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for name, u := range m.users {
		if scope.IsIP() {
			if u.IP == scope.IP {
				names = append(names, name)
			}
		} else if name == scope.Name {
			names = append(names, name)
		}
	}
	return names, nil
}

func (m *MemStore) GetRooms() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, r := range m.rooms {
		if r.Type == model.RoomPublic {
			names = append(names, r.Name)
		}
	}
	return names, nil
}

func (m *MemStore) RoomExists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[name]
	return ok, nil
}

func (m *MemStore) InsertRoom(name string, t model.RoomType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[name]; ok {
		return nil
	}
	m.rooms[name] = model.Room{Name: name, Type: t}
	return nil
}

func (m *MemStore) InsertMembership(user, room string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.belong[room] == nil {
		m.belong[room] = make(map[string]bool)
	}
	m.belong[room][user] = true
	return nil
}

func (m *MemStore) FetchMembership(user string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rooms []string
	for room, users := range m.belong {
		if users[user] {
			rooms = append(rooms, room)
		}
	}
	return rooms, nil
}

func (m *MemStore) MembershipExists(user, room string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.belong[room][user], nil
}

func (m *MemStore) InsertMessage(msg model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemStore) FetchMessagesSince(since time.Time) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Message
	for _, msg := range m.messages {
		if !msg.DateMessage.Before(since) {
			out = append(out, msg)
		}
	}
	return out, nil
}

var _ Store = (*MemStore)(nil)
