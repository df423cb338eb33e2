package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rexlx/chaps/internal/model"
)

// PostgresStore is the Store implementation backed by database/sql and
// github.com/lib/pq, using $N-placeholder parameterized queries throughout.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn and tunes it the
// way database/sql recommends for a long-lived server process.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// CreateTables issues the logical schema idempotently.
func (p *PostgresStore) CreateTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			name TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			ip TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'valid',
			reason TEXT NOT NULL DEFAULT '',
			timeout TIMESTAMPTZ,
			pending_rooms TEXT NOT NULL DEFAULT '',
			date_creation TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			name TEXT PRIMARY KEY,
			type TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS belong (
			user_name TEXT NOT NULL REFERENCES users(name),
			room_name TEXT NOT NULL REFERENCES rooms(name),
			PRIMARY KEY (user_name, room_name)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id SERIAL PRIMARY KEY,
			user_name TEXT NOT NULL,
			room_name TEXT NOT NULL,
			date_message TIMESTAMPTZ NOT NULL,
			body TEXT NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.Exec(s); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) UserExists(name string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) FetchUserPassword(name string) (string, error) {
	var hash string
	err := p.db.QueryRow(`SELECT password FROM users WHERE name = $1`, name).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (p *PostgresStore) FetchUserState(name string) (model.State, error) {
	var s string
	err := p.db.QueryRow(`SELECT state FROM users WHERE name = $1`, name).Scan(&s)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return model.State(s), err
}

func (p *PostgresStore) FetchUser(name string) (model.User, error) {
	var u model.User
	var timeout sql.NullTime
	var pendingCSV string
	err := p.db.QueryRow(`SELECT name, password, ip, state, reason, timeout, pending_rooms, date_creation
		FROM users WHERE name = $1`, name).Scan(
		&u.Name, &u.PasswordHash, &u.IP, &u.State, &u.Reason, &timeout, &pendingCSV, &u.DateCreation)
	if err != nil {
		return model.User{}, err
	}
	if timeout.Valid {
		u.Timeout = timeout.Time
	}
	u.PendingRooms = model.ParsePendingRooms(pendingCSV)
	return u, nil
}

func (p *PostgresStore) InsertUser(u model.User) error {
	_, err := p.db.Exec(`INSERT INTO users (name, password, ip, state, reason, pending_rooms, date_creation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.Name, u.PasswordHash, u.IP, string(u.State), u.Reason, u.PendingRoomsCSV(), u.DateCreation)
	return err
}

func (p *PostgresStore) UpdateUserIP(name, ip string) error {
	_, err := p.db.Exec(`UPDATE users SET ip = $1 WHERE name = $2`, ip, name)
	return err
}

func (p *PostgresStore) UpdatePendingRooms(name string, pendingRooms []string) error {
	u := model.User{PendingRooms: pendingRooms}
	_, err := p.db.Exec(`UPDATE users SET pending_rooms = $1 WHERE name = $2`, u.PendingRoomsCSV(), name)
	return err
}

func (p *PostgresStore) UpdateModeration(scope ModerationScope, state model.State, reason string, timeout time.Time) error {
	var nullableTimeout interface{}
	if !timeout.IsZero() {
		nullableTimeout = timeout
	}
	if scope.IsIP() {
		_, err := p.db.Exec(`UPDATE users SET state = $1, reason = $2, timeout = $3 WHERE ip = $4`,
			string(state), reason, nullableTimeout, scope.IP)
		return err
	}
	_, err := p.db.Exec(`UPDATE users SET state = $1, reason = $2, timeout = $3 WHERE name = $4`,
		string(state), reason, nullableTimeout, scope.Name)
	return err
}

func (p *PostgresStore) FetchModerated(scope ModerationScope) ([]string, error) {
	var rows *sql.Rows
	var err error
	if scope.IsIP() {
		rows, err = p.db.Query(`SELECT name FROM users WHERE ip = $1`, scope.IP)
	} else {
		rows, err = p.db.Query(`SELECT name FROM users WHERE name = $1`, scope.Name)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (p *PostgresStore) GetRooms() ([]string, error) {
	rows, err := p.db.Query(`SELECT name FROM rooms WHERE type = $1`, string(model.RoomPublic))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (p *PostgresStore) RoomExists(name string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM rooms WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) InsertRoom(name string, t model.RoomType) error {
	_, err := p.db.Exec(`INSERT INTO rooms (name, type) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, string(t))
	return err
}

func (p *PostgresStore) InsertMembership(user, room string) error {
	_, err := p.db.Exec(`INSERT INTO belong (user_name, room_name) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, user, room)
	return err
}

func (p *PostgresStore) FetchMembership(user string) ([]string, error) {
	rows, err := p.db.Query(`SELECT room_name FROM belong WHERE user_name = $1`, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rooms []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (p *PostgresStore) MembershipExists(user, room string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM belong WHERE user_name = $1 AND room_name = $2)`,
		user, room).Scan(&exists)
	return exists, err
}

func (p *PostgresStore) InsertMessage(m model.Message) error {
	_, err := p.db.Exec(`INSERT INTO messages (user_name, room_name, date_message, body)
		VALUES ($1, $2, $3, $4)`, m.User, m.Room, m.DateMessage, m.Body)
	return err
}

func (p *PostgresStore) FetchMessagesSince(since time.Time) ([]model.Message, error) {
	rows, err := p.db.Query(`SELECT user_name, room_name, date_message, body
		FROM messages WHERE date_message >= $1 ORDER BY date_message ASC`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.User, &m.Room, &m.DateMessage, &m.Body); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
