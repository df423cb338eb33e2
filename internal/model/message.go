package model

import "time"

// Message is an append-only persisted chat message row, inserted for
// every successful public or private message delivery.
type Message struct {
	User        string
	Room        string
	DateMessage time.Time
	Body        string
}
