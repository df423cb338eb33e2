// Package admin implements the admin console: a cooperative single-reader
// loop on standard input that parses operator commands and invokes
// registry moderation operations.
package admin

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rexlx/chaps/internal/registry"
)

const helpText = `Available commands:
help - display this help message

messages <duration> - display a list of all messages since a time
users - display a list of all users
rooms - display a list of all rooms

add room <room1,room2,...> - add a room
pending rooms <username> - display a list of pending rooms for a user
accept pending <username> <room1,room2,...|all> - accept pending rooms for a user

kick <username> <duration> <reason...> - kick a user
kick ip <ip> <duration> <reason...> - kick every account seen from an ip
unkick <username> - unkick a user
unkick ip <ip> - unkick every account seen from an ip

ban <username> <reason...> - ban a user
ban ip <ip> <reason...> - ban an ip address
unban <username> - unban a user
unban ip <ip> - unban an ip address

kill <username> <reason...> - forcibly notify a user to disconnect

shutdown - shut the server down`

// Console is the cooperative stdin command reader.
type Console struct {
	Registry *registry.Registry
	In       io.Reader
	Out      io.Writer
}

// New builds a Console reading commands from in and writing output to out.
func New(reg *registry.Registry, in io.Reader, out io.Writer) *Console {
	return &Console{Registry: reg, In: in, Out: out}
}

// Run reads commands until EOF or a "shutdown" command is processed. It
// writes only the output of the commands it runs.
func (c *Console) Run() {
	scanner := bufio.NewScanner(c.In)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if c.dispatch(line) {
			return
		}
	}
}

// dispatch runs a single command line, returning true if the console
// should stop reading further commands (i.e. "shutdown" was issued).
func (c *Console) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch {
	case cmd == "help":
		fmt.Fprintln(c.Out, helpText)

	case cmd == "messages":
		c.cmdMessages(fields)

	case cmd == "users":
		c.cmdUsers()

	case cmd == "rooms":
		c.cmdRooms()

	case cmd == "add" && len(fields) > 1 && fields[1] == "room":
		c.cmdAddRoom(fields)

	case cmd == "pending" && len(fields) > 1 && fields[1] == "rooms":
		c.cmdPendingRooms(fields)

	case cmd == "accept" && len(fields) > 1 && fields[1] == "pending":
		c.cmdAcceptPending(fields)

	case cmd == "kick":
		c.cmdKick(fields)

	case cmd == "unkick":
		c.cmdUnkick(fields)

	case cmd == "ban":
		c.cmdBan(fields)

	case cmd == "unban":
		c.cmdUnban(fields)

	case cmd == "kill":
		c.cmdKill(fields)

	case cmd == "shutdown":
		fmt.Fprintln(c.Out, "Server is shutting down...")
		if err := c.Registry.Close(); err != nil {
			fmt.Fprintf(c.Out, "error during shutdown: %v\n", err)
		}
		fmt.Fprintln(c.Out, "Server has shut down.")
		return true

	default:
		fmt.Fprintln(c.Out, "Invalid command. Type 'help' for a list of commands.")
	}
	return false
}

func (c *Console) cmdMessages(fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(c.Out, "Please specify a duration")
		return
	}
	d, err := parseDuration(fields[1])
	if err != nil {
		fmt.Fprintln(c.Out, err)
		return
	}
	since := time.Now().Add(-d)
	fmt.Fprintf(c.Out, "Messages since %s:\n", since.Format("2006-01-02 15:04:05"))
	msgs, err := c.Registry.Store.FetchMessagesSince(since)
	if err != nil {
		fmt.Fprintf(c.Out, "error fetching messages: %v\n", err)
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(c.Out, "%s in %s at %s : %s\n",
			m.User, m.Room, m.DateMessage.Format("2006-01-02 15:04:05"), m.Body)
	}
}

func (c *Console) cmdUsers() {
	fmt.Fprintln(c.Out, "Users:")
	for _, s := range c.Registry.Sessions() {
		if s.Name() == "" {
			continue
		}
		fmt.Fprintf(c.Out, "%s %s\n", s.Name(), s.Addr)
	}
}

func (c *Console) cmdRooms() {
	fmt.Fprintln(c.Out, "Rooms:")
	for _, r := range c.Registry.Rooms() {
		fmt.Fprintln(c.Out, r)
	}
}

func (c *Console) cmdAddRoom(fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(c.Out, "Please specify a room")
		return
	}
	for _, room := range strings.Split(fields[2], ",") {
		if err := c.Registry.AddRoom(room); err != nil {
			fmt.Fprintf(c.Out, "error adding room %q: %v\n", room, err)
		}
	}
}

func (c *Console) cmdPendingRooms(fields []string) {
	if len(fields) < 3 {
		fmt.Fprintln(c.Out, "Please specify a username")
		return
	}
	username := fields[2]
	fmt.Fprintf(c.Out, "Pending rooms for %s:\n", username)
	sess, ok := c.Registry.FindByName(username)
	if !ok {
		return
	}
	for _, room := range sess.PendingRooms() {
		fmt.Fprintln(c.Out, room)
	}
}

func (c *Console) cmdAcceptPending(fields []string) {
	if len(fields) < 4 {
		fmt.Fprintln(c.Out, "Please specify a username and a room")
		return
	}
	username := fields[2]
	roomsArg := fields[3]

	sess, ok := c.Registry.FindByName(username)
	if !ok {
		fmt.Fprintf(c.Out, "user %q is not connected\n", username)
		return
	}

	var rooms []string
	if roomsArg == "all" {
		rooms = sess.PendingRooms()
	} else {
		rooms = strings.Split(roomsArg, ",")
	}

	for _, room := range rooms {
		if sess.InRoom(room) {
			continue
		}
		if err := c.Registry.AcceptPending(sess, room); err != nil {
			fmt.Fprintf(c.Out, "error accepting %q for %s: %v\n", room, username, err)
		}
	}
}

func (c *Console) cmdKick(fields []string) {
	if len(fields) > 1 && fields[1] == "ip" {
		if len(fields) < 5 {
			fmt.Fprintln(c.Out, "Please specify an IP address, a duration and a reason")
			return
		}
		d, err := parseDuration(fields[3])
		if err != nil {
			fmt.Fprintln(c.Out, err)
			return
		}
		reason := strings.Join(fields[4:], " ")
		if err := c.Registry.KickIP(fields[2], time.Now().Add(d), reason); err != nil {
			fmt.Fprintln(c.Out, err)
		}
		return
	}
	if len(fields) < 3 {
		fmt.Fprintln(c.Out, "Please specify a username and a duration")
		return
	}
	d, err := parseDuration(fields[2])
	if err != nil {
		fmt.Fprintln(c.Out, err)
		return
	}
	reason := strings.Join(fields[3:], " ")
	if err := c.Registry.KickUser(fields[1], time.Now().Add(d), reason); err != nil {
		fmt.Fprintln(c.Out, err)
	}
}

func (c *Console) cmdUnkick(fields []string) {
	if len(fields) > 1 && fields[1] == "ip" {
		if len(fields) < 3 {
			fmt.Fprintln(c.Out, "Please specify an IP address")
			return
		}
		if err := c.Registry.UnkickIP(fields[2]); err != nil {
			fmt.Fprintln(c.Out, err)
		}
		return
	}
	if len(fields) < 2 {
		fmt.Fprintln(c.Out, "Please specify a username")
		return
	}
	if err := c.Registry.UnkickUser(fields[1]); err != nil {
		fmt.Fprintln(c.Out, err)
	}
}

func (c *Console) cmdBan(fields []string) {
	if len(fields) > 1 && fields[1] == "ip" {
		if len(fields) < 3 {
			fmt.Fprintln(c.Out, "Please specify an IP address")
			return
		}
		reason := strings.Join(fields[3:], " ")
		if err := c.Registry.BanIP(fields[2], reason); err != nil {
			fmt.Fprintln(c.Out, err)
		}
		return
	}
	if len(fields) < 2 {
		fmt.Fprintln(c.Out, "Please specify a username")
		return
	}
	reason := strings.Join(fields[2:], " ")
	if err := c.Registry.BanUser(fields[1], reason); err != nil {
		fmt.Fprintln(c.Out, err)
	}
}

func (c *Console) cmdUnban(fields []string) {
	if len(fields) > 1 && fields[1] == "ip" {
		if len(fields) < 3 {
			fmt.Fprintln(c.Out, "Please specify an IP address")
			return
		}
		if err := c.Registry.UnbanIP(fields[2]); err != nil {
			fmt.Fprintln(c.Out, err)
		}
		return
	}
	if len(fields) < 2 {
		fmt.Fprintln(c.Out, "Please specify a username")
		return
	}
	if err := c.Registry.UnbanUser(fields[1]); err != nil {
		fmt.Fprintln(c.Out, err)
	}
}

func (c *Console) cmdKill(fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(c.Out, "Please specify a username")
		return
	}
	reason := strings.Join(fields[2:], " ")
	if err := c.Registry.Kill(fields[1], reason); err != nil {
		fmt.Fprintln(c.Out, err)
		return
	}
	fmt.Fprintf(c.Out, "Killed %s\n", fields[1])
}

// parseDuration parses an integer followed by a unit letter (s/m/h/d/y)
// into a time.Duration, matching original_source/server/server/admin.py's
// convert_to_date semantics (1/60/3600/86400/31536000 seconds per unit).
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	var seconds int
	switch unit {
	case 's':
		seconds = n
	case 'm':
		seconds = n * 60
	case 'h':
		seconds = n * 3600
	case 'd':
		seconds = n * 86400
	case 'y':
		seconds = n * 31536000
	default:
		return 0, fmt.Errorf("invalid time unit %q. Use 's', 'm', 'h', 'd', or 'y'", string(unit))
	}
	return time.Duration(seconds) * time.Second, nil
}
