package dispatch

import (
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/rexlx/chaps/internal/model"
	"github.com/rexlx/chaps/internal/registry"
	"github.com/rexlx/chaps/internal/store"
	"github.com/rexlx/chaps/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer boots a Registry backed by a MemStore on an ephemeral
// loopback port, wires Serve as its ConnHandler exactly like cmd/server
// does, and runs the accept loop for the duration of the test.
func startTestServer(t *testing.T) *registry.Registry {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	reg := registry.New("127.0.0.1:0", "general", logger, store.NewMemStore())
	require.NoError(t, reg.AddRoom("general"))
	reg.Handler = Serve

	done := make(chan struct{})
	go func() {
		defer close(done)
		reg.Run()
	}()
	t.Cleanup(func() {
		reg.Close()
		<-done
	})

	for reg.ListenAddr() == "" {
		time.Sleep(time.Millisecond)
	}
	return reg
}

// dialClient connects to reg's listener and returns a framed connection
// for the test to drive like a real client would.
func dialClient(t *testing.T, reg *registry.Registry) *wire.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", reg.ListenAddr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return wire.NewConn(conn)
}

func readFrame(t *testing.T, cc *wire.Conn) map[string]interface{} {
	t.Helper()
	type result struct {
		raw map[string]interface{}
		err error
	}
	ch := make(chan result, 1)
	go func() {
		_ = cc.Underlying().SetReadDeadline(time.Now().Add(2 * time.Second))
		raw, err := cc.ReadRaw()
		ch <- result{raw, err}
	}()
	select {
	case r := <-ch:
		require.NoError(t, r.err)
		return r.raw
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func signup(t *testing.T, cc *wire.Conn, username, password string) map[string]interface{} {
	t.Helper()
	require.NoError(t, cc.WriteMessage(wire.SignupRequest{Type: wire.TypeSignup, Username: username, Password: password}))
	return readFrame(t, cc)
}

func signin(t *testing.T, cc *wire.Conn, username, password string) map[string]interface{} {
	t.Helper()
	require.NoError(t, cc.WriteMessage(wire.SigninRequest{Type: wire.TypeSignin, Username: username, Password: password}))
	return readFrame(t, cc)
}

func TestSignupThenSigninRoundTrip(t *testing.T) {
	reg := startTestServer(t)
	cc := dialClient(t, reg)

	resp := signup(t, cc, "alice", "s3cret")
	assert.Equal(t, "ok", resp["status"])

	cc2 := dialClient(t, reg)
	resp2 := signin(t, cc2, "alice", "s3cret")
	assert.Equal(t, "ok", resp2["status"])
	rooms, ok := resp2["rooms"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, rooms, "general")

	cc3 := dialClient(t, reg)
	resp3 := signin(t, cc3, "alice", "wrong")
	assert.Equal(t, "error", resp3["status"])
	assert.Equal(t, "incorrect_password", resp3["reason"])
}

func TestSigninUnknownUsername(t *testing.T) {
	reg := startTestServer(t)
	cc := dialClient(t, reg)
	resp := signin(t, cc, "ghost", "x")
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "incorrect_username", resp["reason"])
}

func TestDuplicateSignupYieldsExactlyOneOK(t *testing.T) {
	reg := startTestServer(t)
	cc1 := dialClient(t, reg)
	cc2 := dialClient(t, reg)

	// require/assert must run on the test's own goroutine (testify calls
	// t.FailNow under the hood, which panics if invoked elsewhere), so the
	// two concurrent signups are driven with bare errors here and only
	// asserted on after both complete.
	type outcome struct {
		status, reason string
		err            error
	}
	concurrentSignup := func(cc *wire.Conn, username, password string) outcome {
		if err := cc.WriteMessage(wire.SignupRequest{Type: wire.TypeSignup, Username: username, Password: password}); err != nil {
			return outcome{err: err}
		}
		_ = cc.Underlying().SetReadDeadline(time.Now().Add(2 * time.Second))
		raw, err := cc.ReadRaw()
		if err != nil {
			return outcome{err: err}
		}
		s, _ := raw["status"].(string)
		rs, _ := raw["reason"].(string)
		return outcome{status: s, reason: rs}
	}

	results := make(chan outcome, 2)
	go func() { results <- concurrentSignup(cc1, "bob", "x") }()
	go func() { results <- concurrentSignup(cc2, "bob", "y") }()

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)

	oks := 0
	dups := 0
	for _, o := range []outcome{first, second} {
		if o.status == "ok" {
			oks++
		}
		if o.status == "error" && o.reason == "username_already_used" {
			dups++
		}
	}
	assert.Equal(t, 1, oks)
	assert.Equal(t, 1, dups)

	exists, err := reg.Store.UserExists("bob")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPublicBroadcastReachesOnlyRoomMembersWithValidState(t *testing.T) {
	reg := startTestServer(t)

	aliceConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, aliceConn, "alice", "pw")["status"])
	bobConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, bobConn, "bob", "pw")["status"])
	carolConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, carolConn, "carol", "pw")["status"])

	require.NoError(t, reg.AddRoom("music"))
	require.NoError(t, reg.Store.InsertMembership("alice", "music"))
	require.NoError(t, reg.Store.InsertMembership("bob", "music"))
	// Broadcast filters on each live session's in-memory rooms, which were
	// loaded at signup, so the already-connected sessions join "music" too.
	for _, name := range []string{"alice", "bob"} {
		sess, ok := reg.FindByName(name)
		require.True(t, ok)
		sess.AddRoom("music")
	}
	// carol is never added to "music"; she stays subscribed to "general"
	// only (the default room from signup), so a "music" broadcast is the
	// clean selectivity test — nothing else is ever sent to her connection
	// in this test, so there's no framing risk from an undrained frame.
	require.NoError(t, aliceConn.WriteMessage(wire.PublicRequest{
		Type: wire.TypePublic, Room: "music", Message: "tune in",
	}))
	aliceMusicFrame := readFrame(t, aliceConn)
	assert.Equal(t, "music", aliceMusicFrame["room"])
	bobMusicFrame := readFrame(t, bobConn)
	assert.Equal(t, "music", bobMusicFrame["room"])

	carolConn.Underlying().SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, err := carolConn.ReadRaw()
	assert.Error(t, err, "carol is not a member of music and must receive nothing")

	msgs, err2 := reg.Store.FetchMessagesSince(time.Now().Add(-time.Minute))
	require.NoError(t, err2)
	require.Len(t, msgs, 1)
}

func TestPrivateRoomCreationIsDeterministicAndSharedAcrossDirections(t *testing.T) {
	reg := startTestServer(t)

	aliceConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, aliceConn, "alice", "pw")["status"])
	bobConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, bobConn, "bob", "pw")["status"])

	require.NoError(t, aliceConn.WriteMessage(wire.PrivateRequest{
		Type: wire.TypePrivate, To: "bob", User: "alice", Message: "hello",
	}))
	resp := readFrame(t, aliceConn)
	assert.Equal(t, "ok", resp["status"])

	wantRoom := model.PrivateRoomName("alice", "bob")
	exists, err := reg.Store.RoomExists(wantRoom)
	require.NoError(t, err)
	assert.True(t, exists)

	belongsAlice, err := reg.Store.MembershipExists("alice", wantRoom)
	require.NoError(t, err)
	assert.True(t, belongsAlice)
	belongsBob, err := reg.Store.MembershipExists("bob", wantRoom)
	require.NoError(t, err)
	assert.True(t, belongsBob)

	// Second private message, other direction, must reuse the same room
	// without a second insertion.
	require.NoError(t, bobConn.WriteMessage(wire.PrivateRequest{
		Type: wire.TypePrivate, To: "alice", User: "bob", Message: "hi back",
	}))
	resp2 := readFrame(t, bobConn)
	assert.Equal(t, "ok", resp2["status"])
}

func TestPrivateRecipientNotFound(t *testing.T) {
	reg := startTestServer(t)
	aliceConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, aliceConn, "alice", "pw")["status"])

	require.NoError(t, aliceConn.WriteMessage(wire.PrivateRequest{
		Type: wire.TypePrivate, To: "nobody", User: "alice", Message: "hi",
	}))
	resp := readFrame(t, aliceConn)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "recipient_not_found", resp["reason"])
}

func TestPendingRoomLifecycleAndAdminAcceptance(t *testing.T) {
	reg := startTestServer(t)
	require.NoError(t, reg.AddRoom("music"))

	aliceConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, aliceConn, "alice", "pw")["status"])

	require.NoError(t, aliceConn.WriteMessage(wire.PendingRoomRequest{
		Type: wire.TypePendingRoom, Room: "nonexistent",
	}))
	resp := readFrame(t, aliceConn)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "room_does_not_exist", resp["reason"])

	require.NoError(t, aliceConn.WriteMessage(wire.PendingRoomRequest{
		Type: wire.TypePendingRoom, Room: "general",
	}))
	resp2 := readFrame(t, aliceConn)
	assert.Equal(t, "error", resp2["status"])
	assert.Equal(t, "already_in_room", resp2["reason"])

	require.NoError(t, aliceConn.WriteMessage(wire.PendingRoomRequest{
		Type: wire.TypePendingRoom, Room: "music",
	}))
	// No OK frame by design; give the server a moment to persist, then
	// verify the pending request landed in storage.
	time.Sleep(50 * time.Millisecond)
	u, err := reg.Store.FetchUser("alice")
	require.NoError(t, err)
	assert.Contains(t, u.PendingRooms, "music")

	sess, ok := reg.FindByName("alice")
	require.True(t, ok)
	require.NoError(t, reg.AcceptPending(sess, "music"))

	frame := readFrame(t, aliceConn)
	assert.Equal(t, "pending_room", frame["type"])
	assert.Equal(t, "ok", frame["status"])
	assert.Equal(t, "music", frame["room"])

	belongs, err := reg.Store.MembershipExists("alice", "music")
	require.NoError(t, err)
	assert.True(t, belongs)
}

func TestKickWithExpiryThenFreshSigninBehavior(t *testing.T) {
	reg := startTestServer(t)
	aliceConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, aliceConn, "alice", "pw")["status"])

	require.NoError(t, reg.KickUser("alice", time.Now().Add(300*time.Millisecond), "flood"))

	retryConn := dialClient(t, reg)
	resp := signin(t, retryConn, "alice", "pw")
	assert.Equal(t, "kick", resp["status"])
	assert.Equal(t, "flood", resp["reason"])
	assert.NotEmpty(t, resp["timeout"])

	time.Sleep(400 * time.Millisecond)

	afterConn := dialClient(t, reg)
	resp2 := signin(t, afterConn, "alice", "pw")
	assert.Equal(t, "ok", resp2["status"])

	u, err := reg.Store.FetchUser("alice")
	require.NoError(t, err)
	assert.Equal(t, model.StateValid, u.State)
}

func TestBanClosesConnectionAtSignin(t *testing.T) {
	reg := startTestServer(t)
	aliceConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, aliceConn, "alice", "pw")["status"])

	require.NoError(t, reg.BanUser("alice", "abuse"))

	retryConn := dialClient(t, reg)
	resp := signin(t, retryConn, "alice", "pw")
	assert.Equal(t, "ban", resp["status"])
	assert.Equal(t, "abuse", resp["reason"])
}

func TestDisconnectClosesSession(t *testing.T) {
	reg := startTestServer(t)
	aliceConn := dialClient(t, reg)
	require.Equal(t, "ok", signup(t, aliceConn, "alice", "pw")["status"])

	require.NoError(t, aliceConn.WriteMessage(wire.Envelope{Type: wire.TypeDisconnect}))
	resp := readFrame(t, aliceConn)
	assert.Equal(t, "disconnect", resp["type"])
	assert.Equal(t, "ok", resp["status"])
}
