package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteMessageThenReadRaw(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	done := make(chan error, 1)
	go func() {
		done <- sc.WriteMessage(SignupRequest{Type: TypeSignup, Username: "alice", Password: "hunter2"})
	}()

	raw, err := cc.ReadRaw()
	assert.NoError(t, err)
	assert.NoError(t, <-done)
	assert.Equal(t, string(TypeSignup), raw["type"])
	assert.Equal(t, "alice", raw["username"])
}

func TestReadMessageDecodesConcreteType(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	sc := NewConn(server)
	cc := NewConn(client)

	done := make(chan error, 1)
	go func() {
		done <- sc.WriteMessage(PublicRequest{Type: TypePublic, Room: "general", Message: "hi"})
	}()

	var req PublicRequest
	err := cc.ReadMessage(&req)
	assert.NoError(t, err)
	assert.NoError(t, <-done)
	assert.Equal(t, "general", req.Room)
	assert.Equal(t, "hi", req.Message)
}

func TestReadRawOnClosedConnReturnsError(t *testing.T) {
	server, client := net.Pipe()
	cc := NewConn(client)
	server.Close()
	client.Close()

	_, err := cc.ReadRaw()
	assert.Error(t, err)
}
