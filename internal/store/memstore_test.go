package store

import (
	"testing"
	"time"

	"github.com/rexlx/chaps/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestMemStoreUserLifecycle(t *testing.T) {
	s := NewMemStore()

	exists, err := s.UserExists("alice")
	assert.NoError(t, err)
	assert.False(t, exists)

	u := model.User{Name: "alice", State: model.StateValid}
	assert.NoError(t, u.SetPassword("hunter2"))
	assert.NoError(t, s.InsertUser(u))

	exists, err = s.UserExists("alice")
	assert.NoError(t, err)
	assert.True(t, exists)

	assert.Error(t, s.InsertUser(u))

	hash, err := s.FetchUserPassword("alice")
	assert.NoError(t, err)
	ok, err := model.PasswordMatches(hash, "hunter2")
	assert.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, s.UpdateUserIP("alice", "10.0.0.1"))
	got, err := s.FetchUser("alice")
	assert.NoError(t, err)
	assert.Equal(t, "10.0.0.1", got.IP)
}

func TestMemStorePendingRoomsRoundTrip(t *testing.T) {
	s := NewMemStore()
	assert.NoError(t, s.InsertUser(model.User{Name: "bob", State: model.StateValid}))

	assert.NoError(t, s.UpdatePendingRooms("bob", []string{"general", "random"}))
	u, err := s.FetchUser("bob")
	assert.NoError(t, err)
	assert.Equal(t, []string{"general", "random"}, u.PendingRooms)
}

func TestMemStoreModerationByName(t *testing.T) {
	s := NewMemStore()
	assert.NoError(t, s.InsertUser(model.User{Name: "carol", State: model.StateValid}))

	timeout := time.Now().Add(time.Hour)
	assert.NoError(t, s.UpdateModeration(ModerationScope{Name: "carol"}, model.StateKick, "spam", timeout))

	u, err := s.FetchUser("carol")
	assert.NoError(t, err)
	assert.Equal(t, model.StateKick, u.State)
	assert.Equal(t, "spam", u.Reason)

	names, err := s.FetchModerated(ModerationScope{Name: "carol"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"carol"}, names)
}

func TestMemStoreModerationByIP(t *testing.T) {
	s := NewMemStore()
	assert.NoError(t, s.InsertUser(model.User{Name: "dave", IP: "1.2.3.4", State: model.StateValid}))
	assert.NoError(t, s.InsertUser(model.User{Name: "erin", IP: "1.2.3.4", State: model.StateValid}))
	assert.NoError(t, s.InsertUser(model.User{Name: "frank", IP: "5.6.7.8", State: model.StateValid}))

	scope := ModerationScope{IP: "1.2.3.4"}
	assert.True(t, scope.IsIP())
	assert.NoError(t, s.UpdateModeration(scope, model.StateBanIP, "abuse", time.Time{}))

	names, err := s.FetchModerated(scope)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"dave", "erin"}, names)

	frank, err := s.FetchUser("frank")
	assert.NoError(t, err)
	assert.Equal(t, model.StateValid, frank.State)
}

func TestMemStoreRoomsAndMembership(t *testing.T) {
	s := NewMemStore()
	assert.NoError(t, s.InsertRoom("general", model.RoomPublic))
	assert.NoError(t, s.InsertRoom("general", model.RoomPublic)) // idempotent

	exists, err := s.RoomExists("general")
	assert.NoError(t, err)
	assert.True(t, exists)

	rooms, err := s.GetRooms()
	assert.NoError(t, err)
	assert.Equal(t, []string{"general"}, rooms)

	assert.NoError(t, s.InsertMembership("alice", "general"))
	member, err := s.MembershipExists("alice", "general")
	assert.NoError(t, err)
	assert.True(t, member)

	rooms, err = s.FetchMembership("alice")
	assert.NoError(t, err)
	assert.Equal(t, []string{"general"}, rooms)
}

func TestMemStoreMessagesSince(t *testing.T) {
	s := NewMemStore()
	cutoff := time.Now()

	assert.NoError(t, s.InsertMessage(model.Message{User: "alice", Room: "general", DateMessage: cutoff.Add(-time.Hour), Body: "old"}))
	assert.NoError(t, s.InsertMessage(model.Message{User: "alice", Room: "general", DateMessage: cutoff.Add(time.Hour), Body: "new"}))

	msgs, err := s.FetchMessagesSince(cutoff)
	assert.NoError(t, err)
	assert.Len(t, msgs, 1)
	assert.Equal(t, "new", msgs[0].Body)
}
