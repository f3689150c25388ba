package memory

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/StageLive/internal/domain/models"
)

type releases struct {
	count atomic.Int32
	last  atomic.Value
}

func (r *releases) handler(roomID uuid.UUID) {
	r.last.Store(roomID)
	r.count.Add(1)
}

func TestConnectionRegistry_Join_MultipleConnectionsOfOneUser(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(time.Minute)
	roomID := uuid.New()
	userID := uuid.New()

	// When the same user joins from two devices
	phone := registry.Join(roomID, models.Participant{UserID: userID, Role: models.RoleAudience})
	laptop := registry.Join(roomID, models.Participant{UserID: userID, Role: models.RoleAudience})

	// Then both connections are tracked independently
	req.NotEqual(uuid.Nil, phone.ConnectionID)
	req.NotEqual(phone.ConnectionID, laptop.ConnectionID)
	req.Equal(roomID, phone.RoomID)
	req.Len(registry.ListConnections(roomID), 2)

	got, ok := registry.Get(laptop.ConnectionID)
	req.True(ok)
	req.Equal(laptop, got)
}

func TestConnectionRegistry_Join_KeepsGivenConnectionID(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(time.Minute)
	connID := uuid.New()

	p := registry.Join(uuid.New(), models.Participant{ConnectionID: connID, UserID: uuid.New()})
	req.Equal(connID, p.ConnectionID)
}

func TestConnectionRegistry_UnknownRoomIsEmpty(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(time.Minute)

	req.Empty(registry.ListConnections(uuid.New()))

	_, ok := registry.Leave(uuid.New())
	req.False(ok)
	_, ok = registry.Disconnect(uuid.New())
	req.False(ok)
}

func TestConnectionRegistry_Leave_LastConnectionReleasesImmediately(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(time.Hour)
	released := &releases{}
	registry.OnRoomReleased(released.handler)
	roomID := uuid.New()

	a := registry.Join(roomID, models.Participant{UserID: uuid.New()})
	b := registry.Join(roomID, models.Participant{UserID: uuid.New()})

	_, ok := registry.Leave(a.ConnectionID)
	req.True(ok)
	req.Len(registry.ListConnections(roomID), 1)

	_, ok = registry.Leave(b.ConnectionID)
	req.True(ok)
	req.Empty(registry.ListConnections(roomID))

	req.Eventually(func() bool { return released.count.Load() == 1 }, time.Second, 5*time.Millisecond)
	req.Equal(roomID, released.last.Load())
}

func TestConnectionRegistry_Disconnect_ReleasesAfterGrace(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(30 * time.Millisecond)
	released := &releases{}
	registry.OnRoomReleased(released.handler)
	roomID := uuid.New()

	p := registry.Join(roomID, models.Participant{UserID: uuid.New()})

	// When the only connection drops
	_, ok := registry.Disconnect(p.ConnectionID)
	req.True(ok)

	// Then the room is not released right away
	req.Zero(released.count.Load())
	req.Empty(registry.ListConnections(roomID))

	// And is released once the grace period passes
	req.Eventually(func() bool { return released.count.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestConnectionRegistry_Disconnect_ReconnectCancelsRelease(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(50 * time.Millisecond)
	released := &releases{}
	registry.OnRoomReleased(released.handler)
	roomID := uuid.New()
	userID := uuid.New()

	p := registry.Join(roomID, models.Participant{UserID: userID})
	_, ok := registry.Disconnect(p.ConnectionID)
	req.True(ok)

	// When the user reconnects within the grace period
	registry.Join(roomID, models.Participant{UserID: userID})

	// Then the room survives
	time.Sleep(120 * time.Millisecond)
	req.Zero(released.count.Load())
	req.Len(registry.ListConnections(roomID), 1)
}

func TestConnectionRegistry_Evict(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(20 * time.Millisecond)
	released := &releases{}
	registry.OnRoomReleased(released.handler)
	roomID := uuid.New()
	other := uuid.New()

	a := registry.Join(roomID, models.Participant{UserID: uuid.New()})
	registry.Join(roomID, models.Participant{UserID: uuid.New()})
	registry.Join(other, models.Participant{UserID: uuid.New()})

	evicted := registry.Evict(roomID)
	req.Len(evicted, 2)
	req.Empty(registry.ListConnections(roomID))
	req.Len(registry.ListConnections(other), 1)

	_, ok := registry.Get(a.ConnectionID)
	req.False(ok)

	time.Sleep(60 * time.Millisecond)
	req.Zero(released.count.Load())
}

func TestConnectionRegistry_Leave_KeepsRoomForDroppedConnection(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(time.Hour)
	released := &releases{}
	registry.OnRoomReleased(released.handler)
	roomID := uuid.New()
	dropper := uuid.New()

	// Given A dropped while B is still in the room
	a := registry.Join(roomID, models.Participant{UserID: dropper})
	b := registry.Join(roomID, models.Participant{UserID: uuid.New()})

	_, ok := registry.Disconnect(a.ConnectionID)
	req.True(ok)

	// When B leaves on purpose
	_, ok = registry.Leave(b.ConnectionID)
	req.True(ok)

	// Then the room waits for A instead of being released
	time.Sleep(50 * time.Millisecond)
	req.Zero(released.count.Load())

	// And A's reconnect keeps it alive
	registry.Join(roomID, models.Participant{UserID: dropper})
	req.Len(registry.ListConnections(roomID), 1)
	req.Zero(released.count.Load())
}

func TestConnectionRegistry_Leave_ReleasesWhenDroppedConnectionExpires(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(60 * time.Millisecond)
	released := &releases{}
	registry.OnRoomReleased(released.handler)
	roomID := uuid.New()

	a := registry.Join(roomID, models.Participant{UserID: uuid.New()})
	b := registry.Join(roomID, models.Participant{UserID: uuid.New()})

	_, ok := registry.Disconnect(a.ConnectionID)
	req.True(ok)
	_, ok = registry.Leave(b.ConnectionID)
	req.True(ok)

	req.Zero(released.count.Load())

	// A never comes back: the room goes once A's grace period is over
	req.Eventually(func() bool { return released.count.Load() == 1 }, time.Second, 5*time.Millisecond)
	req.Equal(roomID, released.last.Load())
}

func TestConnectionRegistry_Leave_AfterDroppedConnectionExpired(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(20 * time.Millisecond)
	released := &releases{}
	registry.OnRoomReleased(released.handler)
	roomID := uuid.New()

	a := registry.Join(roomID, models.Participant{UserID: uuid.New()})
	b := registry.Join(roomID, models.Participant{UserID: uuid.New()})

	_, ok := registry.Disconnect(a.ConnectionID)
	req.True(ok)

	// Given A's grace period ran out while B kept the room open
	time.Sleep(50 * time.Millisecond)

	// When B leaves
	_, ok = registry.Leave(b.ConnectionID)
	req.True(ok)

	// Then there is nobody to wait for
	req.Eventually(func() bool { return released.count.Load() == 1 }, 10*time.Millisecond, time.Millisecond)
}
