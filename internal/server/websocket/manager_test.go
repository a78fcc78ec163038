package websocket

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/qrpay/internal/domain"
	"github.com/tuncanbit/qrpay/pkg/config"
)

type fakeClient struct {
	id string

	mu       sync.Mutex
	received []domain.EventType
	active   bool
	failWith error
	closed   int
}

func newFakeClient(id string) *fakeClient {
	return &fakeClient{id: id, active: true}
}

func (c *fakeClient) GetID() string { return c.id }

func (c *fakeClient) Send(event *domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWith != nil {
		return c.failWith
	}
	c.received = append(c.received, event.Type)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	c.active = false
	c.closed++
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *fakeClient) HandleConnection() {}

func (c *fakeClient) events() []domain.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.EventType(nil), c.received...)
}

func newManager(t *testing.T) *Manager {
	m := NewManager(config.Default().WebSocket, zerolog.Nop())
	t.Cleanup(m.Close)
	return m
}

func TestManager_PublishReachesEveryClient(t *testing.T) {
	m := newManager(t)
	a, b := newFakeClient("a"), newFakeClient("b")
	require.NoError(t, m.AddClient(a))
	require.NoError(t, m.AddClient(b))

	m.Publish(domain.Event{Type: domain.EventDecoded, Payload: "ST00012"})
	m.Publish(domain.Event{Type: domain.EventReservation})

	want := []domain.EventType{domain.EventDecoded, domain.EventReservation}
	assert.Equal(t, want, a.events())
	assert.Equal(t, want, b.events())
}

func TestManager_DropsInactiveClientOnFailedSend(t *testing.T) {
	m := newManager(t)
	full := newFakeClient("full")
	full.failWith = ErrSendBufferFull
	gone := newFakeClient("gone")
	gone.failWith = ErrClientInactive
	gone.active = false

	require.NoError(t, m.AddClient(full))
	require.NoError(t, m.AddClient(gone))

	m.Publish(domain.Event{Type: domain.EventToast})

	assert.Equal(t, 1, m.GetClientCount())
	assert.ErrorIs(t, m.SendToClient("full", &domain.Event{Type: domain.EventToast}), ErrSendBufferFull)
	assert.ErrorIs(t, m.SendToClient("gone", &domain.Event{Type: domain.EventToast}), ErrClientNotFound)
}

func TestManager_RemoveAndClose(t *testing.T) {
	m := newManager(t)
	a, b := newFakeClient("a"), newFakeClient("b")
	require.NoError(t, m.AddClient(a))
	require.NoError(t, m.AddClient(b))

	require.NoError(t, m.RemoveClient("a"))
	require.NoError(t, m.RemoveClient("a"))
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, m.GetClientCount())

	m.Close()
	m.Close()
	assert.Equal(t, 0, m.GetClientCount())
	assert.False(t, b.IsActive())
}
