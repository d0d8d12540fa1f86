package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relay/internal/domain"
	"relay/pkg/logger"
)

func newTestClient(userID string, buffer int) *Client {
	cfg := testRealtimeConfig()
	cfg.SendBuffer = buffer
	return NewClient(nil, &domain.User{ID: userID}, cfg, logger.Nop())
}

func TestHub_RoomsAndFilters(t *testing.T) {
	h := NewHub(logger.Nop())
	a := newTestClient("a", 8)
	b := newTestClient("b", 8)
	outsider := newTestClient("z", 8)

	for _, c := range []*Client{a, b, outsider} {
		h.Register(c)
		h.Join(c, userRoom(c.UserID))
	}
	h.Join(a, conversationRoom("c1"))
	h.Join(b, conversationRoom("c1"))

	sent := h.EmitRoom(conversationRoom("c1"), []byte("x"), nil)
	assert.Equal(t, 2, sent)
	assert.Len(t, a.send, 1)
	assert.Len(t, outsider.send, 0)

	sent = h.EmitRoom(conversationRoom("c1"), []byte("y"), func(c *Client) bool { return c.UserID != "a" })
	assert.Equal(t, 1, sent)
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 2)

	assert.Equal(t, 1, h.EmitUser("z", []byte("z")))
	assert.Equal(t, 3, h.EmitAll([]byte("all")))
}

func TestHub_UnregisterLeavesRooms(t *testing.T) {
	h := NewHub(logger.Nop())
	a := newTestClient("a", 8)
	h.Register(a)
	h.Join(a, conversationRoom("c1"))
	require.True(t, h.inRoom(a, conversationRoom("c1")))

	h.Unregister(a)
	assert.False(t, h.inRoom(a, conversationRoom("c1")))
	assert.Equal(t, 0, h.EmitRoom(conversationRoom("c1"), []byte("x"), nil))
	assert.Equal(t, 0, h.ClientCount())

	// joining after unregister is ignored
	h.Join(a, conversationRoom("c2"))
	assert.False(t, h.inRoom(a, conversationRoom("c2")))
}

func TestHub_Reachable(t *testing.T) {
	h := NewHub(logger.Nop())
	a := newTestClient("a", 8)
	b := newTestClient("b", 8)
	c := newTestClient("c", 8)
	for _, cl := range []*Client{a, b, c} {
		h.Register(cl)
	}
	h.Join(a, conversationRoom("c1"))
	h.Join(b, conversationRoom("c1"))
	h.Join(c, conversationRoom("c2"))

	assert.Equal(t, []string{"b"}, h.Reachable("c1", []string{"b", "c", "d"}))

	b.Close()
	assert.Empty(t, h.Reachable("c1", []string{"b"}))
}

func TestClient_SlowConsumerIsDropped(t *testing.T) {
	h := NewHub(logger.Nop())
	slow := newTestClient("slow", 1)
	h.Register(slow)

	assert.True(t, slow.Send([]byte("1")))
	assert.False(t, slow.Send([]byte("2")))
	assert.True(t, slow.Closed())
	assert.False(t, slow.Send([]byte("3")))
	assert.Equal(t, 0, h.EmitAll([]byte("4")))

	// the buffered frame is still readable, then the channel is closed
	frame, ok := <-slow.send
	assert.True(t, ok)
	assert.Equal(t, "1", string(frame))
	_, ok = <-slow.send
	assert.False(t, ok)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	c := newTestClient("a", 1)
	c.Close()
	assert.NotPanics(t, c.Close)

	var runs int
	c.cleanup(func() { runs++ })
	c.cleanup(func() { runs++ })
	assert.Equal(t, 1, runs)
}

func TestHub_ShutdownWaitsForTrackedWork(t *testing.T) {
	h := NewHub(logger.Nop())
	c := newTestClient("a", 1)
	h.Register(c)

	release := make(chan struct{})
	h.track(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Shutdown(ctx), context.DeadlineExceeded)
	assert.True(t, c.Closed())

	close(release)
	assert.NoError(t, h.Shutdown(context.Background()))
}

func TestHub_RefusesClientsAfterShutdown(t *testing.T) {
	h := NewHub(logger.Nop())
	require.NoError(t, h.Shutdown(context.Background()))

	assert.False(t, h.enter())
	c := newTestClient("a", 1)
	assert.ErrorIs(t, h.Register(c), errHubClosed)
	assert.Equal(t, 0, h.ClientCount())
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("conv")
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, k.size())

	// different keys do not block each other
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, k.size())
}
