package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// streamRecorder is a flushable ResponseWriter safe to read while a handler writes.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
}

func (s *streamRecorder) Header() http.Header { return s.header }
func (s *streamRecorder) WriteHeader(int) {}
func (s *streamRecorder) Flush() {}

func (s *streamRecorder) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *streamRecorder) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestEventBusPublish(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bus := NewEventBus()
	ch, cancel := bus.Subscribe()
	assert.Equal(t, 1, bus.Subscribers())

	bus.Publish(Event{Type: "instance.created", UserID: "nani"})
	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"type":"instance.created","user_id":"nani"}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	cancel()
	cancel()
	assert.Equal(t, 0, bus.Subscribers())
	bus.Publish(Event{Type: "instances.cleared"})
}

func TestEventBusDropsForSlowSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch, cancel := bus.Subscribe()
	defer cancel()
	for i := 0; i < 100; i++ {
		bus.Publish(Event{Type: "quota.updated"})
	}
	assert.Equal(t, cap(ch), len(ch))
}

func TestServeSSE(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/events", nil).WithContext(ctx)
	w := &streamRecorder{header: http.Header{}}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.ServeSSE(w, req, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return bus.Subscribers() == 1 }, time.Second, 5*time.Millisecond)
	bus.Publish(Event{Type: "template.updated"})
	require.Eventually(t, func() bool {
		out := w.String()
		return strings.Contains(out, `data: {"type":"template.updated"}`) && strings.Contains(out, ": ping")
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, bus.Subscribers())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.String(), ": connected\n\n"))
}

func TestEventsEndpointPublishesChanges(t *testing.T) {
	e := newTestEnv(t)
	c := e.login("Nani")
	ch, cancel := e.api.bus.Subscribe()
	defer cancel()

	e.pick(c, "pe")
	select {
	case msg := <-ch:
		assert.Contains(t, string(msg), `"type":"instance.created"`)
		assert.Contains(t, string(msg), `"user_id":"nani"`)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
}

func TestEventBusClose(t *testing.T) {
	bus := NewEventBus()
	ch, cancel := bus.Subscribe()
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers())
	cancel()

	late, cancelLate := bus.Subscribe()
	defer cancelLate()
	_, ok = <-late
	assert.False(t, ok, "closed bus refuses subscribers")
	bus.Publish(Event{Type: "quota.updated"})
}

func TestShutdownEndsEventStreams(t *testing.T) {
	e := newTestEnv(t)
	cookie := e.login("Nani")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := newHTTPServer(ln.Addr().String(), e.api, "")
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	req, err := http.NewRequest("GET", "http://"+ln.Addr().String()+"/api/events", nil)
	require.NoError(t, err)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.True(t, errors.Is(<-served, http.ErrServerClosed))
}

func TestEventsReachEverySubscriber(t *testing.T) {
	bus := NewEventBus()
	nani, cancelNani := bus.Subscribe()
	defer cancelNani()
	roman, cancelRoman := bus.Subscribe()
	defer cancelRoman()

	bus.Publish(Event{Type: "instance.updated", UserID: "nani"})
	for _, ch := range []chan []byte{nani, roman} {
		select {
		case msg := <-ch:
			assert.Contains(t, string(msg), `"user_id":"nani"`)
		case <-time.After(time.Second):
			t.Fatal("no event")
		}
	}
}
