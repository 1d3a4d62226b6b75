package reload

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/specialistvlad/resgraph/internal/diag"
	"github.com/specialistvlad/resgraph/internal/reconcile"
	"github.com/specialistvlad/resgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sioserver "github.com/zishang520/socket.io/v2/socket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + Path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_Broadcast(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	hub := NewHub(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, time.Millisecond)

	ev := Event{Pass: 3, Changed: []string{"/scene/a.hcl"}, Replaced: []string{"A"}, Errors: 1}
	require.NoError(t, hub.Publish(ctx, ev))

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var got Event
		require.NoError(t, conn.ReadJSON(&got))
		assert.Equal(t, ev.Pass, got.Pass)
		assert.Equal(t, ev.Replaced, got.Replaced)
		assert.Equal(t, ev.Changed, got.Changed)
		assert.Equal(t, 1, got.Errors)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	hub := NewHub(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, hub.Publish(ctx, Event{Pass: 1}))
}

func TestHub_CloseRejectsClients(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	hub := NewHub(ctx)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, time.Millisecond)
	hub.Close()
	assert.Zero(t, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestMulti(t *testing.T) {
	t.Parallel()

	errDown := errors.New("down")
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errDown}

	err := Multi{failing, ok}.Publish(context.Background(), Event{Pass: 7})
	assert.ErrorIs(t, err, errDown)
	require.Len(t, ok.events, 1, "a failing publisher does not stop the others")
	assert.EqualValues(t, 7, ok.events[0].Pass)
}

func TestEventFromReport(t *testing.T) {
	t.Parallel()

	rep := &reconcile.Report{
		Pass:         2,
		ChangedFiles: []string{"/a.hcl"},
		Added:        []string{"N"},
		Failed:       []string{"A"},
		Diagnostics: diag.Diagnostics{
			diag.Error(&diag.DanglingReferenceError{OwnerID: "A", Target: "X"}),
			diag.Warning(&diag.CycleError{Members: []string{"B"}}),
		},
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	ev := EventFromReport(rep, now)
	assert.Equal(t, Event{
		Pass:     2,
		Time:     now,
		Changed:  []string{"/a.hcl"},
		Added:    []string{"N"},
		Failed:   []string{"A"},
		Errors:   1,
		Warnings: 1,
	}, ev)
}

func TestNewSocketIO_InvalidURL(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	_, err := NewSocketIO(ctx, "localhost", "")
	assert.ErrorContains(t, err, "must include a scheme and host")
}

func TestSocketIO_Publish(t *testing.T) {
	t.Parallel()
	ctx, _ := testutil.Context(t)

	received := make(chan map[string]any, 2)
	server := sioserver.NewServer(nil, nil)
	server.On("connection", func(clients ...any) {
		client := clients[0].(*sioserver.Socket)
		client.On(EventName, func(args ...any) {
			if len(args) == 0 {
				return
			}
			if payload, ok := args[0].(map[string]any); ok {
				received <- payload
			}
		})
	})
	srv := httptest.NewServer(server.ServeHandler(nil))
	defer srv.Close()
	defer server.Close(nil)

	pub, err := NewSocketIO(ctx, srv.URL, "/")
	require.NoError(t, err)
	defer pub.Close()

	// Published before the connection is up, delivered once it is.
	require.NoError(t, pub.Publish(ctx, Event{Pass: 1, Added: []string{"A"}}))
	require.Eventually(t, pub.Connected, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, pub.Publish(ctx, Event{Pass: 2, Failed: []string{"B"}}))

	var got []map[string]any
	for len(got) < 2 {
		select {
		case payload := <-received:
			got = append(got, payload)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of 2 reload events", len(got))
		}
	}
	assert.EqualValues(t, 1, got[0]["pass"])
	assert.Equal(t, []any{"A"}, got[0]["added"])
	assert.EqualValues(t, 2, got[1]["pass"])
	assert.Equal(t, []any{"B"}, got[1]["failed"])
}
