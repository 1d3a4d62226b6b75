package reload

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"

	"github.com/specialistvlad/resgraph/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventName is the socket.io event emitted for every reload.
const EventName = "scene_reload"

// SocketIO publishes reload events to an editor over socket.io. The client
// connects in the background and reconnects on its own; events published
// while disconnected are buffered by the client.
type SocketIO struct {
	logger    *slog.Logger
	io        *socket.Socket
	connected atomic.Bool
}

// NewSocketIO starts connecting to the socket.io server at rawURL. The URL
// path, if any, is used as the engine.io path.
func NewSocketIO(ctx context.Context, rawURL, namespace string) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("component", "reload_socketio", "url", rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reload URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("reload URL %q must include a scheme and host", rawURL)
	}
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	if parsed.Path != "" && parsed.Path != "/" {
		opts.SetPath(parsed.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := socket.NewManager(baseURL, opts)
	s := &SocketIO{logger: logger, io: manager.Socket(namespace, opts)}

	s.io.On(types.EventName("connect"), func(...any) {
		s.connected.Store(true)
		logger.Info("Connected to reload server.", "sid", s.io.Id())
	})
	s.io.On(types.EventName("disconnect"), func(reason ...any) {
		s.connected.Store(false)
		logger.Warn("Disconnected from reload server.", "reason", reason)
	})
	s.io.On(types.EventName("connect_error"), func(errs ...any) {
		logger.Debug("Reload server connection attempt failed.", "error", errs)
	})

	logger.Debug("Connecting to reload server.")
	s.io.Connect()
	return s, nil
}

// Connected reports whether the client currently has a connection.
func (s *SocketIO) Connected() bool {
	return s.connected.Load()
}

// Publish implements Publisher.
func (s *SocketIO) Publish(_ context.Context, ev Event) error {
	if !s.connected.Load() {
		s.logger.Debug("Reload server not connected, event buffered.", "pass", ev.Pass)
	}
	s.io.Emit(EventName, ev)
	return nil
}

// Close disconnects the client.
func (s *SocketIO) Close() {
	s.io.Disconnect()
}
