package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/kverlaine/opsdeck/internal/gateway"
)

const (
	// maxMessageSize caps one request message (1MB).
	maxMessageSize = 1024 * 1024
	// readTimeout bounds how long a connected client may take to send
	// its request.
	readTimeout = 30 * time.Second
	// socketPermissions restrict the socket to the owning user.
	socketPermissions = 0600
)

// Server serves the local gateway over a Unix socket. One request per
// connection; clients reconnect per invocation.
type Server struct {
	sockPath string
	local    *gateway.Local
	logger   *slog.Logger

	// shutdown is called when a client sends agent.stop, after the
	// response has been written.
	shutdown func()

	mu        sync.RWMutex
	listener  net.Listener
	running   bool
	startTime time.Time
}

// NewServer creates a Server over an assembled command table. shutdown
// may be nil when remote stop is not wanted.
func NewServer(sockPath string, local *gateway.Local, logger *slog.Logger, shutdown func()) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sockPath: sockPath,
		local:    local,
		logger:   logger,
		shutdown: shutdown,
	}
	s.registerBuiltins()
	return s
}

// registerBuiltins adds the agent's own commands to the table.
func (s *Server) registerBuiltins() {
	s.local.Register("agent.ping", func(ctx context.Context, _ json.RawMessage) (any, error) {
		s.mu.RLock()
		start := s.startTime
		s.mu.RUnlock()
		return PingResponse{
			Status:    "running",
			PID:       os.Getpid(),
			StartTime: start.Format(time.RFC3339),
			Uptime:    time.Since(start).Round(time.Second).String(),
			Commands:  s.local.Commands(),
		}, nil
	})

	s.local.Register("agent.stop", func(ctx context.Context, _ json.RawMessage) (any, error) {
		if s.shutdown == nil {
			return nil, fmt.Errorf("remote stop not enabled")
		}
		return map[string]string{"status": "stopping"}, nil
	})
}

// Start listens on the socket and serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("agent already running")
	}
	s.mu.Unlock()

	// A previous crash may have left the socket behind.
	_ = os.Remove(s.sockPath)

	listener, err := net.Listen("unix", s.sockPath)
	if err != nil {
		return fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(s.sockPath, socketPermissions); err != nil {
		_ = listener.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.startTime = time.Now()
	s.mu.Unlock()

	s.logger.Info("agent started", "socket", s.sockPath)

	go s.serve(ctx)

	<-ctx.Done()
	return s.Stop()
}

// Stop closes the listener and removes the socket.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error("error closing listener", "error", err)
		}
		s.listener = nil
	}
	_ = os.Remove(s.sockPath)

	s.logger.Info("agent stopped")
	return nil
}

// serve accepts connections until shutdown.
func (s *Server) serve(ctx context.Context) {
	for {
		s.mu.RLock()
		listener := s.listener
		s.mu.RUnlock()
		if listener == nil {
			return
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return
			}
			s.logger.Error("accept error", "error", err)
			continue
		}

		go s.handleConnection(ctx, conn)
	}
}

// handleConnection reads one request, dispatches it through the gateway,
// and writes the response.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		s.logger.Error("set read deadline", "error", err)
		return
	}

	decoder := json.NewDecoder(io.LimitReader(conn, maxMessageSize))
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(Response{Result: gateway.Failf("decode request: %v", err)})
		return
	}

	res := s.local.Invoke(ctx, req.Command, req.Args)
	_ = encoder.Encode(Response{Result: res, ID: req.ID})

	// The stop command resolves only after its acknowledgement is on
	// the wire.
	if req.Command == "agent.stop" && res.OK && s.shutdown != nil {
		s.shutdown()
	}
}
