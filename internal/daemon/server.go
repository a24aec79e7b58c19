package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Aman-CERP/meilihook/internal/entry"
)

// RequestHandler runs the hooks and reports status.
type RequestHandler interface {
	AfterCreate(ctx context.Context, collection string, e entry.Entry)
	AfterUpdate(ctx context.Context, collection string, e entry.Entry)
	AfterDelete(ctx context.Context, collection string, records entry.Records)
	Status() StatusResult
}

// Server listens on a Unix socket and handles one RPC request per connection.
type Server struct {
	socketPath string
	timeout    time.Duration
	handler    RequestHandler
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	started  time.Time
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath.
func NewServer(socketPath string, handler RequestHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		timeout:    30 * time.Second,
		handler:    handler,
		logger:     logger,
	}
}

// SetTimeout sets the per-connection deadline.
func (s *Server) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// ListenAndServe serves until ctx is cancelled or Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A previous crash may have left the socket behind.
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server_listening", slog.String("socket", s.socketPath))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// Uptime returns the time since the server started listening.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("set_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	_ = encoder.Encode(s.handleRequest(ctx, req))
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be \"2.0\"")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})

	case MethodStatus:
		return NewSuccessResponse(req.ID, s.status())

	case MethodAfterCreate, MethodAfterUpdate, MethodAfterDelete:
		return s.handleHook(ctx, req)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// handleHook validates params and runs the hook. Any index failure has already
// been logged by the hook, so the caller always sees an accepted result.
func (s *Server) handleHook(ctx context.Context, req Request) Response {
	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no hook handler configured")
	}

	var params HookParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params")
	}
	if err := params.Validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
	}

	switch req.Method {
	case MethodAfterDelete:
		records, err := entry.DecodeRecords(params.Entry)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		s.handler.AfterDelete(ctx, params.Collection, records)

	default:
		e, err := entry.Decode(params.Entry)
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		if req.Method == MethodAfterCreate {
			s.handler.AfterCreate(ctx, params.Collection, e)
		} else {
			s.handler.AfterUpdate(ctx, params.Collection, e)
		}
	}

	return NewSuccessResponse(req.ID, AcceptedResult{Accepted: true})
}

func (s *Server) status() StatusResult {
	var status StatusResult
	if s.handler != nil {
		status = s.handler.Status()
	}
	status.Running = true
	status.PID = os.Getpid()
	status.Uptime = s.Uptime().Round(time.Second).String()
	if status.Outcomes == nil {
		status.Outcomes = map[string]map[string]int64{}
	}
	return status
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
