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

	"github.com/Aman-CERP/pdfqa/internal/document"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
)

// RequestHandler serves RPC methods for the daemon's owner.
type RequestHandler interface {
	ListDocuments(ctx context.Context) ([]document.Record, error)
	DocumentStatus(ctx context.Context, documentID string) (document.Status, error)
	ToggleDocument(ctx context.Context, documentID string) (*document.Record, error)
	DeleteDocument(ctx context.Context, documentID string) error
	UploadDocument(ctx context.Context, p UploadParams) (*document.Record, error)
	SubmitQuery(ctx context.Context, p QuerySubmitParams) (index.JobHandle, error)
	QueryResult(ctx context.Context, h index.JobHandle) (query.Result, error)
	Models() []query.Model
	Sweep(ctx context.Context) (reconcile.SweepResult, error)
	GetStatus(ctx context.Context) StatusResult
}

// Server listens on a Unix socket and answers one request per connection.
type Server struct {
	socketPath string
	timeout    time.Duration
	logger     *slog.Logger
	listener   net.Listener
	handler    RequestHandler
	onRequest  func(method string)
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath. timeout bounds reading a
// request and writing its response.
func NewServer(socketPath string, timeout time.Duration, logger *slog.Logger) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{socketPath: socketPath, timeout: timeout, logger: logger}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// SetActivityHook registers fn to run before every dispatched request.
func (s *Server) SetActivityHook(fn func(method string)) {
	s.onRequest = fn
}

// ListenAndServe serves until ctx is cancelled or Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		s.logger.Warn("failed to restrict socket permissions", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
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
			s.logger.Error("accept error", slog.String("error", err.Error()))
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

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("failed to set read deadline", slog.String("error", err.Error()))
	}

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		s.write(conn, NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)

	attrs := []any{slog.String("method", req.Method), slog.Duration("duration", time.Since(start))}
	if resp.Error != nil {
		attrs = append(attrs, slog.Int("code", resp.Error.Code), slog.String("error", resp.Error.Message))
	}
	s.logger.Debug("request handled", attrs...)

	s.write(conn, resp)
}

func (s *Server) write(conn net.Conn, resp Response) {
	if err := conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("failed to set write deadline", slog.String("error", err.Error()))
	}
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Debug("failed to write response", slog.String("error", err.Error()))
	}
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.Method == MethodPing {
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	}
	if s.handler == nil {
		if req.Method == MethodStatus {
			return NewSuccessResponse(req.ID, s.baseStatus())
		}
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}
	if s.onRequest != nil {
		s.onRequest(req.Method)
	}

	switch req.Method {
	case MethodStatus:
		status := s.handler.GetStatus(ctx)
		base := s.baseStatus()
		status.Running, status.PID, status.Uptime = base.Running, base.PID, base.Uptime
		return NewSuccessResponse(req.ID, status)

	case MethodDocumentsList:
		docs, err := s.handler.ListDocuments(ctx)
		return result(req.ID, docs, err)

	case MethodDocumentsStatus:
		var p DocumentParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		status, err := s.handler.DocumentStatus(ctx, p.DocumentID)
		return result(req.ID, StatusResponse{DocumentID: p.DocumentID, Status: status}, err)

	case MethodDocumentsToggle:
		var p DocumentParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		rec, err := s.handler.ToggleDocument(ctx, p.DocumentID)
		if err != nil {
			return ErrorResponseFor(req.ID, err)
		}
		return NewSuccessResponse(req.ID, ToggleResult{DocumentID: rec.ID, IsActive: rec.IsActive})

	case MethodDocumentsDelete:
		var p DocumentParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		err := s.handler.DeleteDocument(ctx, p.DocumentID)
		return result(req.ID, DocumentParams{DocumentID: p.DocumentID}, err)

	case MethodDocumentsUpload:
		var p UploadParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		rec, err := s.handler.UploadDocument(ctx, p)
		return result(req.ID, rec, err)

	case MethodQuerySubmit:
		var p QuerySubmitParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		h, err := s.handler.SubmitQuery(ctx, p)
		return result(req.ID, QueryHandle{ThreadID: h.ThreadID, RunID: h.RunID}, err)

	case MethodQueryResult:
		var p QueryResultParams
		if resp, ok := decodeParams(req, &p); !ok {
			return resp
		}
		res, err := s.handler.QueryResult(ctx, p.Handle())
		return result(req.ID, res, err)

	case MethodModelsList:
		return NewSuccessResponse(req.ID, s.handler.Models())

	case MethodSweepRun:
		res, err := s.handler.Sweep(ctx)
		return result(req.ID, res, err)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func result(id string, v any, err error) Response {
	if err != nil {
		return ErrorResponseFor(id, err)
	}
	return NewSuccessResponse(id, v)
}

type validator interface {
	Validate() error
}

// decodeParams fills dst from the request params and validates it.
func decodeParams(req Request, dst any) (Response, bool) {
	data, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
	}
	if v, ok := dst.(validator); ok {
		if err := v.Validate(); err != nil {
			return ErrorResponseFor(req.ID, err), false
		}
	}
	return Response{}, true
}

func (s *Server) baseStatus() StatusResult {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	return StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(started).Round(time.Second).String(),
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		return l.Close()
	}
	return nil
}
