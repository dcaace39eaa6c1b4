package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/pdfqa/internal/document"
	"github.com/Aman-CERP/pdfqa/internal/index"
	"github.com/Aman-CERP/pdfqa/internal/query"
	"github.com/Aman-CERP/pdfqa/internal/reconcile"
)

// UploadTimeout bounds a documents.upload call, which includes sending the
// file to the backend.
const UploadTimeout = 5 * time.Minute

// Client talks to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a daemon client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{socketPath: cfg.SocketPath, timeout: timeout}
}

// Connect dials the daemon socket.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	return c.call(ctx, c.timeout, MethodPing, nil, &res)
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var res StatusResult
	if err := c.call(ctx, c.timeout, MethodStatus, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListDocuments lists the owner's documents.
func (c *Client) ListDocuments(ctx context.Context) ([]document.Record, error) {
	var res []document.Record
	if err := c.call(ctx, c.timeout, MethodDocumentsList, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// DocumentStatus reconciles and returns one document's status.
func (c *Client) DocumentStatus(ctx context.Context, documentID string) (document.Status, error) {
	var res StatusResponse
	if err := c.call(ctx, c.timeout, MethodDocumentsStatus, DocumentParams{DocumentID: documentID}, &res); err != nil {
		return "", err
	}
	return res.Status, nil
}

// ToggleDocument flips a document's inclusion in query scope.
func (c *Client) ToggleDocument(ctx context.Context, documentID string) (*ToggleResult, error) {
	var res ToggleResult
	if err := c.call(ctx, c.timeout, MethodDocumentsToggle, DocumentParams{DocumentID: documentID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, documentID string) error {
	var res DocumentParams
	return c.call(ctx, c.timeout, MethodDocumentsDelete, DocumentParams{DocumentID: documentID}, &res)
}

// UploadDocument asks the daemon to upload a local file.
func (c *Client) UploadDocument(ctx context.Context, p UploadParams) (*document.Record, error) {
	var res document.Record
	if err := c.call(ctx, UploadTimeout, MethodDocumentsUpload, p, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitQuery starts a query job.
func (c *Client) SubmitQuery(ctx context.Context, text, model string) (index.JobHandle, error) {
	var res QueryHandle
	if err := c.call(ctx, c.timeout, MethodQuerySubmit, QuerySubmitParams{Text: text, Model: model}, &res); err != nil {
		return index.JobHandle{}, err
	}
	return index.JobHandle{ThreadID: res.ThreadID, RunID: res.RunID}, nil
}

// QueryResult reads the state of a query job.
func (c *Client) QueryResult(ctx context.Context, h index.JobHandle) (query.Result, error) {
	var res query.Result
	err := c.call(ctx, c.timeout, MethodQueryResult, QueryResultParams{ThreadID: h.ThreadID, RunID: h.RunID}, &res)
	return res, err
}

// Models lists the model catalog.
func (c *Client) Models(ctx context.Context) ([]query.Model, error) {
	var res []query.Model
	if err := c.call(ctx, c.timeout, MethodModelsList, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Sweep runs one reconciliation sweep now.
func (c *Client) Sweep(ctx context.Context) (reconcile.SweepResult, error) {
	var res reconcile.SweepResult
	err := c.call(ctx, UploadTimeout, MethodSweepRun, nil, &res)
	return res, err
}

type clientResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// call performs one request on a fresh connection and decodes the result
// into out.
func (c *Client) call(ctx context.Context, timeout time.Duration, method string, params, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	req := Request{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID()}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp clientResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to receive response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error.Err()
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
