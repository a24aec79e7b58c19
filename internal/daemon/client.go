package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/meilihook/internal/entry"
)

// Client calls the daemon over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    timeout,
	}
}

// Connect establishes a connection to the daemon.
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

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, fmt.Errorf("status failed: %w", err)
	}
	return &status, nil
}

// AfterCreate runs the create hook in the daemon.
func (c *Client) AfterCreate(ctx context.Context, collection string, e entry.Entry) error {
	return c.hook(ctx, MethodAfterCreate, collection, e)
}

// AfterUpdate runs the update hook in the daemon.
func (c *Client) AfterUpdate(ctx context.Context, collection string, e entry.Entry) error {
	return c.hook(ctx, MethodAfterUpdate, collection, e)
}

// AfterDelete runs the delete hook in the daemon. A single record is sent as
// an object, several as an array.
func (c *Client) AfterDelete(ctx context.Context, collection string, records entry.Records) error {
	if len(records) == 1 {
		return c.hook(ctx, MethodAfterDelete, collection, records[0])
	}
	return c.hook(ctx, MethodAfterDelete, collection, records)
}

func (c *Client) hook(ctx context.Context, method, collection string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	params := HookParams{Collection: collection, Entry: raw}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}

	var res AcceptedResult
	if err := c.call(ctx, method, params, &res); err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	return nil
}

// call sends one request on a fresh connection and decodes the result.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{JSONRPC: "2.0", Method: method, ID: c.nextID()}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		req.Params = data
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	return fmt.Sprintf("req-%d", c.requestID.Add(1))
}
