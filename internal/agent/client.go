package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/kverlaine/opsdeck/internal/gateway"
)

// DefaultClientTimeout bounds one round trip to the agent.
const DefaultClientTimeout = 5 * time.Second

// Client is a gateway.Gateway that forwards every invocation to the
// agent over its Unix socket. One connection per call.
type Client struct {
	sockPath string
	timeout  time.Duration
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient creates a client for the agent socket.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath, timeout: DefaultClientTimeout}
}

// SetTimeout overrides the per-call timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Invoke forwards the command to the agent. Transport failures are
// folded into the Result like every other gateway failure.
func (c *Client) Invoke(ctx context.Context, command string, args any) gateway.Result {
	start := time.Now()
	res, err := c.call(ctx, command, args)
	if err != nil {
		out := gateway.Fail(err)
		out.ElapsedMs = time.Since(start).Milliseconds()
		return out
	}
	return res
}

// call performs one request/response exchange.
func (c *Client) call(ctx context.Context, command string, args any) (gateway.Result, error) {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.sockPath)
	if err != nil {
		return gateway.Result{}, c.wrapConnError(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.SetDeadline(deadline); err != nil {
		return gateway.Result{}, fmt.Errorf("set deadline: %w", err)
	}

	req := Request{Command: command, Args: args}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return gateway.Result{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return gateway.Result{}, fmt.Errorf("read response: %w", err)
	}
	return resp.Result, nil
}

// wrapConnError converts transport errors into messages a console user
// can act on.
func (c *Client) wrapConnError(err error) error {
	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ENOENT:
			return errors.New("agent not running (socket not found)")
		case syscall.ECONNREFUSED:
			return errors.New("agent not running (connection refused)")
		}
	}
	if os.IsNotExist(err) {
		return errors.New("agent not running (socket not found)")
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return errors.New("agent request timed out")
	}
	return fmt.Errorf("connect to agent: %w", err)
}

// Ping asks the agent for its status.
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	res := c.Invoke(ctx, "agent.ping", nil)
	var ping PingResponse
	if err := gateway.Decode(res, &ping); err != nil {
		return nil, err
	}
	return &ping, nil
}

// StopAgent asks the agent to shut down.
func (c *Client) StopAgent(ctx context.Context) error {
	res := c.Invoke(ctx, "agent.stop", nil)
	if !res.OK {
		return fmt.Errorf("stop agent: %s", res.Error)
	}
	return nil
}

// IsRunning reports whether something is accepting on the socket.
func (c *Client) IsRunning() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
