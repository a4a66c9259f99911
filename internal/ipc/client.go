package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/noded/noded/internal/config"
	"github.com/noded/noded/internal/idgen"
)

// CallError is a daemon-reported failure carrying the error Kind across
// the IPC boundary so the CLI can map it to an exit code without parsing
// the message text (spec.md §6 Exit codes).
type CallError struct {
	Kind    config.Kind
	Message string
}

func (e *CallError) Error() string { return e.Message }

// DefaultTimeout bounds a single request/response round trip.
const DefaultTimeout = 30 * time.Second

// Client is a thin synchronous request/response wrapper over one
// short-lived connection per call, matching the CLI's one-shot-verb usage
// (spec.md §6): each command dials, sends one request, waits for its
// matching reply, and disconnects.
type Client struct {
	sockPath string
	timeout  time.Duration
}

// NewClient builds a client bound to sockPath with DefaultTimeout.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of the client using the given round-trip
// timeout instead of DefaultTimeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	return &Client{sockPath: c.sockPath, timeout: d}
}

// IsRunning reports whether a daemon is listening on the socket.
func (c *Client) IsRunning() bool {
	conn, err := c.dial()
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) dial() (net.Conn, error) {
	return net.DialTimeout("unix", c.sockPath, 2*time.Second)
}

// Call sends one request of the given type and decodes the reply's data
// into out (which may be nil if the caller does not need the payload).
func (c *Client) Call(msgType MessageType, payload any, out any) error {
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	var data []byte
	if payload != nil {
		data, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req := Request{
		ID:        idgen.New(),
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now(),
	}
	reqData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	writer := bufio.NewWriter(conn)
	if _, err := writer.Write(reqData); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}

	if !resp.Success {
		msg, kind := extractError(resp.Data)
		return &CallError{Kind: config.Kind(kind), Message: msg}
	}

	if out == nil || resp.Data == nil {
		return nil
	}
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("failed to re-encode response data: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func extractError(data any) (message, kind string) {
	m, ok := data.(map[string]any)
	if !ok {
		return "unknown error", ""
	}
	if msg, ok := m["error"].(string); ok {
		message = msg
	} else {
		message = "unknown error"
	}
	if k, ok := m["kind"].(string); ok {
		kind = k
	}
	return message, kind
}

// Ping checks that the daemon is alive and responsive.
func (c *Client) Ping() error {
	return c.Call(TypePing, nil, nil)
}

// Start asks the daemon to start a process from raw JSON config bytes.
func (c *Client) Start(configJSON []byte, out any) error {
	return c.Call(TypeStart, StartData{Config: configJSON}, out)
}

// Stop asks the daemon to stop a process by id or name.
func (c *Client) Stop(idOrName string, force bool) error {
	return c.Call(TypeStop, ProcessRefData{ProcessID: idOrName, Force: force}, nil)
}

// Restart asks the daemon to restart a process by id or name.
func (c *Client) Restart(idOrName string, graceful bool, out any) error {
	return c.Call(TypeRestart, ProcessRefData{ProcessID: idOrName, Graceful: graceful}, out)
}

// List retrieves the fleet snapshot.
func (c *Client) List(out any) error {
	return c.Call(TypeList, nil, out)
}

// Status retrieves one process's current snapshot.
func (c *Client) Status(idOrName string, out any) error {
	return c.Call(TypeStatus, ProcessRefData{ProcessID: idOrName}, out)
}

// Logs retrieves the most recent log lines, optionally scoped to a process.
func (c *Client) Logs(idOrName string, lines int, out any) error {
	return c.Call(TypeLogs, LogsData{ProcessID: idOrName, Lines: lines}, out)
}

// Shutdown asks the daemon to terminate gracefully.
func (c *Client) Shutdown() error {
	return c.Call(TypeShutdown, nil, nil)
}
