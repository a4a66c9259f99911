// Package ipc implements the daemon's local-socket control protocol:
// newline-framed JSON requests dispatched to handlers, newline-framed
// JSON responses streamed back (spec.md §4.6).
package ipc

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/noded/noded/internal/config"
)

// MessageType enumerates every request type the server accepts
// (spec.md §4.6 Message shape).
type MessageType string

const (
	TypePing     MessageType = "ping"
	TypeStart    MessageType = "start"
	TypeStop     MessageType = "stop"
	TypeRestart  MessageType = "restart"
	TypeList     MessageType = "list"
	TypeStatus   MessageType = "status"
	TypeLogs     MessageType = "logs"
	TypeShutdown MessageType = "shutdown"
	TypeWebUI    MessageType = "webui"
)

// Request is one client message: `{id, type, data?, timestamp}`.
type Request struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Response is one server reply: `{id, success, data?, timestamp}`; on
// failure data is `{error: <message>}`.
type Response struct {
	ID        string    `json:"id"`
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func errorResponse(id string, err error) Response {
	payload := map[string]string{"error": err.Error()}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		payload["kind"] = string(cfgErr.Kind)
	}
	return Response{
		ID:        id,
		Success:   false,
		Data:      payload,
		Timestamp: time.Now(),
	}
}

func successResponse(id string, data any) Response {
	return Response{ID: id, Success: true, Data: data, Timestamp: time.Now()}
}

// StartData is the payload of a `start` request.
type StartData struct {
	Config json.RawMessage `json:"config"`
}

// ProcessRefData identifies a ManagedProcess by id or name — every
// handler that needs a target accepts either (spec.md §4.6 Handlers).
type ProcessRefData struct {
	ProcessID string `json:"processId,omitempty"`
	Name      string `json:"name,omitempty"`
	Force     bool   `json:"force,omitempty"`
	Graceful  bool   `json:"graceful,omitempty"`
}

// LogsData is the payload of a `logs` request.
type LogsData struct {
	ProcessID string `json:"processId,omitempty"`
	Name      string `json:"name,omitempty"`
	Lines     int    `json:"lines,omitempty"`
}
