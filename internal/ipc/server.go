package ipc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/noded/noded/internal/config"
	"go.uber.org/zap"
)

// maxMessageSize bounds one request frame so a client that never sends a
// newline cannot grow a connection's buffer without limit.
const maxMessageSize = 4 * 1024 * 1024

// Handler answers one decoded Request and returns the data payload to
// wrap in a success Response, or an error to wrap in a failure Response.
type Handler func(req Request) (any, error)

// Server binds a unix socket and dispatches newline-framed JSON requests
// to registered Handlers (spec.md §4.6).
type Server struct {
	log      *zap.Logger
	sockPath string

	handlers map[MessageType]Handler

	mu       sync.RWMutex
	listener net.Listener
	running  bool
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer binds no socket yet; call Start to listen.
func NewServer(log *zap.Logger, sockPath string) *Server {
	return &Server{
		log:      log,
		sockPath: sockPath,
		handlers: make(map[MessageType]Handler),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Handle registers the handler for a message type. Call before Start.
func (s *Server) Handle(t MessageType, h Handler) {
	s.handlers[t] = h
}

// Start removes any stale socket endpoint, binds a fresh unix listener at
// 0600, and begins accepting connections in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("ipc server already running")
	}

	if err := removeStaleSocket(s.sockPath); err != nil {
		s.mu.Unlock()
		return err
	}

	listener, err := net.Listen("unix", s.sockPath)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to bind socket %s: %w", s.sockPath, err)
	}
	if err := os.Chmod(s.sockPath, 0o600); err != nil {
		listener.Close()
		s.mu.Unlock()
		return fmt.Errorf("failed to chmod socket: %w", err)
	}

	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// removeStaleSocket unlinks a previous endpoint left behind by an
// unclean shutdown so a fresh bind does not fail with "address in use".
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if _, err := net.Dial("unix", path); err == nil {
		return fmt.Errorf("socket %s already has a live listener", path)
	}
	return os.Remove(path)
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return
			}
			s.log.Warn("ipc accept error", zap.Error(err))
			continue
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			s.handleConn(conn)
		}()
	}
}

// handleConn owns one connection's byte buffer for its lifetime. Unlike a
// single ReadBytes('\n') call, it keeps reading until the connection
// closes, splitting the accumulated buffer on newlines and preserving any
// trailing partial segment across reads, so a client can send multiple
// pipelined requests on one connection and a request split across TCP/unix
// socket read boundaries is reassembled correctly (spec.md §4.6).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	writer := bufio.NewWriter(conn)

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			buf = s.drainMessages(buf, writer)
			if len(buf) > maxMessageSize {
				s.writeResponse(writer, errorResponse("", &config.Error{Kind: config.ErrProtocolError, Message: "message exceeds maximum size"}))
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// drainMessages extracts and dispatches every complete newline-terminated
// segment from buf, returning the undispatched remainder (a trailing
// partial segment, or an empty slice). A segment that fails to parse gets
// a protocol-error reply keyed to whatever id it did carry (or empty) and
// does not tear down the connection — only the one bad message is
// rejected.
func (s *Server) drainMessages(buf []byte, writer *bufio.Writer) []byte {
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			return buf
		}
		line := buf[:idx]
		buf = buf[idx+1:]
		s.dispatch(line, writer)
	}
}

func (s *Server) dispatch(line []byte, writer *bufio.Writer) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.writeResponse(writer, errorResponse(req.ID, &config.Error{Kind: config.ErrProtocolError, Message: "malformed request: " + err.Error()}))
		return
	}

	handler, ok := s.handlers[req.Type]
	if !ok {
		s.writeResponse(writer, errorResponse(req.ID, &config.Error{Kind: config.ErrProtocolError, Message: "unknown message type: " + string(req.Type)}))
		return
	}

	data, err := handler(req)
	if err != nil {
		s.writeResponse(writer, errorResponse(req.ID, err))
		return
	}
	s.writeResponse(writer, successResponse(req.ID, data))
}

func (s *Server) writeResponse(writer *bufio.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal ipc response", zap.Error(err))
		return
	}
	if _, err := writer.Write(data); err != nil {
		return
	}
	writer.WriteByte('\n')
	writer.Flush()
}

// Stop stops accepting new connections, closes the listener, and removes
// the socket endpoint. It closes every open connection and waits for their
// goroutines to exit before returning.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	listener := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()

	if removeErr := os.Remove(s.sockPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		if err == nil {
			err = removeErr
		}
	}
	return err
}
