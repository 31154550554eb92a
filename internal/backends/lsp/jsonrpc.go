package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	rerrors "reviewctx/internal/errors"
	"reviewctx/internal/slogutil"
)

// message is the wire form of every JSON-RPC 2.0 frame. Incoming ids are
// kept raw so server requests can be answered with the id they used.
type message struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type outgoing struct {
	Jsonrpc string      `json:"jsonrpc"`
	ID      *int64      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type reply struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// RPCError is an error response from the server.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("LSP error [%d]: %s", e.Code, e.Message)
}

// JSON-RPC error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// ErrClosed is returned for requests on a connection whose reader stopped.
var ErrClosed = errors.New("connection closed")

// Conn is a Content-Length framed JSON-RPC connection. Requests may be issued
// from many goroutines; responses are matched by id in any order.
type Conn struct {
	w      io.WriteCloser
	writeM sync.Mutex
	log    *slog.Logger

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan *message

	done      chan struct{}
	closeOnce sync.Once
	readErr   error
}

// NewConn starts reading frames from r. Writes go to w.
func NewConn(r io.Reader, w io.WriteCloser, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	c := &Conn{
		w:       w,
		log:     logger,
		nextID:  1,
		pending: make(map[int64]chan *message),
		done:    make(chan struct{}),
	}
	go c.readLoop(bufio.NewReader(r))
	return c
}

// Done is closed when the read side ends.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns why the read side ended, once Done is closed.
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.readErr
	default:
		return nil
	}
}

// Call sends a request and decodes the response result into result, which
// may be nil. A deadline on ctx becomes a TIMEOUT error for this request only.
func (c *Conn) Call(ctx context.Context, method string, params, result interface{}) error {
	ch := make(chan *message, 1)
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(outgoing{Jsonrpc: "2.0", ID: &id, Method: method, Params: params}); err != nil {
		c.forget(id)
		return rerrors.New(rerrors.BackendUnavailable, "send "+method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return rerrors.New(rerrors.BackendUnavailable, method, ErrClosed)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return rerrors.New(rerrors.Timeout, method+" timed out", ctx.Err())
		}
		return ctx.Err()
	}
}

// Notify sends a notification.
func (c *Conn) Notify(method string, params interface{}) error {
	return c.write(outgoing{Jsonrpc: "2.0", Method: method, Params: params})
}

// Close closes the write side. The read side ends when the peer closes.
func (c *Conn) Close() error {
	c.writeM.Lock()
	defer c.writeM.Unlock()
	return c.w.Close()
}

func (c *Conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	c.writeM.Lock()
	defer c.writeM.Unlock()
	return writeFrame(c.w, data)
}

func writeFrame(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(data))
	buf.Write(data)
	_, err := w.Write(buf.Bytes())
	return err
}

func (c *Conn) readLoop(r *bufio.Reader) {
	defer c.closeOnce.Do(func() {
		c.mu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.mu.Unlock()
		close(c.done)
	})

	for {
		body, err := readFrame(r)
		if err != nil {
			if errors.Is(err, errBadFrame) {
				c.log.Debug("skipping malformed frame", "error", err)
				continue
			}
			if errors.Is(err, errFrameTooLarge) {
				c.log.Warn("closing connection", "error", err)
			}
			c.readErr = err
			return
		}
		var msg message
		if err := json.Unmarshal(body, &msg); err != nil {
			c.log.Debug("skipping undecodable message", "error", err)
			continue
		}
		c.dispatch(&msg)
	}
}

// maxFrameSize bounds a single message body.
const maxFrameSize = 64 << 20

var (
	errBadFrame      = errors.New("malformed frame")
	errFrameTooLarge = errors.New("frame exceeds size limit")
)

// readFrame returns errBadFrame for recoverable header problems and the
// underlying error when the stream ends. An oversized frame cannot be
// skipped without trusting its length, so it ends the stream.
func readFrame(r *bufio.Reader) ([]byte, error) {
	length := -1
	sawHeader := false
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			if !sawHeader {
				continue
			}
			break
		}
		sawHeader = true
		name, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err == nil && n >= 0 {
				length = n
			}
		}
	}
	if length < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length", errBadFrame)
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", errFrameTooLarge, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Conn) dispatch(msg *message) {
	switch {
	case msg.Method == "" && len(msg.ID) > 0:
		id, err := strconv.ParseInt(string(msg.ID), 10, 64)
		if err != nil {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
		// late or unknown ids are dropped
	case msg.Method != "" && len(msg.ID) > 0:
		// server requests (workspace/configuration, window/workDoneProgress/create, ...)
		if err := c.write(reply{Jsonrpc: "2.0", ID: msg.ID, Result: json.RawMessage("null")}); err != nil {
			c.log.Debug("reply to server request failed", "method", msg.Method, "error", err)
		}
	case msg.Method == "window/logMessage":
		var p struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(msg.Params, &p) == nil {
			c.log.Debug("language server", "message", p.Message)
		}
	}
}
