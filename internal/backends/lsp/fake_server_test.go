package lsp

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"sync"
	"testing"
)

// fakeServer is an in-process language server on the far end of two pipes.
type fakeServer struct {
	in     *bufio.Reader
	out    io.WriteCloser
	queue  chan []byte
	mu     sync.Mutex
	seen   []string
	closed bool
}

// newPipeConn connects a Conn to a fake server whose handler sees every
// message the client sends, in order.
func newPipeConn(t *testing.T, handle func(s *fakeServer, msg message)) (*Conn, *fakeServer) {
	t.Helper()
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()

	s := &fakeServer{in: bufio.NewReader(c2sR), out: s2cW, queue: make(chan []byte, 64)}
	conn := NewConn(s2cR, c2sW, nil)

	go func() {
		for frame := range s.queue {
			if _, err := s.out.Write(frame); err != nil {
				return
			}
		}
		_ = s.out.Close()
	}()
	go func() {
		for {
			body, err := readFrame(s.in)
			if err != nil {
				return
			}
			var msg message
			if json.Unmarshal(body, &msg) != nil {
				continue
			}
			s.mu.Lock()
			s.seen = append(s.seen, msg.Method)
			s.mu.Unlock()
			handle(s, msg)
		}
	}()

	t.Cleanup(func() {
		_ = c2sW.Close()
		s.hangUp()
	})
	return conn, s
}

func (s *fakeServer) send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	s.sendRaw("Content-Length: " + strconv.Itoa(len(data)) + "\r\n\r\n" + string(data))
}

func (s *fakeServer) sendRaw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.queue <- []byte(frame)
	}
}

func (s *fakeServer) respond(id json.RawMessage, result interface{}) {
	s.send(map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result})
}

func (s *fakeServer) fail(id json.RawMessage, code int, text string) {
	s.send(map[string]interface{}{"jsonrpc": "2.0", "id": id, "error": map[string]interface{}{"code": code, "message": text}})
}

// hangUp closes the server's output once queued frames are written.
func (s *fakeServer) hangUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.queue)
}

func (s *fakeServer) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func (s *fakeServer) count(method string) int {
	n := 0
	for _, m := range s.methods() {
		if m == method {
			n++
		}
	}
	return n
}
