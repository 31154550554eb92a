package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "reviewctx/internal/errors"
)

func TestConn_OutOfOrderResponses(t *testing.T) {
	var first *message
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {
		if first == nil {
			m := msg
			first = &m
			return
		}
		s.respond(msg.ID, msg.Method+"-result")
		s.respond(first.ID, first.Method+"-result")
	})

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i, method := range []string{"one", "two"} {
		i, method := i, method
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = conn.Call(context.Background(), method, nil, &results[i])
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, "one-result", results[0])
	assert.Equal(t, "two-result", results[1])
}

func TestConn_OversizedFrameClosesConnection(t *testing.T) {
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {
		s.sendRaw("Content-Length: 4611686018427387904\r\n\r\n{}")
	})

	err := conn.Call(context.Background(), "ping", nil, nil)
	require.Error(t, err)
	assert.True(t, rerrors.HasCode(err, rerrors.BackendUnavailable))

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop")
	}
	assert.ErrorIs(t, conn.Err(), errFrameTooLarge)
}

func TestReadFrame_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		want    string
	}{
		{"small", "Content-Length: 2\r\n\r\n{}", nil, "{}"},
		{"over limit", "Content-Length: " + strconv.Itoa(maxFrameSize+1) + "\r\n\r\n{}", errFrameTooLarge, ""},
		{"max int", "Content-Length: 9223372036854775807\r\n\r\n", errFrameTooLarge, ""},
		{"missing length", "X-Other: 1\r\n\r\n", errBadFrame, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := readFrame(bufio.NewReader(strings.NewReader(tt.input)))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, body)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(body))
		})
	}
}

func TestConn_TimeoutFailsOnlyThatRequest(t *testing.T) {
	var slowID json.RawMessage
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {
		switch msg.Method {
		case "slow":
			slowID = msg.ID
		case "fast":
			// the late answer to the timed out request must be dropped
			s.respond(slowID, "late")
			s.respond(msg.ID, "fast")
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	var out string
	err := conn.Call(ctx, "slow", nil, &out)
	require.Error(t, err)
	assert.True(t, rerrors.HasCode(err, rerrors.Timeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, conn.Call(context.Background(), "fast", nil, &out))
	assert.Equal(t, "fast", out)
}

func TestConn_CancelIsNotTimeout(t *testing.T) {
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := conn.Call(ctx, "never", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, rerrors.HasCode(err, rerrors.Timeout))
}

func TestConn_MalformedFramesSkipped(t *testing.T) {
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {
		s.sendRaw("Content-Type: application/vscode-jsonrpc\r\n\r\n")
		s.sendRaw("Content-Length: 6\r\n\r\n{oops}")
		s.respond(msg.ID, 42)
	})
	var n int
	require.NoError(t, conn.Call(context.Background(), "ping", nil, &n))
	assert.Equal(t, 42, n)
}

func TestConn_ErrorResponse(t *testing.T) {
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {
		s.fail(msg.ID, MethodNotFound, "unknown method")
	})
	err := conn.Call(context.Background(), "bogus", nil, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, MethodNotFound, rpcErr.Code)
}

func TestConn_ServerRequestGetsNullResult(t *testing.T) {
	replies := make(chan message, 1)
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {
		switch {
		case msg.Method == "ping":
			s.send(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      "srv-1",
				"method":  "workspace/configuration",
				"params":  map[string]interface{}{},
			})
			s.respond(msg.ID, "pong")
		case msg.Method == "":
			replies <- msg
		}
	})

	var out string
	require.NoError(t, conn.Call(context.Background(), "ping", nil, &out))
	select {
	case r := <-replies:
		assert.Equal(t, `"srv-1"`, string(r.ID))
		assert.Equal(t, "null", string(r.Result))
	case <-time.After(2 * time.Second):
		t.Fatal("server request was not answered")
	}
}

func TestConn_PeerClosed(t *testing.T) {
	conn, _ := newPipeConn(t, func(s *fakeServer, msg message) {
		s.hangUp()
	})
	err := conn.Call(context.Background(), "ping", nil, nil)
	require.Error(t, err)
	assert.True(t, rerrors.HasCode(err, rerrors.BackendUnavailable))

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop")
	}
}
