package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helperEnv = "REVIEWCTX_LSP_HELPER"

// TestHelperLanguageServer is not a real test. It is the language server the
// process tests spawn by re-running the test binary.
func TestHelperLanguageServer(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	in := bufio.NewReader(os.Stdin)
	answer := func(id json.RawMessage, result interface{}) {
		data, _ := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result})
		_ = writeFrame(os.Stdout, data)
	}
	for {
		body, err := readFrame(in)
		if err != nil {
			os.Exit(1)
		}
		var msg message
		if json.Unmarshal(body, &msg) != nil {
			continue
		}
		switch msg.Method {
		case "initialize":
			answer(msg.ID, map[string]interface{}{"capabilities": map[string]interface{}{}})
		case "shutdown":
			answer(msg.ID, nil)
		case "workspace/symbol":
			answer(msg.ID, []interface{}{})
		case "exit":
			os.Exit(0)
		}
	}
}

func TestBackend_ProcessLifecycle(t *testing.T) {
	t.Setenv(helperEnv, "1")
	b := New(Options{
		Command: os.Args[0],
		Args:    []string{"-test.run=^TestHelperLanguageServer$"},
		Timeout: 5 * time.Second,
	})
	ctx := context.Background()
	require.NoError(t, b.Build(ctx, t.TempDir(), nil))
	require.NotNil(t, b.proc)

	locs, err := b.Lookup(ctx, "Nothing", "")
	require.NoError(t, err)
	assert.Empty(t, locs)

	start := time.Now()
	require.NoError(t, b.Close())
	assert.Less(t, time.Since(start), exitGrace, "server left on exit instead of being killed")

	select {
	case <-b.proc.Exited():
	default:
		t.Fatal("process was not reaped")
	}
	select {
	case <-b.conn.Done():
	default:
		t.Fatal("reader still running after reap")
	}
}
