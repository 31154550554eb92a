package toolchain

import (
	"context"
	"errors"
	"testing"
)

func TestMockRunner_LookPath(t *testing.T) {
	m := NewMockRunner()
	m.SetLookPath("gopls", "/usr/local/bin/gopls")

	p, err := m.LookPath("gopls")
	if err != nil || p != "/usr/local/bin/gopls" {
		t.Fatalf("LookPath(gopls) = %q, %v", p, err)
	}
	if _, err := m.LookPath("clangd"); !IsNotFound(err) {
		t.Errorf("LookPath(clangd) err = %v, want not found", err)
	}
}

func TestMockRunner_Run(t *testing.T) {
	m := NewMockRunner()
	m.SetCommand("eslint", Output{Stdout: "[]"}, nil)
	m.SetCommand("semgrep --json a.py", Output{Stdout: "{}"}, nil)

	out, err := m.Run(context.Background(), Command{Name: "eslint", Args: []string{"--format=json", "x.js"}})
	if err != nil || out.Stdout != "[]" {
		t.Errorf("Run(eslint) = %+v, %v", out, err)
	}
	out, err = m.Run(context.Background(), Command{Name: "semgrep", Args: []string{"--json", "a.py"}})
	if err != nil || out.Stdout != "{}" {
		t.Errorf("Run(semgrep) = %+v, %v", out, err)
	}
	if _, err := m.Run(context.Background(), Command{Name: "missing"}); !IsNotFound(err) {
		t.Errorf("Run(missing) err = %v, want not found", err)
	}
	if got := len(m.Calls()); got != 3 {
		t.Errorf("len(Calls()) = %d, want 3", got)
	}
}

func TestMockRunner_CancelledContext(t *testing.T) {
	m := NewMockRunner()
	m.SetCommand("eslint", Output{Stdout: "[]"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Run(ctx, Command{Name: "eslint"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCachingRunner_LookPath(t *testing.T) {
	m := NewMockRunner()
	m.SetLookPath("rust-analyzer", "/bin/rust-analyzer")
	c := NewCachingRunner(m)

	for i := 0; i < 3; i++ {
		if _, err := c.LookPath("rust-analyzer"); err != nil {
			t.Fatalf("LookPath: %v", err)
		}
		if _, err := c.LookPath("pyright-langserver"); err == nil {
			t.Fatal("expected miss")
		}
	}
	if got := len(m.Lookups()); got != 2 {
		t.Errorf("inner lookups = %d, want 2", got)
	}
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "typescript-language-server", Args: []string{"--stdio"}}
	if got := c.String(); got != "typescript-language-server --stdio" {
		t.Errorf("String() = %q", got)
	}
	if got := (Command{Name: "gopls"}).String(); got != "gopls" {
		t.Errorf("String() = %q", got)
	}
}
