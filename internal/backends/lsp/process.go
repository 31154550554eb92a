package lsp

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// Process is a running language server speaking over its stdio.
type Process struct {
	cmd    *exec.Cmd
	conn   *Conn
	exited chan struct{}

	killOnce sync.Once
}

// StartProcess spawns bin in dir and connects to its stdio. stderr lines are
// logged at debug level.
func StartProcess(bin string, args []string, dir string, logger *slog.Logger) (*Process, error) {
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	p := &Process{cmd: cmd, exited: make(chan struct{})}
	p.conn = NewConn(stdout, stdin, logger)
	drained := make(chan struct{})
	go func() {
		drainStderr(stderr, logger)
		close(drained)
	}()
	go func() {
		// Wait closes the pipes, so it runs only after both readers hit EOF.
		<-p.conn.Done()
		<-drained
		err := cmd.Wait()
		if logger != nil {
			logger.Debug("language server exited", "command", bin, "error", err)
		}
		close(p.exited)
	}()
	return p, nil
}

// Conn returns the JSON-RPC connection to the process.
func (p *Process) Conn() *Conn { return p.conn }

// Exited is closed once the process has been reaped, which happens only
// after its stdout and stderr reached EOF.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Kill terminates the process if it is still running.
func (p *Process) Kill() error {
	var err error
	p.killOnce.Do(func() {
		_ = p.conn.Close()
		select {
		case <-p.exited:
			return
		default:
		}
		if p.cmd.Process != nil {
			err = p.cmd.Process.Kill()
		}
	})
	return err
}

func drainStderr(r io.Reader, logger *slog.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if logger != nil {
			logger.Debug("language server stderr", "line", sc.Text())
		}
	}
	// keep the pipe flowing after an overlong line
	_, _ = io.Copy(io.Discard, r)
}
