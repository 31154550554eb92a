package errors

import (
	"sync"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal condition surfaced alongside a successful result.
type Diagnostic struct {
	Code     ErrorCode `json:"code"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Path     string    `json:"path,omitempty"`
}

// Warn builds a warning diagnostic.
func Warn(code ErrorCode, path, message string) Diagnostic {
	return Diagnostic{Code: code, Severity: SeverityWarning, Message: message, Path: path}
}

// FromError converts an error into a diagnostic, keeping its code when present.
func FromError(err error, path string, severity Severity) Diagnostic {
	msg := err.Error()
	if e, ok := err.(*Error); ok {
		msg = e.Message
		if e.cause != nil {
			msg += ": " + e.cause.Error()
		}
	}
	return Diagnostic{Code: CodeOf(err), Severity: severity, Message: msg, Path: path}
}

// Collector accumulates diagnostics from concurrent workers in arrival order.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends diagnostics.
func (c *Collector) Add(d ...Diagnostic) {
	if c == nil || len(d) == 0 {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, d...)
	c.mu.Unlock()
}

// Items returns a copy of the collected diagnostics.
func (c *Collector) Items() []Diagnostic {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Count returns how many diagnostics carry the given code.
func (c *Collector) Count(code ErrorCode) int {
	n := 0
	for _, d := range c.Items() {
		if d.Code == code {
			n++
		}
	}
	return n
}
