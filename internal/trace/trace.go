// Package trace is the verifier's leveled tracer. It exists for --trace
// debugging of the driver and the checker; diagnostics never go through it.
package trace

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level controls verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff Level = iota
	// LevelPhase emits driver phase boundaries.
	LevelPhase
	// LevelFunc adds per-function checking events.
	LevelFunc
	// LevelDebug emits everything.
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelPhase:
		return "phase"
	case LevelFunc:
		return "func"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a flag value to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off", "":
		return LevelOff, nil
	case "phase":
		return LevelPhase, nil
	case "func":
		return LevelFunc, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|phase|func|debug)", s)
	}
}

// Scope is the granularity an event belongs to; coarser scopes have lower
// values so a level admits everything at or above its coarseness.
type Scope uint8

const (
	// ScopeDriver covers whole-module operations.
	ScopeDriver Scope = iota + 1
	// ScopeFunc covers one function's verification.
	ScopeFunc
	// ScopeDetail covers pass-internal events.
	ScopeDetail
)

// admits reports whether events of the scope pass the level.
func (l Level) admits(scope Scope) bool {
	switch l {
	case LevelPhase:
		return scope <= ScopeDriver
	case LevelFunc:
		return scope <= ScopeFunc
	case LevelDebug:
		return true
	default:
		return false
	}
}

// Event is one trace line.
type Event struct {
	Time   time.Time
	Seq    uint64
	Scope  Scope
	Name   string
	Detail string
}

// Tracer receives events. Implementations must be goroutine-safe.
type Tracer interface {
	Emit(scope Scope, name, detail string)
	Enabled() bool
	Close() error
}

type nopTracer struct{}

func (nopTracer) Emit(Scope, string, string) {}
func (nopTracer) Enabled() bool              { return false }
func (nopTracer) Close() error               { return nil }

// Nop is the shared disabled tracer.
var Nop Tracer = nopTracer{}

var seq atomic.Uint64

// StreamTracer writes one line per event as it happens.
type StreamTracer struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
}

func NewStreamTracer(w io.Writer, level Level) *StreamTracer {
	return &StreamTracer{w: w, level: level}
}

func (t *StreamTracer) Emit(scope Scope, name, detail string) {
	if !t.level.admits(scope) {
		return
	}
	ev := Event{
		Time:   time.Now(),
		Seq:    seq.Add(1),
		Scope:  scope,
		Name:   name,
		Detail: detail,
	}
	line := fmt.Sprintf("[%s] #%d %-6s %s", ev.Time.Format("15:04:05.000"), ev.Seq, scopeName(ev.Scope), ev.Name)
	if ev.Detail != "" {
		line += " " + ev.Detail
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// Trace output is best-effort; verification never fails on it.
	_, _ = io.WriteString(t.w, line+"\n")
}

func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }

func (t *StreamTracer) Close() error {
	if closer, ok := t.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func scopeName(s Scope) string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeFunc:
		return "func"
	case ScopeDetail:
		return "detail"
	default:
		return "?"
	}
}
