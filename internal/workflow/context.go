package workflow

import (
	"maps"
	"sync"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/browser"
)

// ExecutionContext is the per-run mutable state shared by all node
// executors: a key/value data map, an append-only structured log, and a
// borrowed browser driver. A single walker owns the context; the RWMutex
// keeps parallel-node branches safe when they write concurrently.
type ExecutionContext struct {
	mu     sync.RWMutex
	data   map[string]any
	logs   []LogEntry
	driver browser.Driver

	startedAt time.Time
	status    RunStatus
	err       error
}

// NewExecutionContext creates a context seeded with the caller-supplied
// input data. The input map is copied; the caller's map is not retained.
func NewExecutionContext(input map[string]any) *ExecutionContext {
	data := make(map[string]any, len(input))
	maps.Copy(data, input)
	return &ExecutionContext{
		data:      data,
		startedAt: time.Now(),
		status:    RunStatusRunning,
	}
}

// Set stores a value under key.
func (ec *ExecutionContext) Set(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.data[key] = value
}

// Get returns the value under key and whether it exists.
func (ec *ExecutionContext) Get(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.data[key]
	return v, ok
}

// GetDefault returns the value under key, or def when absent.
func (ec *ExecutionContext) GetDefault(key string, def any) any {
	if v, ok := ec.Get(key); ok {
		return v
	}
	return def
}

// Snapshot returns a shallow copy of the data map. Mutating the copy does
// not affect the context.
func (ec *ExecutionContext) Snapshot() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make(map[string]any, len(ec.data))
	maps.Copy(out, ec.data)
	return out
}

// Log appends an entry to the run log. Never fails.
func (ec *ExecutionContext) Log(entry LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.logs = append(ec.logs, entry)
}

// Logs returns a copy of the log entries in append order.
func (ec *ExecutionContext) Logs() []LogEntry {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	out := make([]LogEntry, len(ec.logs))
	copy(out, ec.logs)
	return out
}

// SetDriver attaches the browser driver for the duration of the run.
func (ec *ExecutionContext) SetDriver(d browser.Driver) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.driver = d
}

// Driver returns the attached browser driver, or nil.
func (ec *ExecutionContext) Driver() browser.Driver {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.driver
}

// StartedAt returns the context creation time.
func (ec *ExecutionContext) StartedAt() time.Time {
	return ec.startedAt
}

// Status returns the current run status.
func (ec *ExecutionContext) Status() RunStatus {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.status
}

// Err returns the terminal error, or nil.
func (ec *ExecutionContext) Err() error {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return ec.err
}

// finish records the terminal status and error. Once a terminal status is
// set it is never overwritten.
func (ec *ExecutionContext) finish(status RunStatus, err error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if ec.status.IsTerminal() {
		return
	}
	ec.status = status
	ec.err = err
}
