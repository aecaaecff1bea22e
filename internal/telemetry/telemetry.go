// Package telemetry records one JSONL event per command run in the project's
// state directory. Every sync, save, commit and vendor operation appends a
// structured event tagged with the run that produced it, making past runs
// auditable after the fact.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the event log written inside the state directory.
const FileName = "events.jsonl"

// Event kinds identify the type of telemetry event.
const (
	KindInit          = "init"
	KindSync          = "sync"
	KindSave          = "save"
	KindSaveBlocked   = "save_blocked"
	KindCommit        = "commit"
	KindDoctor        = "doctor"
	KindVendorUpgrade = "vendor_upgrade"
	KindAgentRun      = "agent_run"
)

// Event represents a single telemetry record.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Kind      string    `json:"kind"`
	RunID     string    `json:"run,omitempty"`
	User      string    `json:"user,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Emitter writes telemetry events to a JSONL file. It is safe for concurrent
// use by multiple goroutines. A nil *Emitter is a valid no-op emitter.
type Emitter struct {
	file  *os.File
	enc   *json.Encoder
	mu    sync.Mutex
	runID string
	now   func() time.Time
}

// NewRunID returns a time-ordered identifier for one command run.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewEmitter creates an Emitter appending to the file at path, creating the
// file and its directory when needed. Events emitted without a RunID are
// stamped with a fresh run identifier shared by this emitter.
func NewEmitter(path string) (*Emitter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Emitter{
		file:  f,
		enc:   json.NewEncoder(f),
		runID: NewRunID(),
		now:   time.Now,
	}, nil
}

// RunID returns the identifier stamped on this emitter's events.
func (e *Emitter) RunID() string {
	if e == nil {
		return ""
	}
	return e.runID
}

// Emit writes a single event to the JSONL file. Zero timestamps and run IDs
// are filled in. Calling Emit on a nil Emitter is a no-op.
func (e *Emitter) Emit(evt Event) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}
	if evt.RunID == "" {
		evt.RunID = e.runID
	}
	if err := e.enc.Encode(evt); err != nil {
		return fmt.Errorf("telemetry: encode event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file. Calling Close on a nil
// Emitter is a no-op.
func (e *Emitter) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.file.Close(); err != nil {
		return fmt.Errorf("telemetry: close: %w", err)
	}
	return nil
}
