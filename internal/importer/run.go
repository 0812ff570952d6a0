package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hiredesk/hiredesk/internal/reconcile"
	"github.com/hiredesk/hiredesk/internal/schema"
)

// Run is the explicit handle for one import run. The chunk loop runs on
// its own goroutine; callers observe it through Subscribe and Result and
// steer it through Cancel and Resume. There is no process-wide registry;
// whoever starts the run owns the handle.
type Run struct {
	ID         string
	FileName   string
	ImportType ImportType

	engine    *reconcile.Engine
	rows      []schema.Row
	chunkSize int

	ctx    context.Context
	cancel context.CancelFunc

	// finalize writes the ledger entry; invoked exactly once per run.
	finalize func(*Result)

	mu        sync.Mutex
	state     State
	fault     string // message of the fault that paused the run
	cursor    int
	total     reconcile.ChunkResult
	result    *Result
	listeners []chan Progress
	started   time.Time
	done      chan struct{}
}

func newRun(id, fileName string, importType ImportType, rows []schema.Row, chunkSize int, engine *reconcile.Engine, finalize func(*Result)) *Run {
	ctx, cancel := context.WithCancel(context.Background())
	return &Run{
		ID:         id,
		FileName:   fileName,
		ImportType: importType,
		engine:     engine,
		rows:       rows,
		chunkSize:  chunkSize,
		ctx:        ctx,
		cancel:     cancel,
		finalize:   finalize,
		state:      StateIdle,
		started:    time.Now(),
		done:       make(chan struct{}),
	}
}

// start transitions Idle -> Running and launches the chunk loop.
func (r *Run) start() {
	r.mu.Lock()
	r.state = StateRunning
	r.mu.Unlock()
	go r.loop()
}

// loop drives chunks through the engine until the cursor reaches the row
// count. Cancellation is honored only between chunks: a dispatched chunk
// always finishes, so the store is never left existence-checked but
// unwritten.
func (r *Run) loop() {
	for {
		r.mu.Lock()
		if r.cursor >= len(r.rows) {
			r.mu.Unlock()
			r.complete(StateCompleted, "")
			return
		}
		if r.ctx.Err() != nil {
			r.mu.Unlock()
			r.complete(StateCancelled, "cancelled")
			return
		}

		start := r.cursor
		end := start + r.chunkSize
		if end > len(r.rows) {
			end = len(r.rows)
		}
		chunk := r.rows[start:end]
		r.mu.Unlock()

		result, err := r.processChunk(chunk)
		if err != nil {
			// A fault outside the engine's per-step error handling pauses
			// the run with the cursor intact; Resume restarts from a
			// caller-chosen index.
			r.mu.Lock()
			r.state = StatePausedOnError
			r.fault = err.Error()
			r.total.Errors = append(r.total.Errors, reconcile.RunError{
				Type:    "fatal",
				Message: err.Error(),
				Row:     &start,
			})
			r.mu.Unlock()
			r.notify()
			slog.Error("import run paused", "run_id", r.ID, "row", start, "error", err)
			return
		}

		r.mu.Lock()
		r.total.Merge(result)
		r.cursor = end
		r.mu.Unlock()
		r.notify()
	}
}

// processChunk runs one chunk under a recover boundary so an unexpected
// panic is reported as a run fault instead of taking the process down.
func (r *Run) processChunk(chunk []schema.Row) (result reconcile.ChunkResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("chunk panic: %v", rec)
		}
	}()
	return r.engine.ProcessChunk(r.ctx, chunk), nil
}

// Resume re-arms a paused run's cursor to the given row index and
// restarts the chunk loop. Chunks before the index are not reprocessed.
func (r *Run) Resume(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StatePausedOnError {
		return fmt.Errorf("run %s is %s, not paused", r.ID, r.state)
	}
	if index < 0 || index > len(r.rows) {
		return fmt.Errorf("resume index %d out of range [0,%d]", index, len(r.rows))
	}

	r.cursor = index
	r.state = StateRunning
	r.fault = ""
	go r.loop()
	return nil
}

// Cancel requests cooperative cancellation. The in-flight chunk finishes;
// the loop stops at the next chunk boundary. Cancelling a paused run
// abandons it: no loop is running, so it finalizes immediately, and the
// fault that paused it becomes the run's terminal error.
func (r *Run) Cancel() {
	r.cancel()

	r.mu.Lock()
	paused := r.state == StatePausedOnError
	fault := r.fault
	r.mu.Unlock()
	if paused {
		r.complete(StateFailed, fault)
	}
}

// Subscribe returns a channel of progress events. The channel is closed
// when the run reaches a terminal state. Slow subscribers miss
// intermediate events rather than blocking the loop.
func (r *Run) Subscribe() <-chan Progress {
	ch := make(chan Progress, 16)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.result != nil {
		close(ch)
		return ch
	}
	r.listeners = append(r.listeners, ch)

	select {
	case ch <- r.progressLocked():
	default:
	}
	return ch
}

// Progress returns the current progress snapshot.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progressLocked()
}

// Result blocks until the run reaches a terminal state. A paused run does
// not terminate until it is resumed or cancelled.
func (r *Run) Result() *Result {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// State returns the run's current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) progressLocked() Progress {
	percent := 100
	if len(r.rows) > 0 {
		percent = r.cursor * 100 / len(r.rows)
	}
	return Progress{
		RunID:           r.ID,
		State:           r.state,
		TotalRows:       len(r.rows),
		CompletedRows:   r.cursor,
		PercentComplete: percent,
	}
}

func (r *Run) notify() {
	r.mu.Lock()
	p := r.progressLocked()
	listeners := r.listeners
	r.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

// complete finalizes the run: builds the terminal result, writes the
// ledger entry, closes listener channels, and releases Result waiters.
// Only the first caller finalizes; concurrent Cancel and Resume paths
// both funnel through here.
func (r *Run) complete(state State, errMessage string) {
	r.mu.Lock()
	if r.result != nil {
		r.mu.Unlock()
		return
	}
	r.state = state
	r.result = &Result{
		RunID:         r.ID,
		FileName:      r.FileName,
		ImportType:    r.ImportType,
		State:         state,
		ProcessedRows: r.cursor,
		Summary:       summarize(r.total),
		Errors:        r.total.Errors,
		Skipped:       r.total.Skipped,
		Duration:      time.Since(r.started),
		ErrorMessage:  errMessage,
	}
	result := r.result
	listeners := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	if r.finalize != nil {
		r.finalize(result)
	}

	for _, ch := range listeners {
		select {
		case ch <- r.Progress():
		default:
		}
		close(ch)
	}
	close(r.done)
	r.cancel()

	slog.Info("import run finished",
		"run_id", r.ID,
		"state", state,
		"rows", result.ProcessedRows,
		"imported", result.Summary.Imported,
		"skipped", result.Summary.Skipped,
		"errors", result.Summary.Errors,
		"duration_ms", result.Duration.Milliseconds(),
	)
}
