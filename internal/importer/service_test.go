package importer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hiredesk/hiredesk/internal/reconcile"
	"github.com/hiredesk/hiredesk/internal/store"
)

// ============================================================================
// Service Tests
// ============================================================================

func TestService_StartToLedger(t *testing.T) {
	mem := testStore()
	svc := NewService(mem, Config{ChunkSize: 2})

	run, err := svc.Start(context.Background(), "march.csv", TypeInvoice, testRows(5))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	result := waitDone(t, run)

	if result.State != StateCompleted {
		t.Errorf("State = %s, want completed", result.State)
	}

	entries := mem.Rows(LedgerTable)
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want the start entry finalized in place", len(entries))
	}
	entry := entries[0]
	if entry.String("status") != StatusSuccess {
		t.Errorf("ledger status = %q, want success", entry.String("status"))
	}
	if entry.String("file_name") != "march.csv" || entry.String("import_type") != "invoice" {
		t.Errorf("ledger entry = %v", entry)
	}
	if entry.Int64("imported") != 5 {
		t.Errorf("ledger imported = %d, want 5", entry.Int64("imported"))
	}
	if entry.String("finished_at") == "" {
		t.Error("ledger finished_at not set")
	}
}

func TestService_RejectsUnknownImportType(t *testing.T) {
	svc := NewService(testStore(), Config{})
	if _, err := svc.Start(context.Background(), "x.csv", "estimate", nil); err == nil {
		t.Error("Start() with unknown import type should error")
	}
}

func TestService_SingleActiveRun(t *testing.T) {
	mem := testStore()
	gate := make(chan struct{})
	mem.Fail = func(op, table string) error {
		// Hold the first run open inside its first chunk.
		if table == reconcile.TableCustomers {
			<-gate
		}
		return nil
	}

	svc := NewService(mem, Config{ChunkSize: 2})
	first, err := svc.Start(context.Background(), "first.csv", TypeInvoice, testRows(4))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := svc.Start(context.Background(), "second.csv", TypeInvoice, testRows(1)); !errors.Is(err, ErrRunActive) {
		t.Errorf("second Start() error = %v, want ErrRunActive", err)
	}

	close(gate)
	waitDone(t, first)

	// The surface is free again once the first run finalizes.
	second, err := svc.Start(context.Background(), "second.csv", TypeInvoice, testRows(1))
	if err != nil {
		t.Fatalf("Start() after completion error = %v", err)
	}
	waitDone(t, second)
}

func TestService_GetUnknownRun(t *testing.T) {
	svc := NewService(testStore(), Config{})
	if _, err := svc.Get("nope"); err == nil {
		t.Error("Get() on unknown run should error")
	}
	if err := svc.Cancel("nope"); err == nil {
		t.Error("Cancel() on unknown run should error")
	}
	if err := svc.Resume("nope", 0); err == nil {
		t.Error("Resume() on unknown run should error")
	}
}

func TestService_CatalogFailureReleasesSurface(t *testing.T) {
	mem := testStore()
	mem.Fail = func(op, table string) error {
		if table == reconcile.TableCatalog {
			return errors.New("catalog offline")
		}
		return nil
	}

	svc := NewService(mem, Config{})
	if _, err := svc.Start(context.Background(), "x.csv", TypeInvoice, testRows(1)); err == nil {
		t.Fatal("Start() should fail when the catalog cannot load")
	}

	mem.Fail = nil
	run, err := svc.Start(context.Background(), "x.csv", TypeInvoice, testRows(1))
	if err != nil {
		t.Fatalf("Start() after catalog recovery error = %v", err)
	}
	waitDone(t, run)
}

func TestService_ResumeReclaimsSurface(t *testing.T) {
	mem := testStore()
	mem.Fail = func(op, table string) error {
		if op == "insert" && table == reconcile.TableCustomers {
			panic("down")
		}
		return nil
	}

	svc := NewService(mem, Config{ChunkSize: 2})
	run, err := svc.Start(context.Background(), "x.csv", TypeInvoice, testRows(2))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for run.State() != StatePausedOnError {
		select {
		case <-deadline:
			t.Fatalf("state = %s, never paused", run.State())
		case <-time.After(5 * time.Millisecond):
		}
	}

	mem.Fail = nil
	if err := svc.Resume(run.ID, 0); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	result := waitDone(t, run)
	if result.State != StateCompleted {
		t.Errorf("State = %s, want completed", result.State)
	}

	// Ledger reflects the eventual success.
	entries := mem.Rows(LedgerTable)
	if len(entries) != 1 || entries[0].String("status") != StatusSuccess {
		t.Errorf("ledger = %v, want one success entry", entries)
	}
}

func TestService_CancelAbandonedFaultRecordsError(t *testing.T) {
	mem := testStore()
	mem.Fail = func(op, table string) error {
		if op == "insert" && table == reconcile.TableCustomers {
			panic("storage corrupted")
		}
		return nil
	}

	svc := NewService(mem, Config{ChunkSize: 2})
	run, err := svc.Start(context.Background(), "x.csv", TypeInvoice, testRows(2))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(5 * time.Second)
	for run.State() != StatePausedOnError {
		select {
		case <-deadline:
			t.Fatalf("state = %s, never paused", run.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
	mem.Fail = nil

	if err := svc.Cancel(run.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	result := waitDone(t, run)
	if result.State != StateFailed {
		t.Errorf("State = %s, want failed", result.State)
	}

	entries := mem.Rows(LedgerTable)
	if len(entries) != 1 {
		t.Fatalf("ledger entries = %d, want 1", len(entries))
	}
	if got := entries[0].String("status"); got != StatusError {
		t.Errorf("ledger status = %q, want error for an abandoned fault", got)
	}
	if msg := entries[0].String("error_message"); !strings.Contains(msg, "storage corrupted") {
		t.Errorf("error_message = %q, want the fault message", msg)
	}

	// The surface is released for the next run.
	next, err := svc.Start(context.Background(), "y.csv", TypeInvoice, testRows(1))
	if err != nil {
		t.Fatalf("Start() after abandoned run error = %v", err)
	}
	waitDone(t, next)
}

// ============================================================================
// Ledger Tests
// ============================================================================

func TestLedger_FinishStatuses(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"completed", Result{RunID: "a", State: StateCompleted}, StatusSuccess},
		{"completed with chunk errors", Result{
			RunID: "b", State: StateCompleted,
			Errors: []reconcile.RunError{{Type: reconcile.ErrStoreLookup, Message: "lookup failed"}},
		}, StatusSuccess},
		{"cancelled", Result{RunID: "c", State: StateCancelled, ErrorMessage: "cancelled"}, StatusSkipped},
		{"failed", Result{RunID: "d", State: StateFailed, ErrorMessage: "chunk panic"}, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemory()
			l := &Ledger{Store: mem}
			l.RecordFinish(context.Background(), &tt.result, time.Now())

			entries := mem.Rows(LedgerTable)
			if len(entries) != 1 {
				t.Fatalf("ledger entries = %d, want 1", len(entries))
			}
			if got := entries[0].String("status"); got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLedger_FirstErrorMessageSurfaced(t *testing.T) {
	mem := store.NewMemory()
	l := &Ledger{Store: mem}

	l.RecordFinish(context.Background(), &Result{
		RunID: "a",
		State: StateCompleted,
		Errors: []reconcile.RunError{
			{Type: reconcile.ErrDocumentInsert, Message: "first failure"},
			{Type: reconcile.ErrLineItemInsert, Message: "second failure"},
		},
	}, time.Now())

	entries := mem.Rows(LedgerTable)
	if got := entries[0].String("error_message"); got != "first failure" {
		t.Errorf("error_message = %q, want the first accumulated error", got)
	}
}
