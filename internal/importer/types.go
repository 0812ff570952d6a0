// Package importer drives whole import runs: it schedules canonical rows
// through the reconciliation engine in fixed-size chunks, publishes
// progress to subscribers, and writes the import ledger. One run is
// active at a time per service; chunks are strictly ordered.
package importer

import (
	"time"

	"github.com/hiredesk/hiredesk/internal/reconcile"
)

// ImportType distinguishes the two billing document flavors a file can
// carry.
type ImportType string

const (
	TypeInvoice      ImportType = "invoice"
	TypeSalesReceipt ImportType = "salesreceipt"
)

// Valid reports whether t is a known import type.
func (t ImportType) Valid() bool {
	return t == TypeInvoice || t == TypeSalesReceipt
}

// State is the scheduler's lifecycle state for a run.
type State string

const (
	StateIdle          State = "idle"
	StateRunning       State = "running"
	StatePausedOnError State = "paused-on-error"
	StateCompleted     State = "completed"
	StateCancelled     State = "cancelled"
	StateFailed        State = "failed" // paused run abandoned with its fault
)

// Progress is one progress event emitted after each chunk.
type Progress struct {
	RunID           string `json:"runId"`
	State           State  `json:"state"`
	TotalRows       int    `json:"totalRows"`
	CompletedRows   int    `json:"completedRows"`
	PercentComplete int    `json:"percentComplete"`
}

// Summary is the ledger's count block for one run.
type Summary struct {
	Imported          int `json:"imported"`
	Skipped           int `json:"skipped"`
	Errors            int `json:"errors"`
	CustomersCreated  int `json:"customersCreated"`
	CustomersExisting int `json:"customersExisting"`
	DocumentsCreated  int `json:"documentsCreated"`
	DocumentsExisting int `json:"documentsExisting"`
	LineItemsCreated  int `json:"lineItemsCreated"`
	LineItemsSkipped  int `json:"lineItemsSkipped"`
}

// Result is the terminal event for a run: everything that happened,
// including every skipped row and accumulated error, retrievable after
// the run ends.
type Result struct {
	RunID         string                  `json:"runId"`
	FileName      string                  `json:"fileName"`
	ImportType    ImportType              `json:"importType"`
	State         State                   `json:"state"`
	ProcessedRows int                     `json:"processedRowCount"`
	Summary       Summary                 `json:"summary"`
	Errors        []reconcile.RunError    `json:"errors"`
	Skipped       []reconcile.SkippedItem `json:"skippedItems"`
	Duration      time.Duration           `json:"-"`
	ErrorMessage  string                  `json:"errorMessage,omitempty"`
}

func summarize(total reconcile.ChunkResult) Summary {
	return Summary{
		Imported:          total.LineItemsCreated,
		Skipped:           total.LineItemsSkipped,
		Errors:            len(total.Errors),
		CustomersCreated:  total.CustomersCreated,
		CustomersExisting: total.CustomersExisting,
		DocumentsCreated:  total.DocumentsCreated,
		DocumentsExisting: total.DocumentsExisting,
		LineItemsCreated:  total.LineItemsCreated,
		LineItemsSkipped:  total.LineItemsSkipped,
	}
}
