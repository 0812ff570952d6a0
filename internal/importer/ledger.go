package importer

import (
	"context"
	"log/slog"
	"time"

	"github.com/hiredesk/hiredesk/internal/store"
)

// LedgerTable holds one durable record per import run.
const LedgerTable = "import_runs"

// Ledger statuses.
const (
	StatusStarted = "started"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Ledger writes import run records through the record store. A run is
// recorded once when it starts and finalized exactly once when it ends;
// ledger failures are logged, never allowed to fail the run itself.
type Ledger struct {
	Store store.Store
}

// RecordStart writes the run's opening ledger entry.
func (l *Ledger) RecordStart(ctx context.Context, runID, fileName string, importType ImportType) {
	err := l.Store.Upsert(ctx, LedgerTable, "run_id", store.Record{
		"run_id":      runID,
		"file_name":   fileName,
		"import_type": string(importType),
		"started_at":  time.Now().UTC().Format(time.RFC3339),
		"status":      StatusStarted,
	})
	if err != nil {
		slog.Error("ledger start entry failed", "run_id", runID, "error", err)
	}
}

// RecordFinish finalizes the run's ledger entry with status and summary
// counts.
func (l *Ledger) RecordFinish(ctx context.Context, result *Result, startedAt time.Time) {
	status := StatusSuccess
	switch result.State {
	case StateCancelled:
		status = StatusSkipped
	case StateFailed:
		status = StatusError
	}

	errMessage := result.ErrorMessage
	if errMessage == "" && len(result.Errors) > 0 {
		errMessage = result.Errors[0].Message
	}

	err := l.Store.Upsert(ctx, LedgerTable, "run_id", store.Record{
		"run_id":             result.RunID,
		"file_name":          result.FileName,
		"import_type":        string(result.ImportType),
		"started_at":         startedAt.UTC().Format(time.RFC3339),
		"finished_at":        time.Now().UTC().Format(time.RFC3339),
		"status":             status,
		"imported":           result.Summary.Imported,
		"skipped":            result.Summary.Skipped,
		"errors":             result.Summary.Errors,
		"customers_created":  result.Summary.CustomersCreated,
		"customers_existing": result.Summary.CustomersExisting,
		"documents_created":  result.Summary.DocumentsCreated,
		"documents_existing": result.Summary.DocumentsExisting,
		"line_items_created": result.Summary.LineItemsCreated,
		"line_items_skipped": result.Summary.LineItemsSkipped,
		"error_message":      errMessage,
	})
	if err != nil {
		slog.Error("ledger finish entry failed", "run_id", result.RunID, "error", err)
	}
}
