// Package reconcile turns chunks of canonical rows into the minimal set
// of remote writes: customers, billing documents and line items that do
// not already exist are created, everything else is confirmed or skipped.
// Imports are idempotent: re-running the same file never duplicates a
// record.
package reconcile

// Store table names.
const (
	TableCustomers = "customers"
	TableDocuments = "billing_documents"
	TableLineItems = "line_items"
	TableCatalog   = "catalog_products"
)

// SkippedItem is one row the engine deliberately did not insert. Skips
// are expected outcomes, counted separately from errors, and remain
// retrievable after the run for CSV export.
type SkippedItem struct {
	Description string `json:"invoiceDescription"`
	ProductCode string `json:"invoiceProductCode"`
	Reason      string `json:"reason"`
}

// Skip reasons.
const (
	SkipUnknownProduct = "not a recognized product"
	SkipDuplicateLine  = "duplicate line item"
	SkipNoDocument     = "document not resolved"
)

// RunError is one chunk-scoped failure. Row, when set, is the source row
// index the failure is attributable to.
type RunError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Row     *int   `json:"row,omitempty"`
}

// Error types.
const (
	ErrCustomerInsert = "customer-insert"
	ErrDocumentInsert = "document-insert"
	ErrLineItemInsert = "line-item-insert"
	ErrStoreLookup    = "store-lookup"
)

// ChunkResult is the outcome of reconciling one chunk. Counters feed the
// import ledger; Skipped and Errors accumulate into the terminal event.
type ChunkResult struct {
	CustomersCreated  int
	CustomersExisting int
	DocumentsCreated  int
	DocumentsExisting int
	LineItemsCreated  int
	LineItemsSkipped  int

	Skipped []SkippedItem
	Errors  []RunError
}

// Merge folds another chunk's result into this one.
func (r *ChunkResult) Merge(other ChunkResult) {
	r.CustomersCreated += other.CustomersCreated
	r.CustomersExisting += other.CustomersExisting
	r.DocumentsCreated += other.DocumentsCreated
	r.DocumentsExisting += other.DocumentsExisting
	r.LineItemsCreated += other.LineItemsCreated
	r.LineItemsSkipped += other.LineItemsSkipped
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Errors = append(r.Errors, other.Errors...)
}
