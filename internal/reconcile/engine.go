package reconcile

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hiredesk/hiredesk/internal/match"
	"github.com/hiredesk/hiredesk/internal/schema"
	"github.com/hiredesk/hiredesk/internal/store"
	"github.com/hiredesk/hiredesk/internal/validate"
)

// Engine reconciles chunks of canonical rows against the remote store.
// Each chunk is a fixed number of bulk round-trips regardless of row
// count: customer existence + insert, document existence + insert, line
// item existence, line item insert.
//
// Chunks must be processed strictly in order by a single caller; the
// existence checks assume the previous chunk's writes are visible.
type Engine struct {
	Store    store.Store
	Resolver *match.Resolver
	DocType  string // "invoice" or "salesreceipt", stamped on created documents
}

// LoadCatalog fetches the full product catalog and builds the resolver
// the engine uses for product references. Called once per run.
func LoadCatalog(ctx context.Context, st store.Store, threshold float64) (*match.Resolver, error) {
	records, err := st.SelectAll(ctx, TableCatalog, []string{"id", "code", "description"})
	if err != nil {
		return nil, err
	}

	products := make([]match.Product, 0, len(records))
	for _, rec := range records {
		products = append(products, match.Product{
			ID:          rec.Int64("id"),
			Code:        rec.String("code"),
			Description: rec.String("description"),
		})
	}
	return match.NewResolver(products, threshold), nil
}

// ProcessChunk runs the reconciliation steps over one chunk. Remote
// failures are recorded in the result and never abort the chunk: later
// steps proceed with whatever the earlier steps did manage to commit.
func (e *Engine) ProcessChunk(ctx context.Context, rows []schema.Row) ChunkResult {
	var res ChunkResult

	e.reconcileCustomers(ctx, rows, &res)
	docIDs := e.reconcileDocuments(ctx, rows, &res)
	e.reconcileLineItems(ctx, rows, docIDs, &res)

	slog.Debug("chunk reconciled",
		"rows", len(rows),
		"customers_created", res.CustomersCreated,
		"documents_created", res.DocumentsCreated,
		"line_items_created", res.LineItemsCreated,
		"skipped", len(res.Skipped),
		"errors", len(res.Errors),
	)
	return res
}

// reconcileCustomers creates the chunk's referenced customers that do not
// exist yet. Existing customers are confirmed only; their fields are
// never updated from import data.
func (e *Engine) reconcileCustomers(ctx context.Context, rows []schema.Row, res *ChunkResult) {
	names := make(map[string]string)
	var ids []string
	for i := range rows {
		id := rows[i].CustomerID
		if id == "" {
			continue
		}
		if _, seen := names[id]; !seen {
			names[id] = rows[i].CustomerName
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	existing, err := e.existingKeys(ctx, TableCustomers, "list_id", ids)
	if err != nil {
		res.Errors = append(res.Errors, RunError{Type: ErrStoreLookup, Message: "customer lookup: " + err.Error()})
		return
	}

	var missing []store.Record
	for _, id := range ids {
		if existing[id] {
			res.CustomersExisting++
			continue
		}
		missing = append(missing, store.Record{"list_id": id, "name": names[id]})
	}
	if len(missing) == 0 {
		return
	}

	if _, err := e.Store.InsertMany(ctx, TableCustomers, missing); err != nil {
		res.Errors = append(res.Errors, RunError{Type: ErrCustomerInsert, Message: err.Error()})
		return
	}
	res.CustomersCreated += len(missing)
}

// reconcileDocuments resolves every referenced document number to an
// internal id, creating documents that do not exist yet. Dates are
// normalized to ISO form before storage.
func (e *Engine) reconcileDocuments(ctx context.Context, rows []schema.Row, res *ChunkResult) map[string]int64 {
	first := make(map[string]*schema.Row)
	var numbers []string
	for i := range rows {
		num := rows[i].DocumentNumber
		if num == "" {
			continue
		}
		if _, seen := first[num]; !seen {
			first[num] = &rows[i]
			numbers = append(numbers, num)
		}
	}

	resolved := make(map[string]int64, len(numbers))
	if len(numbers) == 0 {
		return resolved
	}

	records, err := e.Store.SelectIn(ctx, TableDocuments, "doc_number", numbers, []string{"id", "doc_number"})
	if err != nil {
		res.Errors = append(res.Errors, RunError{Type: ErrStoreLookup, Message: "document lookup: " + err.Error()})
		return resolved
	}
	for _, rec := range records {
		resolved[rec.String("doc_number")] = rec.Int64("id")
	}
	res.DocumentsExisting += len(resolved)

	var missing []store.Record
	for _, num := range numbers {
		if _, ok := resolved[num]; ok {
			continue
		}
		row := first[num]
		missing = append(missing, store.Record{
			"doc_number":       num,
			"customer_list_id": row.CustomerID,
			"doc_date":         validate.NormalizeDate(row.DocumentDate),
			"doc_type":         e.DocType,
		})
	}
	if len(missing) == 0 {
		return resolved
	}

	inserted, err := e.Store.InsertMany(ctx, TableDocuments, missing)
	if err != nil {
		res.Errors = append(res.Errors, RunError{Type: ErrDocumentInsert, Message: err.Error()})
		return resolved
	}
	for _, rec := range inserted {
		resolved[rec.String("doc_number")] = rec.Int64("id")
	}
	res.DocumentsCreated += len(inserted)

	return resolved
}

// reconcileLineItems inserts the chunk's line items that survive product
// resolution and duplicate suppression, in one bulk call.
func (e *Engine) reconcileLineItems(ctx context.Context, rows []schema.Row, docIDs map[string]int64, res *ChunkResult) {
	// One bulk fetch of every line item under the chunk's documents gives
	// the (document id, product code) pairs that already exist.
	var idValues []string
	for _, id := range docIDs {
		idValues = append(idValues, strconv.FormatInt(id, 10))
	}

	existing := make(map[string]bool)
	if len(idValues) > 0 {
		records, err := e.Store.SelectIn(ctx, TableLineItems, "document_id", idValues, []string{"document_id", "product_code"})
		if err != nil {
			res.Errors = append(res.Errors, RunError{Type: ErrStoreLookup, Message: "line item lookup: " + err.Error()})
			return
		}
		for _, rec := range records {
			existing[pairKey(rec.Int64("document_id"), rec.String("product_code"))] = true
		}
	}

	var (
		pending    []store.Record
		pendingIdx []int
	)
	for i := range rows {
		row := &rows[i]

		docID, ok := docIDs[row.DocumentNumber]
		if !ok {
			res.LineItemsSkipped++
			res.Skipped = append(res.Skipped, SkippedItem{
				Description: row.Description,
				ProductCode: row.ProductCode,
				Reason:      SkipNoDocument,
			})
			continue
		}
		if row.ProductCode == "" && row.Description == "" {
			res.LineItemsSkipped++
			res.Skipped = append(res.Skipped, SkippedItem{Reason: SkipUnknownProduct})
			continue
		}

		product, kind := e.Resolver.Resolve(row.ProductCode, row.Description)
		if kind == match.MatchNone {
			res.LineItemsSkipped++
			res.Skipped = append(res.Skipped, SkippedItem{
				Description: row.Description,
				ProductCode: row.ProductCode,
				Reason:      SkipUnknownProduct,
			})
			continue
		}

		// Duplicate suppression covers both rows already in the store and
		// earlier rows in this same run.
		key := pairKey(docID, product.Code)
		if existing[key] {
			res.LineItemsSkipped++
			res.Skipped = append(res.Skipped, SkippedItem{
				Description: row.Description,
				ProductCode: row.ProductCode,
				Reason:      SkipDuplicateLine,
			})
			continue
		}
		existing[key] = true

		pending = append(pending, store.Record{
			"document_id":  docID,
			"product_code": product.Code,
			"product_id":   product.ID,
			"quantity_out": row.QuantityOut,
			"quantity_in":  row.QuantityIn,
			"description":  row.Description,
			"rate":         row.Rate,
			"amount":       row.Amount,
			"serial":       row.Serial,
			"matched_by":   kind.String(),
		})
		pendingIdx = append(pendingIdx, row.Index)
	}

	if len(pending) == 0 {
		return
	}

	if _, err := e.Store.InsertMany(ctx, TableLineItems, pending); err != nil {
		first := pendingIdx[0]
		res.Errors = append(res.Errors, RunError{Type: ErrLineItemInsert, Message: err.Error(), Row: &first})
		return
	}
	res.LineItemsCreated += len(pending)
}

// existingKeys returns which of the given key values are present in the
// table's column.
func (e *Engine) existingKeys(ctx context.Context, table, column string, values []string) (map[string]bool, error) {
	records, err := e.Store.SelectIn(ctx, table, column, values, []string{column})
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(records))
	for _, rec := range records {
		out[rec.String(column)] = true
	}
	return out, nil
}

func pairKey(docID int64, productCode string) string {
	return strconv.FormatInt(docID, 10) + "\x1f" + strings.TrimSpace(productCode)
}
