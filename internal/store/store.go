// Package store abstracts the remote record store the import engine
// reconciles against. The engine only ever issues bulk, key-scoped calls
// (one round-trip per reconciliation sub-step, never per row), so the
// contract is deliberately small: fetch rows whose column matches a value
// set, scan a whole table, and insert a batch.
//
// Two implementations ship with the engine: Postgres (pgx) for production
// and Memory for tests and dry runs.
package store

import "context"

// Record is one row exchanged with the store, keyed by column name.
// Inserted records come back with their assigned "id" populated.
type Record map[string]any

// Store is the remote record store contract. Every call is bulk-scoped;
// any call may fail with a network or constraint error, which callers
// treat as chunk-scoped and non-fatal to the overall run.
type Store interface {
	// SelectIn returns the requested columns of all rows whose column
	// value is in values. An empty value set returns no rows without a
	// round-trip.
	SelectIn(ctx context.Context, table, column string, values []string, columns []string) ([]Record, error)

	// SelectAll returns the requested columns of every row in the table.
	// Used for the catalog scan that backs fuzzy product matching.
	SelectAll(ctx context.Context, table string, columns []string) ([]Record, error)

	// InsertMany inserts all records in one statement and returns them
	// with assigned ids. Records must share an identical column set.
	InsertMany(ctx context.Context, table string, records []Record) ([]Record, error)

	// Upsert inserts the record or, on a key conflict, replaces the
	// non-key columns. Used for single-writer data such as persisted
	// column mappings and the import ledger.
	Upsert(ctx context.Context, table, keyColumn string, record Record) error
}

// String returns the record's value for column as a string, or "" when
// absent or not string-typed.
func (r Record) String(column string) string {
	if v, ok := r[column].(string); ok {
		return v
	}
	return ""
}

// Int64 returns the record's value for column as an int64. Numeric
// drivers differ on the concrete type they hand back, so both int64 and
// int are accepted.
func (r Record) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	}
	return 0
}
