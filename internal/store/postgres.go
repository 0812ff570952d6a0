package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool. Every remote call
// runs under the configured retry policy.
type Postgres struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

// NewPostgres wraps a pool. A zero policy falls back to DefaultRetry.
func NewPostgres(pool *pgxpool.Pool, retry RetryPolicy) *Postgres {
	return &Postgres{pool: pool, retry: retry}
}

// SelectIn fetches rows whose column value is in values.
func (p *Postgres) SelectIn(ctx context.Context, table, column string, values []string, columns []string) ([]Record, error) {
	if len(values) == 0 {
		return nil, nil
	}

	// The text cast keeps the contract generic: callers pass key values as
	// strings whether the underlying column is text or bigint.
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s::text = ANY($1)",
		joinQuoted(columns),
		quoteIdentifier(table),
		quoteIdentifier(column),
	)

	var records []Record
	err := p.retry.Do(ctx, "select "+table, func() error {
		rows, err := p.pool.Query(ctx, query, values)
		if err != nil {
			return err
		}
		records, err = collectRecords(rows, columns)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("select %s by %s: %w", table, column, err)
	}
	return records, nil
}

// SelectAll fetches every row in the table.
func (p *Postgres) SelectAll(ctx context.Context, table string, columns []string) ([]Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", joinQuoted(columns), quoteIdentifier(table))

	var records []Record
	err := p.retry.Do(ctx, "select all "+table, func() error {
		rows, err := p.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		records, err = collectRecords(rows, columns)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("select all %s: %w", table, err)
	}
	return records, nil
}

// InsertMany inserts all records in a single multi-row statement and
// returns them with the ids Postgres assigned.
func (p *Postgres) InsertMany(ctx context.Context, table string, records []Record) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	columns := recordColumns(records[0])

	var (
		placeholders []string
		args         []any
	)
	for i, rec := range records {
		marks := make([]string, len(columns))
		for j, col := range columns {
			marks[j] = fmt.Sprintf("$%d", i*len(columns)+j+1)
			args = append(args, rec[col])
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s RETURNING id",
		quoteIdentifier(table),
		joinQuoted(columns),
		strings.Join(placeholders, ", "),
	)

	err := p.retry.Do(ctx, "insert "+table, func() error {
		rows, err := p.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		i := 0
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			if i < len(records) {
				records[i]["id"] = id
			}
			i++
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("insert %d rows into %s: %w", len(records), table, err)
	}
	return records, nil
}

// Upsert inserts the record, replacing non-key columns on conflict.
func (p *Postgres) Upsert(ctx context.Context, table, keyColumn string, record Record) error {
	columns := recordColumns(record)

	marks := make([]string, len(columns))
	args := make([]any, len(columns))
	var updates []string
	for i, col := range columns {
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = record[col]
		if col != keyColumn {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", quoteIdentifier(col), quoteIdentifier(col)))
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdentifier(table),
		joinQuoted(columns),
		strings.Join(marks, ", "),
		quoteIdentifier(keyColumn),
		strings.Join(updates, ", "),
	)

	err := p.retry.Do(ctx, "upsert "+table, func() error {
		_, err := p.pool.Exec(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", table, err)
	}
	return nil
}

// collectRecords drains rows into Records keyed by the requested columns.
func collectRecords(rows pgx.Rows, columns []string) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		rec := make(Record, len(columns))
		for i, col := range columns {
			if i < len(values) {
				rec[col] = values[i]
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// recordColumns returns the record's columns in stable sorted order so
// multi-row statements line up across records.
func recordColumns(rec Record) []string {
	columns := make([]string, 0, len(rec))
	for col := range rec {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func joinQuoted(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
