package store

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store used by tests and dry-run previews. It
// mirrors the Postgres implementation's observable behavior: bulk selects,
// multi-row inserts with assigned ids, and key-conflict upserts.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Record
	nextID int64

	// Fail, when set, is consulted before every operation; returning a
	// non-nil error makes that call fail. Lets tests simulate network and
	// constraint failures per table.
	Fail func(op, table string) error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Record), nextID: 1}
}

// Seed appends records to a table verbatim, assigning ids to records that
// lack one. Intended for test fixtures.
func (m *Memory) Seed(table string, records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if _, ok := rec["id"]; !ok {
			rec["id"] = m.nextID
			m.nextID++
		}
		m.tables[table] = append(m.tables[table], rec)
	}
}

// Count returns the number of rows in a table.
func (m *Memory) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

// Rows returns a copy of the table's rows.
func (m *Memory) Rows(table string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.tables[table]))
	copy(out, m.tables[table])
	return out
}

func (m *Memory) SelectIn(ctx context.Context, table, column string, values []string, columns []string) ([]Record, error) {
	if err := m.failure("select", table); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.tables[table] {
		if want[asString(rec[column])] {
			out = append(out, project(rec, columns))
		}
	}
	return out, nil
}

func (m *Memory) SelectAll(ctx context.Context, table string, columns []string) ([]Record, error) {
	if err := m.failure("select", table); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.tables[table] {
		out = append(out, project(rec, columns))
	}
	return out, nil
}

func (m *Memory) InsertMany(ctx context.Context, table string, records []Record) ([]Record, error) {
	if err := m.failure("insert", table); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		rec["id"] = m.nextID
		m.nextID++
		m.tables[table] = append(m.tables[table], rec)
	}
	return records, nil
}

func (m *Memory) Upsert(ctx context.Context, table, keyColumn string, record Record) error {
	if err := m.failure("upsert", table); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := asString(record[keyColumn])
	for i, rec := range m.tables[table] {
		if asString(rec[keyColumn]) == key {
			if id, ok := rec["id"]; ok {
				record["id"] = id
			}
			m.tables[table][i] = record
			return nil
		}
	}

	if _, ok := record["id"]; !ok {
		record["id"] = m.nextID
		m.nextID++
	}
	m.tables[table] = append(m.tables[table], record)
	return nil
}

func (m *Memory) failure(op, table string) error {
	if m.Fail != nil {
		return m.Fail(op, table)
	}
	return nil
}

func project(rec Record, columns []string) Record {
	out := make(Record, len(columns))
	for _, col := range columns {
		if v, ok := rec[col]; ok {
			out[col] = v
		}
	}
	return out
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
