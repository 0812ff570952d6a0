package mapping

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hiredesk/hiredesk/internal/store"
)

// MappingsTable is the store table that holds persisted column mappings,
// one row per column signature.
const MappingsTable = "column_mappings"

// StoreSaver persists mappings through the record store as JSON, keyed by
// column signature.
type StoreSaver struct {
	Store store.Store
}

func (s *StoreSaver) Load(ctx context.Context, signature string) (Mapping, bool, error) {
	records, err := s.Store.SelectIn(ctx, MappingsTable, "signature",
		[]string{signature}, []string{"signature", "mapping"})
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}

	var m Mapping
	if err := json.Unmarshal([]byte(records[0].String("mapping")), &m); err != nil {
		return nil, false, fmt.Errorf("decode persisted mapping: %w", err)
	}
	return m, true, nil
}

func (s *StoreSaver) Save(ctx context.Context, signature string, m Mapping) error {
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}

	return s.Store.Upsert(ctx, MappingsTable, "signature", store.Record{
		"signature": signature,
		"mapping":   string(encoded),
	})
}
