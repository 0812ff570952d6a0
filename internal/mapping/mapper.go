// Package mapping connects arbitrary source column layouts to the
// canonical import schema. A mapping is inferred once per column
// signature (the exact ordered header list), persisted, and reused
// verbatim the next time a file with the same layout shows up.
package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hiredesk/hiredesk/internal/schema"
)

// Mapping assigns a source column name to each mapped canonical field.
// Fields absent from the map are unmapped.
type Mapping map[schema.Field]string

// Signature serializes the exact ordered column list. Any change in
// column names or order produces a different signature, so a persisted
// mapping is only ever reused for the identical layout.
func Signature(columns []string) string {
	b, _ := json.Marshal(columns)
	return string(b)
}

// AutoMap infers a mapping from the source columns by exact normalized
// name match against each field's label and aliases. It never guesses
// from substrings: a required identity field either matches exactly or
// stays unmapped for the user to assign by hand.
func AutoMap(columns []string) Mapping {
	normalized := make([]string, len(columns))
	for i, col := range columns {
		normalized[i] = normalizeHeader(col)
	}

	m := make(Mapping)
	for _, f := range schema.Fields() {
		spec := schema.SpecOf(f)

		candidates := []string{normalizeHeader(spec.Label)}
		for _, alias := range spec.Aliases {
			candidates = append(candidates, normalizeHeader(alias))
		}

		for i, norm := range normalized {
			if norm == "" {
				continue
			}
			if matchesAny(norm, candidates) {
				m[f] = columns[i]
				break
			}
		}
	}
	return m
}

func matchesAny(norm string, candidates []string) bool {
	for _, c := range candidates {
		if norm == c {
			return true
		}
	}
	return false
}

// normalizeHeader lowercases and strips everything outside [a-z0-9] so
// "Invoice No.", "invoice_no" and "INVOICE NO" all compare equal.
func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Saver persists mappings keyed by column signature. Last write wins;
// there is a single writer per import surface.
type Saver interface {
	Load(ctx context.Context, signature string) (Mapping, bool, error)
	Save(ctx context.Context, signature string, m Mapping) error
}

// Mapper resolves the mapping for a column layout, preferring a persisted
// mapping over auto-inference, and re-persists on every change.
type Mapper struct {
	saver Saver
}

// NewMapper returns a Mapper backed by the given persistence.
func NewMapper(saver Saver) *Mapper {
	return &Mapper{saver: saver}
}

// Resolve returns the mapping for the given columns. A persisted mapping
// for the exact signature is returned unchanged, even where auto-mapping
// would now differ. Otherwise the columns are auto-mapped and the result
// persisted.
func (mp *Mapper) Resolve(ctx context.Context, columns []string) (Mapping, error) {
	sig := Signature(columns)

	if saved, ok, err := mp.saver.Load(ctx, sig); err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	} else if ok {
		return saved, nil
	}

	m := AutoMap(columns)
	if err := mp.saver.Save(ctx, sig, m); err != nil {
		return nil, fmt.Errorf("save mapping: %w", err)
	}
	return m, nil
}

// Put replaces the persisted mapping for the columns' signature wholesale,
// for callers that assembled a full mapping in one go (the mapping UI
// submits the final table at import time).
func (mp *Mapper) Put(ctx context.Context, columns []string, m Mapping) error {
	if err := mp.saver.Save(ctx, Signature(columns), m); err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

// Override sets (or, with an empty column, clears) one field's mapped
// column and re-persists the mapping under the current signature.
func (mp *Mapper) Override(ctx context.Context, columns []string, field schema.Field, column string) (Mapping, error) {
	m, err := mp.Resolve(ctx, columns)
	if err != nil {
		return nil, err
	}

	if column == "" {
		delete(m, field)
	} else {
		m[field] = column
	}

	if err := mp.saver.Save(ctx, Signature(columns), m); err != nil {
		return nil, fmt.Errorf("save mapping: %w", err)
	}
	return m, nil
}

// MarshalJSON encodes the mapping keyed by the fields' stable keys.
func (m Mapping) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(m))
	for f, col := range m {
		out[f.Key()] = col
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a mapping keyed by stable field keys. Unknown
// keys are dropped rather than erroring, so old persisted mappings
// survive schema additions.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Mapping, len(raw))
	for key, col := range raw {
		if f, ok := schema.FieldByKey(key); ok {
			out[f] = col
		}
	}
	*m = out
	return nil
}
