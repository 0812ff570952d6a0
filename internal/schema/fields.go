// Package schema defines the canonical target schema for bulk document
// imports. Source spreadsheets arrive with arbitrary column layouts; every
// row is projected onto this fixed set of fields before validation and
// reconciliation.
package schema

// Field identifies one slot in the canonical import schema.
type Field int

const (
	CustomerID Field = iota
	CustomerName
	DocumentDate
	DocumentNumber
	ProductCode
	QuantityOut
	QuantityIn
	Description
	Rate
	Amount
	Serial
	fieldCount
)

// Kind classifies how a field's raw value is validated and transformed.
type Kind int

const (
	KindText Kind = iota
	KindIdentifier // namespace-prefixed codes are trimmed to their last segment
	KindDate
	KindNumeric
)

// Spec describes one canonical field: its display label, whether a source
// column must be mapped to it, and the header aliases recognized during
// auto-mapping.
type Spec struct {
	Field    Field
	Key      string // stable key used in persisted mappings and APIs
	Label    string
	Kind     Kind
	Required bool
	Aliases  []string
}

var specs = [fieldCount]Spec{
	{CustomerID, "customerId", "Customer ID", KindText, true,
		[]string{"customer list id", "customer ref", "cust id", "list id"}},
	{CustomerName, "customerName", "Customer Name", KindText, true,
		[]string{"customer", "name", "account name", "bill to"}},
	{DocumentDate, "documentDate", "Date", KindDate, true,
		[]string{"invoice date", "txn date", "document date", "receipt date"}},
	{DocumentNumber, "documentNumber", "Document Number", KindText, true,
		[]string{"invoice number", "invoice no", "doc number", "ref number", "receipt number"}},
	{ProductCode, "productCode", "Product Code", KindIdentifier, true,
		[]string{"item", "item code", "product", "sku", "item name"}},
	{QuantityOut, "quantityOut", "Quantity Out", KindNumeric, true,
		[]string{"qty out", "quantity", "qty", "qty shipped"}},
	{QuantityIn, "quantityIn", "Quantity In", KindNumeric, true,
		[]string{"qty in", "qty returned", "returned"}},
	{Description, "description", "Description", KindText, false,
		[]string{"item description", "memo", "line description"}},
	{Rate, "rate", "Rate", KindNumeric, false,
		[]string{"price", "unit price", "sales price"}},
	{Amount, "amount", "Amount", KindNumeric, false,
		[]string{"total", "line amount", "line total"}},
	{Serial, "serial", "Serial", KindText, false,
		[]string{"serial number", "serial no", "asset serial"}},
}

// Fields returns all canonical fields in stable declaration order.
func Fields() []Field {
	out := make([]Field, fieldCount)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// SpecOf returns the spec for a field.
func SpecOf(f Field) Spec { return specs[f] }

// Key returns the field's stable string key.
func (f Field) Key() string { return specs[f].Key }

// Label returns the field's display label.
func (f Field) Label() string { return specs[f].Label }

// Required reports whether a source column must be mapped to this field.
func (f Field) Required() bool { return specs[f].Required }

// FieldKind returns the field's validation kind.
func (f Field) FieldKind() Kind { return specs[f].Kind }

func (f Field) String() string { return specs[f].Key }

// MarshalJSON encodes the field as its stable key.
func (f Field) MarshalJSON() ([]byte, error) {
	return []byte(`"` + specs[f].Key + `"`), nil
}

// FieldByKey resolves a stable key back to its field.
func FieldByKey(key string) (Field, bool) {
	for _, s := range specs {
		if s.Key == key {
			return s.Field, true
		}
	}
	return 0, false
}
