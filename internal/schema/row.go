package schema

// Row is one source data row projected onto the canonical schema. Values
// are kept as the raw strings from the source file; typed interpretation
// happens in validation and reconciliation. Index is the position of the
// row in the source file's data section, so errors can point back at the
// original spreadsheet row.
type Row struct {
	Index int

	CustomerID     string
	CustomerName   string
	DocumentDate   string
	DocumentNumber string
	ProductCode    string
	QuantityOut    string
	QuantityIn     string
	Description    string
	Rate           string
	Amount         string
	Serial         string
}

// Get returns the raw value for a canonical field.
func (r *Row) Get(f Field) string {
	switch f {
	case CustomerID:
		return r.CustomerID
	case CustomerName:
		return r.CustomerName
	case DocumentDate:
		return r.DocumentDate
	case DocumentNumber:
		return r.DocumentNumber
	case ProductCode:
		return r.ProductCode
	case QuantityOut:
		return r.QuantityOut
	case QuantityIn:
		return r.QuantityIn
	case Description:
		return r.Description
	case Rate:
		return r.Rate
	case Amount:
		return r.Amount
	case Serial:
		return r.Serial
	}
	return ""
}

// Set stores the raw value for a canonical field.
func (r *Row) Set(f Field, v string) {
	switch f {
	case CustomerID:
		r.CustomerID = v
	case CustomerName:
		r.CustomerName = v
	case DocumentDate:
		r.DocumentDate = v
	case DocumentNumber:
		r.DocumentNumber = v
	case ProductCode:
		r.ProductCode = v
	case QuantityOut:
		r.QuantityOut = v
	case QuantityIn:
		r.QuantityIn = v
	case Description:
		r.Description = v
	case Rate:
		r.Rate = v
	case Amount:
		r.Amount = v
	case Serial:
		r.Serial = v
	}
}
