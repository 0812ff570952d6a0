package match

// Product is one catalog entry the engine may link line items to. The
// catalog is read-only here; it is fetched once per run.
type Product struct {
	ID          int64
	Code        string
	Description string
}

// Kind records which strategy resolved a product reference.
type Kind int

const (
	MatchNone Kind = iota
	MatchCode      // exact product-code match
	MatchFuzzy     // accepted description-similarity fallback
)

func (k Kind) String() string {
	switch k {
	case MatchCode:
		return "code"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "none"
	}
}

// DefaultThreshold is the minimum similarity an accepted fuzzy match must
// reach. The value is empirical; it is configurable rather than promised.
const DefaultThreshold = 0.8

// Resolver resolves product references against a catalog snapshot.
type Resolver struct {
	// Threshold below which fuzzy candidates are rejected. Zero means
	// DefaultThreshold.
	Threshold float64

	byCode   map[string]Product
	products []Product
}

// NewResolver indexes the catalog for resolution. A zero threshold uses
// DefaultThreshold.
func NewResolver(products []Product, threshold float64) *Resolver {
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	byCode := make(map[string]Product, len(products))
	for _, p := range products {
		if _, exists := byCode[p.Code]; !exists {
			byCode[p.Code] = p
		}
	}

	return &Resolver{Threshold: threshold, byCode: byCode, products: products}
}

// Resolve finds the catalog product for a row's code and description.
// Exact code match wins outright. Otherwise, when a description is
// present, the whole catalog is scanned for the highest-similarity
// description at or above the threshold; the first product to reach the
// top score wins ties. A zero Kind means the row references no
// recognizable product.
func (r *Resolver) Resolve(code, description string) (Product, Kind) {
	// An empty code must never exact-match a catalog entry that itself
	// has no code.
	if code != "" {
		if p, ok := r.byCode[code]; ok {
			return p, MatchCode
		}
	}

	if description == "" {
		return Product{}, MatchNone
	}

	var (
		best      Product
		bestScore float64
	)
	for _, p := range r.products {
		if score := Similarity(description, p.Description); score > bestScore {
			best, bestScore = p, score
		}
	}

	if bestScore >= r.Threshold {
		return best, MatchFuzzy
	}
	return Product{}, MatchNone
}
