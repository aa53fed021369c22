// Package change decides which products moved between two observations.
package change

import (
	"math"

	"ratewatch/internal/rates"
	"ratewatch/internal/snapshot"
)

// Tolerance absorbs float representation noise from JSON parsing. It is far
// below any real rate step (0.125 is the usual increment).
const Tolerance = 1e-9

// Record describes one product whose rate changed. OldRate is nil on the
// first observation of a product.
type Record struct {
	ProductID string
	Name      string
	OldRate   *float64
	NewRate   float64
	Delta     float64
	Quote     rates.Quote
}

// New reports whether the product had no prior observation.
func (r Record) New() bool { return r.OldRate == nil }

// Product is the identity the detector needs for ordering and display.
type Product struct {
	ID   string
	Name string
}

// Detect compares fetched quotes with prev, product by product, in the order
// of products. Products without a fetched quote are skipped.
func Detect(products []Product, fetched map[string]rates.Quote, prev snapshot.Snapshot) []Record {
	var out []Record
	for _, p := range products {
		q, ok := fetched[p.ID]
		if !ok {
			continue
		}
		old, seen := prev[p.ID]
		if seen && !Changed(old.Rate, q.Rate) {
			continue
		}
		rec := Record{ProductID: p.ID, Name: p.Name, NewRate: q.Rate, Quote: q}
		if seen {
			oldRate := old.Rate
			rec.OldRate = &oldRate
			rec.Delta = q.Rate - old.Rate
		}
		out = append(out, rec)
	}
	return out
}

// Changed reports whether two rates differ by more than Tolerance.
func Changed(oldRate, newRate float64) bool {
	return math.Abs(newRate-oldRate) > Tolerance
}
