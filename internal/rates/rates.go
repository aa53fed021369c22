package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ratewatch/internal/config"
)

// Quote is the normalized best offer for one tracked product.
// Optional figures stay nil when the upstream omits them.
type Quote struct {
	ProductID      string    `json:"product_id"`
	ProductType    string    `json:"product_type"`
	Rate           float64   `json:"rate"`
	APR            *float64  `json:"apr,omitempty"`
	Points         *float64  `json:"points,omitempty"`
	MonthlyPayment *float64  `json:"monthly_payment,omitempty"`
	Price          *float64  `json:"price,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Request is what a Source needs to quote a single product.
type Request struct {
	ProductID string
	Match     string
	Loan      config.Loan
}

// NewRequest resolves the loan scenario for p against the global loan block.
func NewRequest(p config.Product, base config.Loan) Request {
	return Request{ProductID: p.ID, Match: p.Match, Loan: base.Merge(p.Loan)}
}

type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) (Quote, error)
}

// ErrNoMatch is returned when the upstream answered but offered nothing for
// the requested product.
var ErrNoMatch = errors.New("no matching product in response")

// FetchError is a failed fetch for a single product.
type FetchError struct {
	ProductID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.ProductID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
