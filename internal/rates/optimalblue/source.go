package optimalblue

import (
	"context"
	"strings"
	"time"

	"ratewatch/internal/config"
	"ratewatch/internal/rates"
)

// Source adapts Client to rates.Source. Every Fetch is one search request.
type Source struct {
	client *Client
	now    func() time.Time
}

func NewSource(client *Client) *Source {
	return &Source{client: client, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Source) Name() string { return "OptimalBlue" }

func (s *Source) Fetch(ctx context.Context, req rates.Request) (rates.Quote, error) {
	types, err := s.client.GetResults(ctx, InputsFromLoan(req.Loan))
	if err != nil {
		return rates.Quote{}, &rates.FetchError{ProductID: req.ProductID, Err: err}
	}
	q, ok := Best(types, req.Match)
	if !ok {
		return rates.Quote{}, &rates.FetchError{ProductID: req.ProductID, Err: rates.ErrNoMatch}
	}
	q.ProductID = req.ProductID
	q.ReceivedAt = s.now()
	return q, nil
}

func InputsFromLoan(l config.Loan) Inputs {
	return Inputs{
		Occupancy:      l.Occupancy,
		PropertyType:   l.PropertyType,
		LoanPurpose:    l.LoanPurpose,
		LoanAmount:     l.LoanAmount,
		EstimatedValue: l.EstimatedValue,
		State:          l.State,
		Zipcode:        l.Zipcode,
		CreditScore:    l.CreditScore,
	}
}

// Best picks the lowest-points option among product types whose name
// contains match (case-insensitive). Missing points count as zero; ties go
// to the lower rate, then to the earlier option.
func Best(types []ProductType, match string) (rates.Quote, bool) {
	needle := strings.ToLower(strings.TrimSpace(match))
	var (
		best    rates.Quote
		bestPts float64
		found   bool
	)
	for _, t := range types {
		if needle == "" || !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		for _, o := range t.Options {
			pts := 0.0
			if o.Points != nil {
				pts = *o.Points
			}
			if found && (pts > bestPts || (pts == bestPts && o.Rate >= best.Rate)) {
				continue
			}
			best = rates.Quote{
				ProductType:    t.Name,
				Rate:           o.Rate,
				APR:            o.APR,
				Points:         o.Points,
				MonthlyPayment: o.MonthlyPayment,
				Price:          o.Price,
			}
			bestPts = pts
			found = true
		}
	}
	return best, found
}
