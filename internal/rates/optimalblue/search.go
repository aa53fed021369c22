package optimalblue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxResponseBytes bounds how much of a search response is read.
const maxResponseBytes = 8 << 20

// Inputs is the loan scenario posted with a search.
type Inputs struct {
	Occupancy      string `json:"occupancy"`
	PropertyType   string `json:"propertyType"`
	LoanPurpose    string `json:"loanPurpose"`
	LoanAmount     int    `json:"loanAmount"`
	EstimatedValue int    `json:"estimatedValue"`
	State          string `json:"state"`
	Zipcode        string `json:"zipcode"`
	CreditScore    string `json:"creditScore"`
}

type searchRequest struct {
	ClientID string `json:"clientId"`
	UserID   string `json:"userId"`
	FormID   string `json:"formId"`
	Inputs   Inputs `json:"inputs"`
}

// ProductType is one family of offers, e.g. "30 Yr Fixed".
type ProductType struct {
	Name    string
	Options []Option
}

// Option is a single rate/points combination within a product type.
type Option struct {
	Rate           float64
	APR            *float64
	MonthlyPayment *float64
	Points         *float64
	Price          *float64
}

// GetResults posts a search for inputs and returns every product type offered.
func (c *Client) GetResults(ctx context.Context, inputs Inputs, opts ...ClientOption) ([]ProductType, error) {
	var override = &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		header:     c.header.Clone(),
		widget:     c.widget,
	}
	for _, opt := range opts {
		opt(override)
	}

	body, err := json.Marshal(searchRequest{
		ClientID: override.widget.ClientID,
		UserID:   override.widget.UserID,
		FormID:   override.widget.FormID,
		Inputs:   inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/api/search/GetResults", override.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = override.header
	req.Header.Set("Content-Type", "application/json")

	res, err := override.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusBadRequest:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return nil, fmt.Errorf("bad request: %s", strings.TrimSpace(string(b)))

	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("unauthorized")

	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("rate limited")

	default:
		return nil, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	return parseResults(raw)
}

func parseResults(raw []byte) ([]ProductType, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("decoding search response: invalid json")
	}

	// {
	//   "results": {
	//     "$values": [
	//       {
	//         "name": "30 Yr Fixed",
	//         "products": {
	//           "$values": [
	//             {"rate": 6.125, "apr": 6.201, "monthlyPayments": 13665.2, "discounts": 0.5, "price": 99.5}
	//           ]
	//         }
	//       }
	//     ]
	//   }
	// }
	results := gjson.GetBytes(raw, "results.$values")
	if !results.IsArray() {
		return nil, fmt.Errorf("decoding search response: missing results")
	}

	var types = []ProductType{}
	results.ForEach(func(_, pt gjson.Result) bool {
		t := ProductType{Name: strings.TrimSpace(pt.Get("name").String())}
		pt.Get("products.$values").ForEach(func(_, p gjson.Result) bool {
			rate := p.Get("rate")
			if rate.Type != gjson.Number {
				// Offers without a rate are ineligible scenarios.
				return true
			}
			t.Options = append(t.Options, Option{
				Rate:           rate.Float(),
				APR:            number(p, "apr"),
				MonthlyPayment: number(p, "monthlyPayments"),
				Points:         number(p, "discounts"),
				Price:          number(p, "price"),
			})
			return true
		})
		types = append(types, t)
		return true
	})
	return types, nil
}

func number(r gjson.Result, key string) *float64 {
	v := r.Get(key)
	if v.Type != gjson.Number {
		return nil
	}
	f := v.Float()
	return &f
}
