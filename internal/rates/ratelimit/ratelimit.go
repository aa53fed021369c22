package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"ratewatch/internal/rates"
)

// Source gates calls to the wrapped source through a token bucket so that
// consecutive product fetches are spaced out.
type Source struct {
	S       rates.Source
	Limiter *rate.Limiter
}

// MinInterval wraps s so that calls start at least interval apart.
// A non-positive interval returns s unchanged.
func MinInterval(s rates.Source, interval time.Duration) rates.Source {
	if interval <= 0 {
		return s
	}
	return &Source{S: s, Limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (l *Source) Name() string { return l.S.Name() }

func (l *Source) Fetch(ctx context.Context, req rates.Request) (rates.Quote, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return rates.Quote{}, &rates.FetchError{ProductID: req.ProductID, Err: err}
		}
	}
	return l.S.Fetch(ctx, req)
}
