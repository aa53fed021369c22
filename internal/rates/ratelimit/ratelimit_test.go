package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/rates"
)

type countingSource struct{ calls []time.Time }

func (c *countingSource) Name() string { return "counting" }
func (c *countingSource) Fetch(_ context.Context, req rates.Request) (rates.Quote, error) {
	c.calls = append(c.calls, time.Now())
	return rates.Quote{ProductID: req.ProductID, Rate: 6.5}, nil
}

func TestMinInterval_ZeroIsPassthrough(t *testing.T) {
	src := &countingSource{}
	require.Same(t, rates.Source(src), MinInterval(src, 0))
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	src := &countingSource{}
	limited := MinInterval(src, 50*time.Millisecond)
	require.Equal(t, "counting", limited.Name())

	for _, id := range []string{"a", "b", "c"} {
		q, err := limited.Fetch(context.Background(), rates.Request{ProductID: id})
		require.NoError(t, err)
		require.Equal(t, id, q.ProductID)
	}

	require.Len(t, src.calls, 3)
	require.GreaterOrEqual(t, src.calls[2].Sub(src.calls[0]), 90*time.Millisecond)
}

func TestMinInterval_CanceledContext(t *testing.T) {
	src := &countingSource{}
	limited := MinInterval(src, time.Hour)

	_, err := limited.Fetch(context.Background(), rates.Request{ProductID: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = limited.Fetch(ctx, rates.Request{ProductID: "b"})
	var fe *rates.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "b", fe.ProductID)
	require.Len(t, src.calls, 1)
}
