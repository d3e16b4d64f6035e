package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Reproducible(t *testing.T) {
	from := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	to := from.Add(time.Minute)

	first, err := NewProvider(DefaultConfig(), 7).LoadTicks(context.Background(), "IF", from, to)
	require.NoError(t, err)
	second, err := NewProvider(DefaultConfig(), 7).LoadTicks(context.Background(), "IF", from, to)
	require.NoError(t, err)

	require.Len(t, first, 121)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].LastPrice.Eq(second[i].LastPrice))
		assert.True(t, first[i].Turnover.Eq(second[i].Turnover))
	}
}

func TestProvider_BookShape(t *testing.T) {
	from := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	ticks, err := NewProvider(DefaultConfig(), 1).LoadTicks(context.Background(), "IF", from, from.Add(10*time.Second))
	require.NoError(t, err)
	require.NotEmpty(t, ticks)

	for i, tick := range ticks {
		assert.True(t, tick.BidPrice1().Lt(tick.AskPrice1()), "tick %d crossed", i)
		for lvl := 1; lvl < len(tick.Bids); lvl++ {
			assert.True(t, tick.Bids[lvl].Price.Lt(tick.Bids[lvl-1].Price))
			assert.True(t, tick.Asks[lvl].Price.Gt(tick.Asks[lvl-1].Price))
		}
		if i > 0 {
			assert.True(t, tick.Volume.Gte(ticks[i-1].Volume))
			assert.True(t, tick.TimeStamp.After(ticks[i-1].TimeStamp))
		}
	}
}

func TestProvider_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	from := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	_, err := NewProvider(DefaultConfig(), 1).LoadTicks(ctx, "IF", from, from.Add(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}
