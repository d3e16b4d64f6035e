package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peter-kozarec/ticksim/pkg/datasource/historical"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const header = "datetime,last_price,volume,turnover,open_interest," +
	"bid_price_1,bid_price_2,bid_price_3,bid_price_4,bid_price_5," +
	"bid_volume_1,bid_volume_2,bid_volume_3,bid_volume_4,bid_volume_5," +
	"ask_price_1,ask_price_2,ask_price_3,ask_price_4,ask_price_5," +
	"ask_volume_1,ask_volume_2,ask_volume_3,ask_volume_4,ask_volume_5\n"

func TestReadTicks(t *testing.T) {
	data := header +
		"2024-07-01 09:00:00.5+08:00,3500,10,350000,1200,3499,3498,3497,3496,3495,5,6,7,8,9,3501,3502,3503,3504,3505,1,2,3,4,5\n" +
		"2024-07-01 09:00:01+08:00,3501,12,357002,1200,3500,,,,,4,,,,,3502,,,,,2,,,,\n"

	ticks, err := readTicks(strings.NewReader(data), "rb2410")
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	assert.Equal(t, "rb2410", ticks[0].Symbol)
	assert.Equal(t, 500*time.Millisecond, ticks[0].TimeStamp.Sub(ticks[0].TimeStamp.Truncate(time.Second)))
	assert.True(t, ticks[0].Bids[4].Price.Eq(fixed.FromInt(3495, 0)))
	assert.True(t, ticks[0].Bids[4].Volume.Eq(fixed.FromInt(9, 0)))
	assert.True(t, ticks[0].Asks[1].Price.Eq(fixed.FromInt(3502, 0)))
	assert.True(t, ticks[0].Asks[1].Volume.Eq(fixed.FromInt(2, 0)))
	assert.True(t, ticks[1].Bids[1].Price.IsZero(), "missing levels are empty")
	assert.True(t, ticks[1].Turnover.Eq(fixed.FromInt(357002, 0)))
}

func TestReadTicks_Malformed(t *testing.T) {
	_, err := readTicks(strings.NewReader(header+"yesterday,1,2\n"), "rb")
	assert.Error(t, err)

	row := "2024-07-01 09:00:00+08:00,abc,10,350000,1200" + strings.Repeat(",1", 20) + "\n"
	_, err = readTicks(strings.NewReader(header+row), "rb")
	assert.ErrorContains(t, err, "line 2")
}

func TestWriteBinary(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	ticks, err := load(context.Background(), "rb", nil, start.Format(time.RFC3339), start.Add(time.Minute).Format(time.RFC3339), 3)
	require.NoError(t, err)
	require.NotEmpty(t, ticks)
	require.NoError(t, writeBinary(dir, "rb", ticks))

	loaded, err := historical.NewTickReader(dir).LoadTicks(context.Background(), "rb", start, start.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, loaded, len(ticks))
	assert.True(t, loaded[0].LastPrice.Eq(ticks[0].LastPrice))
}
