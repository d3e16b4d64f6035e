package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const timeLayout = "2006-01-02 15:04:05.999999999Z07:00"

// recordWidth is datetime, last price, volume, turnover, open interest and
// price/volume pairs for five bid and five ask levels.
const recordWidth = 5 + 4*common.Depth

// readTicks parses a tick CSV with a header line. Columns are datetime,
// last_price, volume, turnover, open_interest, then bid_price_1..5,
// bid_volume_1..5, ask_price_1..5 and ask_volume_1..5. Empty book cells are zero.
func readTicks(r io.Reader, symbol string) ([]common.Tick, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = recordWidth
	reader.ReuseRecord = true

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("unable to read header: %w", err)
	}

	var ticks []common.Tick
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return ticks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		tick, err := parseRecord(record, symbol)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ticks = append(ticks, tick)
	}
}

func parseRecord(record []string, symbol string) (common.Tick, error) {
	ts, err := time.Parse(timeLayout, record[0])
	if err != nil {
		return common.Tick{}, err
	}

	values := make([]fixed.Point, len(record)-1)
	for idx, cell := range record[1:] {
		if cell == "" {
			values[idx] = fixed.Zero
			continue
		}
		if values[idx], err = fixed.Parse(cell); err != nil {
			return common.Tick{}, fmt.Errorf("column %d: %w", idx+2, err)
		}
	}

	tick := common.Tick{
		Symbol:       symbol,
		TimeStamp:    ts,
		LastPrice:    values[0],
		Volume:       values[1],
		Turnover:     values[2],
		OpenInterest: values[3],
	}
	book := values[4:]
	for level := 0; level < common.Depth; level++ {
		tick.Bids[level] = common.Level{Price: book[level], Volume: book[common.Depth+level]}
		tick.Asks[level] = common.Level{Price: book[2*common.Depth+level], Volume: book[3*common.Depth+level]}
	}
	return tick, nil
}
