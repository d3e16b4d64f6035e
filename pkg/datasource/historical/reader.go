package historical

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/peter-kozarec/ticksim/pkg/common"
)

const (
	tickReaderComponentName = "datasource.historical.reader"
	fileExtension           = ".bin"
)

// TickReader serves ticks from per-symbol record files named <dir>/<symbol>.bin.
// Records within a file must be sorted by timestamp.
type TickReader struct {
	dir string
}

func NewTickReader(dir string) *TickReader {
	return &TickReader{dir: dir}
}

func (t *TickReader) Path(symbol string) string {
	return filepath.Join(t.dir, symbol+fileExtension)
}

// LoadTicks reads every record of symbol within [from, to]. A missing file yields no ticks.
func (t *TickReader) LoadTicks(ctx context.Context, symbol string, from, to time.Time) ([]common.Tick, error) {
	path := t.Path(symbol)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	source := NewSource[BinaryTick](path)
	if err := source.Open(); err != nil {
		return nil, err
	}
	defer source.Close()

	count, err := source.EntryCount()
	if err != nil {
		return nil, err
	}

	idx, err := lookupStartIndex(source, count, from.UnixNano())
	if err != nil {
		return nil, err
	}

	var (
		ticks   []common.Tick
		binTick BinaryTick
		upper   = to.UnixNano()
	)
	for ; idx < count; idx++ {
		if idx%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := source.Read(idx, &binTick); err != nil {
			return nil, fmt.Errorf("error reading entry at index %d: %w", idx, err)
		}
		if binTick.TimeStamp > upper {
			break
		}

		var tick common.Tick
		binTick.ToTick(&tick)
		tick.Symbol = symbol
		tick.Source = tickReaderComponentName
		ticks = append(ticks, tick)
	}

	return ticks, nil
}

// lookupStartIndex returns the index of the first record with timestamp >= from,
// or count when there is none.
func lookupStartIndex(source *Source[BinaryTick], count, from int64) (int64, error) {
	var entry BinaryTick

	low := int64(0)
	high := count - 1

	for low <= high {
		mid := (low + high) / 2

		if err := source.Read(mid, &entry); err != nil {
			return 0, fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.TimeStamp < from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	return low, nil
}
