package historical

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

// BinaryTick is the fixed width on-disk record of one tick. It holds only 8 byte
// fields so that the struct carries no padding and can be cast from raw bytes.
type BinaryTick struct {
	TimeStamp    int64
	LastPrice    float64
	Volume       float64
	Turnover     float64
	OpenInterest float64
	BidPrice     [common.Depth]float64
	BidVolume    [common.Depth]float64
	AskPrice     [common.Depth]float64
	AskVolume    [common.Depth]float64
}

func (b BinaryTick) ToTick(tick *common.Tick) {
	tick.TimeStamp = time.Unix(0, b.TimeStamp)
	tick.LastPrice = fixed.FromFloat64(b.LastPrice)
	tick.Volume = fixed.FromFloat64(b.Volume)
	tick.Turnover = fixed.FromFloat64(b.Turnover)
	tick.OpenInterest = fixed.FromFloat64(b.OpenInterest)
	for i := 0; i < common.Depth; i++ {
		tick.Bids[i] = common.Level{Price: fixed.FromFloat64(b.BidPrice[i]), Volume: fixed.FromFloat64(b.BidVolume[i])}
		tick.Asks[i] = common.Level{Price: fixed.FromFloat64(b.AskPrice[i]), Volume: fixed.FromFloat64(b.AskVolume[i])}
	}
}

func FromTick(tick common.Tick) BinaryTick {
	b := BinaryTick{
		TimeStamp:    tick.TimeStamp.UnixNano(),
		LastPrice:    toFloat(tick.LastPrice),
		Volume:       toFloat(tick.Volume),
		Turnover:     toFloat(tick.Turnover),
		OpenInterest: toFloat(tick.OpenInterest),
	}
	for i := 0; i < common.Depth; i++ {
		b.BidPrice[i] = toFloat(tick.Bids[i].Price)
		b.BidVolume[i] = toFloat(tick.Bids[i].Volume)
		b.AskPrice[i] = toFloat(tick.Asks[i].Price)
		b.AskVolume[i] = toFloat(tick.Asks[i].Volume)
	}
	return b
}

// WriteTicks encodes ticks in the little endian record layout read by Source.
func WriteTicks(w io.Writer, ticks []common.Tick) error {
	buffered := bufio.NewWriter(w)
	for idx, tick := range ticks {
		if err := binary.Write(buffered, binary.LittleEndian, FromTick(tick)); err != nil {
			return fmt.Errorf("unable to encode tick %d: %w", idx, err)
		}
	}
	return buffered.Flush()
}

func toFloat(p fixed.Point) float64 {
	f, _ := p.Float64()
	return f
}
