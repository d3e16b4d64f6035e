package synthetic

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/peter-kozarec/ticksim/pkg/common"
	"github.com/peter-kozarec/ticksim/pkg/datasource"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const (
	tickGeneratorComponentName = "datasource.synthetic.generator"
	secondsPerYear             = 365.25 * 24 * 3600
)

// Config describes the synthetic market. Prices follow a geometric Brownian motion
// and the book is quoted one price tick wide around it.
type Config struct {
	StartPrice   float64
	PriceTick    float64
	Size         float64
	Mu           float64
	Sigma        float64
	Interval     time.Duration
	LevelVolume  float64
	TradeVolume  float64
	VolumeJitter float64
}

func DefaultConfig() Config {
	return Config{
		StartPrice:   4000,
		PriceTick:    0.2,
		Size:         300,
		Mu:           0,
		Sigma:        0.25,
		Interval:     500 * time.Millisecond,
		LevelVolume:  20,
		TradeVolume:  8,
		VolumeJitter: 0.5,
	}
}

type TickGenerator struct {
	symbol string
	cfg    Config
	rng    *rand.Rand

	deltaLogPre1 float64
	deltaLogPre2 float64

	lastTime  time.Time
	lastPrice float64
	volume    float64
	turnover  float64
}

func NewTickGenerator(symbol string, cfg Config, rng *rand.Rand, start time.Time) *TickGenerator {
	deltaT := cfg.Interval.Seconds() / secondsPerYear
	return &TickGenerator{
		symbol:       symbol,
		cfg:          cfg,
		rng:          rng,
		deltaLogPre1: (cfg.Mu - 0.5*cfg.Sigma*cfg.Sigma) * deltaT,
		deltaLogPre2: cfg.Sigma * math.Sqrt(deltaT),
		lastTime:     start,
		lastPrice:    cfg.StartPrice,
	}
}

func (g *TickGenerator) GetNext() common.Tick {
	g.lastPrice *= math.Exp(g.deltaLogPre1 + g.deltaLogPre2*g.rng.NormFloat64())
	g.lastTime = g.lastTime.Add(g.cfg.Interval)

	tickSize := g.cfg.PriceTick
	bid := math.Floor(g.lastPrice/tickSize) * tickSize
	ask := bid + tickSize

	traded := math.Round(g.jitter(g.cfg.TradeVolume))
	onAsk := math.Round(traded * g.rng.Float64())
	notional := bid*(traded-onAsk) + ask*onAsk
	g.volume += traded
	g.turnover += notional * g.cfg.Size

	last := bid
	if onAsk*2 >= traded {
		last = ask
	}

	tick := common.Tick{
		Symbol:       g.symbol,
		TimeStamp:    g.lastTime,
		LastPrice:    g.price(last),
		Volume:       fixed.FromFloat64(g.volume),
		Turnover:     fixed.FromFloat64(g.turnover).Round(4),
		OpenInterest: fixed.Zero,
		Source:       tickGeneratorComponentName,
	}
	for i := 0; i < common.Depth; i++ {
		step := float64(i) * tickSize
		tick.Bids[i] = common.Level{Price: g.price(bid - step), Volume: fixed.FromFloat64(math.Max(1, math.Round(g.jitter(g.cfg.LevelVolume))))}
		tick.Asks[i] = common.Level{Price: g.price(ask + step), Volume: fixed.FromFloat64(math.Max(1, math.Round(g.jitter(g.cfg.LevelVolume))))}
	}
	return tick
}

func (g *TickGenerator) jitter(avg float64) float64 {
	v := avg * (1 + g.rng.NormFloat64()*g.cfg.VolumeJitter)
	if v < 0 {
		return 0
	}
	return v
}

func (g *TickGenerator) price(v float64) fixed.Point {
	return fixed.FromFloat64(v).RoundTo(fixed.FromFloat64(g.cfg.PriceTick))
}

// Provider generates a reproducible tick stream per symbol. The same seed, symbol
// and range always produce the same ticks.
type Provider struct {
	cfg  Config
	seed int64
}

var _ datasource.TickProvider = (*Provider)(nil)

func NewProvider(cfg Config, seed int64) *Provider {
	return &Provider{cfg: cfg, seed: seed}
}

func (p *Provider) LoadTicks(ctx context.Context, symbol string, from, to time.Time) ([]common.Tick, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(p.seed ^ int64(h.Sum64()))) // #nosec G404

	generator := NewTickGenerator(symbol, p.cfg, rng, from.Add(-p.cfg.Interval))

	var ticks []common.Tick
	for {
		if len(ticks)%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tick := generator.GetNext()
		if tick.TimeStamp.After(to) {
			break
		}
		ticks = append(ticks, tick)
	}
	return ticks, nil
}
