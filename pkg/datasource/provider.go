package datasource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/peter-kozarec/ticksim/pkg/common"
)

// TickProvider loads the chronological ticks of one symbol within [from, to].
// A period without data yields an empty slice, not an error.
type TickProvider interface {
	LoadTicks(ctx context.Context, symbol string, from, to time.Time) ([]common.Tick, error)
}

// MemoryProvider serves ticks held in memory, keyed by symbol.
type MemoryProvider struct {
	ticks map[string][]common.Tick
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{ticks: make(map[string][]common.Tick)}
}

// Add appends ticks of their own symbols, keeping each symbol sorted by timestamp.
func (p *MemoryProvider) Add(ticks ...common.Tick) {
	touched := make(map[string]struct{})
	for _, tick := range ticks {
		p.ticks[tick.Symbol] = append(p.ticks[tick.Symbol], tick)
		touched[tick.Symbol] = struct{}{}
	}
	for symbol := range touched {
		leg := p.ticks[symbol]
		sort.SliceStable(leg, func(i, j int) bool {
			return leg[i].TimeStamp.Before(leg[j].TimeStamp)
		})
	}
}

func (p *MemoryProvider) LoadTicks(_ context.Context, symbol string, from, to time.Time) ([]common.Tick, error) {
	leg := p.ticks[symbol]
	lo := sort.Search(len(leg), func(i int) bool { return !leg[i].TimeStamp.Before(from) })
	hi := sort.Search(len(leg), func(i int) bool { return leg[i].TimeStamp.After(to) })
	if lo >= hi {
		return nil, nil
	}
	out := make([]common.Tick, hi-lo)
	copy(out, leg[lo:hi])
	return out, nil
}

// CachedProvider memoises loaded legs so that independent replays of the same range
// share one read-only copy. Concurrent loads of the same key are collapsed.
type CachedProvider struct {
	provider TickProvider

	mu    sync.RWMutex
	cache map[cacheKey][]common.Tick
	group singleflight.Group
}

type cacheKey struct {
	symbol string
	from   int64
	to     int64
}

func NewCachedProvider(provider TickProvider) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    make(map[cacheKey][]common.Tick),
	}
}

// LoadTicks returns a shared slice; callers must not modify it.
func (c *CachedProvider) LoadTicks(ctx context.Context, symbol string, from, to time.Time) ([]common.Tick, error) {
	key := cacheKey{symbol: symbol, from: from.UnixNano(), to: to.UnixNano()}

	c.mu.RLock()
	ticks, ok := c.cache[key]
	c.mu.RUnlock()
	if ok {
		return ticks, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("%s/%d/%d", key.symbol, key.from, key.to), func() (interface{}, error) {
		ticks, err := c.provider.LoadTicks(ctx, symbol, from, to)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[key] = ticks
		c.mu.Unlock()
		return ticks, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]common.Tick), nil
}

// Clear drops every cached leg.
func (c *CachedProvider) Clear() {
	c.mu.Lock()
	c.cache = make(map[cacheKey][]common.Tick)
	c.mu.Unlock()
}
