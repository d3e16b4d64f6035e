package optimization

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const geneticComponentName = "optimization.genetic"

type GeneticOptions struct {
	Population    int
	Generations   int
	Mu            int // individuals kept per generation
	Lambda        int // offspring bred per generation
	CrossoverProb float64
	MutationProb  float64
	Seed          int64
	Workers       int
	CacheSize     int
}

func DefaultGeneticOptions() GeneticOptions {
	return GeneticOptions{
		Population:    100,
		Generations:   30,
		Mu:            80,
		Lambda:        100,
		CrossoverProb: 0.95,
		MutationProb:  0.05,
		Seed:          1,
		Workers:       runtime.NumCPU(),
		CacheSize:     1 << 16,
	}
}

func (o GeneticOptions) validate() error {
	if o.Population <= 0 || o.Mu <= 0 || o.Lambda <= 0 || o.Generations < 0 {
		return fmt.Errorf("population %d, mu %d, lambda %d, generations %d: %w",
			o.Population, o.Mu, o.Lambda, o.Generations, ErrMalformedRange)
	}
	if o.CrossoverProb < 0 || o.MutationProb < 0 || o.CrossoverProb+o.MutationProb > 1 {
		return fmt.Errorf("crossover %.2f + mutation %.2f must lie in [0, 1]: %w",
			o.CrossoverProb, o.MutationProb, ErrMalformedRange)
	}
	return nil
}

type individual struct {
	genes   []int
	fitness []float64 // nil until evaluated
	result  *Result   // nil when the evaluation failed
}

func (i *individual) clone() *individual {
	return &individual{
		genes:   append([]int(nil), i.genes...),
		fitness: i.fitness,
		result:  i.result,
	}
}

type evaluation struct {
	result    *Result
	objective []float64
}

type genetic struct {
	logger   *zap.Logger
	setting  *Setting
	evaluate Evaluator
	options  GeneticOptions
	rng      *rand.Rand
	cache    *lru.Cache[string, evaluation]
	front    *paretoFront

	evaluations int
	cacheHits   int
}

// Genetic searches the space with a (mu + lambda) evolutionary algorithm and
// NSGA-II selection over all targets of the setting, all maximised. It returns
// the Pareto front of every parameter set evaluated. Evaluations are memoised
// per call; the cache does not outlive it.
func Genetic(ctx context.Context, logger *zap.Logger, setting *Setting, evaluate Evaluator, options GeneticOptions) ([]Result, error) {
	logger = logger.With(zap.String("component", geneticComponentName))

	if setting.Size() == 0 {
		return nil, ErrEmptySpace
	}
	if err := setting.validateTargets(); err != nil {
		return nil, err
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	if options.Workers <= 0 {
		options.Workers = runtime.NumCPU()
	}
	if options.CacheSize <= 0 {
		options.CacheSize = DefaultGeneticOptions().CacheSize
	}

	cache, err := lru.New[string, evaluation](options.CacheSize)
	if err != nil {
		return nil, err
	}
	defer cache.Purge()

	g := &genetic{
		logger:   logger,
		setting:  setting,
		evaluate: evaluate,
		options:  options,
		rng:      rand.New(rand.NewSource(options.Seed)),
		cache:    cache,
		front:    newParetoFront(),
	}
	return g.run(ctx)
}

func (g *genetic) run(ctx context.Context) ([]Result, error) {
	g.logger.Info("genetic search started",
		zap.Int("space", g.setting.Size()),
		zap.Int("population", g.options.Population),
		zap.Int("mu", g.options.Mu),
		zap.Int("lambda", g.options.Lambda),
		zap.Int("generations", g.options.Generations),
		zap.Float64("crossover", g.options.CrossoverProb),
		zap.Float64("mutation", g.options.MutationProb),
		zap.Strings("targets", g.setting.Targets()))
	began := time.Now()

	population := make([]*individual, g.options.Population)
	for idx := range population {
		population[idx] = g.random()
	}
	if err := g.evaluateAll(ctx, population); err != nil {
		return nil, err
	}
	g.front.update(population)
	g.logGeneration(0, population)

	for gen := 1; gen <= g.options.Generations; gen++ {
		offspring := g.vary(population)
		if err := g.evaluateAll(ctx, offspring); err != nil {
			return nil, err
		}
		g.front.update(offspring)
		population = selectNSGA2(append(population, offspring...), g.options.Mu)
		g.logGeneration(gen, population)
	}

	results := make([]Result, 0, len(g.front.members))
	for _, member := range g.front.members {
		if member.result != nil {
			results = append(results, *member.result)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		for k := range results[i].Objectives {
			if c := results[i].Objectives[k].Cmp(results[j].Objectives[k]); c != 0 {
				return c > 0
			}
		}
		return false
	})

	g.logger.Info("genetic search finished",
		zap.Int("pareto_front", len(results)),
		zap.Int("evaluations", g.evaluations),
		zap.Int("cache_hits", g.cacheHits),
		zap.Duration("elapsed", time.Since(began)))

	return results, nil
}

func (g *genetic) random() *individual {
	genes := make([]int, len(g.setting.names))
	for idx, name := range g.setting.names {
		genes[idx] = g.rng.Intn(len(g.setting.values[name]))
	}
	return &individual{genes: genes}
}

func (g *genetic) params(genes []int) strategy.Params {
	return g.setting.params(genes)
}

// vary breeds lambda offspring, each by crossover, mutation or plain reproduction.
func (g *genetic) vary(population []*individual) []*individual {
	offspring := make([]*individual, 0, g.options.Lambda)
	for len(offspring) < g.options.Lambda {
		op := g.rng.Float64()
		switch {
		case op < g.options.CrossoverProb && len(population) >= 2:
			a := g.rng.Intn(len(population))
			b := g.rng.Intn(len(population) - 1)
			if b >= a {
				b++
			}
			child, other := population[a].clone(), population[b].clone()
			g.crossover(child, other)
			child.fitness, child.result = nil, nil
			offspring = append(offspring, child)
		case op < g.options.CrossoverProb+g.options.MutationProb:
			// mutation redraws every gene
			offspring = append(offspring, g.random())
		default:
			offspring = append(offspring, population[g.rng.Intn(len(population))].clone())
		}
	}
	return offspring
}

// crossover swaps the genes between two distinct cut points.
func (g *genetic) crossover(a, b *individual) {
	size := len(a.genes)
	if size < 2 {
		return
	}
	p1 := 1 + g.rng.Intn(size)
	p2 := 1 + g.rng.Intn(size-1)
	if p2 >= p1 {
		p2++
	} else {
		p1, p2 = p2, p1
	}
	for idx := p1; idx < p2 && idx < size; idx++ {
		a.genes[idx], b.genes[idx] = b.genes[idx], a.genes[idx]
	}
}

// evaluateAll assigns fitness to every unevaluated individual. Parameter sets
// already seen come from the cache; the rest run in parallel.
func (g *genetic) evaluateAll(ctx context.Context, individuals []*individual) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := make(map[string]evaluation)
	var pending []string
	pendingParams := make(map[string]strategy.Params)
	for _, ind := range individuals {
		if ind.fitness != nil {
			continue
		}
		params := g.params(ind.genes)
		key := params.Key()
		if _, ok := batch[key]; ok {
			continue
		}
		if _, ok := pendingParams[key]; ok {
			continue
		}
		if ev, ok := g.cache.Get(key); ok {
			g.cacheHits++
			batch[key] = ev
			continue
		}
		pending = append(pending, key)
		pendingParams[key] = params
	}

	var mu sync.Mutex
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.options.Workers)
	for _, key := range pending {
		params := pendingParams[key]
		eg.Go(func() error {
			ev := evaluation{objective: failedObjective(len(g.setting.targets))}
			result, err := evaluateOne(egctx, g.setting, g.evaluate, params)
			if err != nil {
				if ctxErr := egctx.Err(); ctxErr != nil {
					return ctxErr
				}
				g.logger.Warn("evaluation failed", zap.Stringer("params", params), zap.Error(err))
			} else {
				ev = evaluation{result: result, objective: toFloats(result.Objectives)}
			}

			mu.Lock()
			batch[key] = ev
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, key := range pending {
		g.cache.Add(key, batch[key])
	}
	g.evaluations += len(pending)

	for _, ind := range individuals {
		if ind.fitness == nil {
			ev := batch[g.params(ind.genes).Key()]
			ind.fitness, ind.result = ev.objective, ev.result
		}
	}
	return nil
}

func (g *genetic) logGeneration(gen int, population []*individual) {
	best := math.Inf(-1)
	sum, count := 0.0, 0
	for _, ind := range population {
		value := ind.fitness[0]
		if math.IsInf(value, 0) {
			continue
		}
		best = math.Max(best, value)
		sum += value
		count++
	}
	mean := 0.0
	if count > 0 {
		mean = sum / float64(count)
	}
	g.logger.Info("generation evaluated",
		zap.Int("generation", gen),
		zap.Int("population", len(population)),
		zap.Float64("best", best),
		zap.Float64("mean", mean),
		zap.Int("pareto_front", len(g.front.members)))
}

func toFloats(points []fixed.Point) []float64 {
	out := make([]float64, len(points))
	for idx, point := range points {
		out[idx], _ = point.Float64()
	}
	return out
}

// failedObjective ranks a failed evaluation below every successful one.
func failedObjective(n int) []float64 {
	out := make([]float64, n)
	for idx := range out {
		out[idx] = math.Inf(-1)
	}
	return out
}
