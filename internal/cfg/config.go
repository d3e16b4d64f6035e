package cfg

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/peter-kozarec/ticksim/pkg/data/duckdb"
	"github.com/peter-kozarec/ticksim/pkg/datasource"
	"github.com/peter-kozarec/ticksim/pkg/datasource/historical"
	"github.com/peter-kozarec/ticksim/pkg/datasource/synthetic"
	"github.com/peter-kozarec/ticksim/pkg/optimization"
	"github.com/peter-kozarec/ticksim/pkg/simulation"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

var (
	ErrUnknownSource = errors.New("unknown data source")
	ErrUnknownMode   = errors.New("unknown optimization mode")
)

const (
	SourceSynthetic = "synthetic"
	SourceBinary    = "binary"
	SourceDuckDB    = "duckdb"

	ModeGrid    = "grid"
	ModeGenetic = "genetic"
)

// Config is the YAML description of a backtest or an optimization run.
type Config struct {
	Data         Data         `yaml:"data"`
	Engine       Engine       `yaml:"engine"`
	Strategy     Strategy     `yaml:"strategy"`
	Optimization Optimization `yaml:"optimization"`
	Output       Output       `yaml:"output"`
}

type Data struct {
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	Seed   int64  `yaml:"seed"`
}

type Engine struct {
	Symbols      []string    `yaml:"symbols"`
	Start        time.Time   `yaml:"start"`
	End          time.Time   `yaml:"end"`
	Rate         fixed.Point `yaml:"rate"`
	Slippage     fixed.Point `yaml:"slippage"`
	Size         fixed.Point `yaml:"size"`
	PriceTick    fixed.Point `yaml:"price_tick"`
	Capital      fixed.Point `yaml:"capital"`
	Inverse      bool        `yaml:"inverse"`
	PartialFills bool        `yaml:"partial_fills"`
	AnnualDays   int         `yaml:"annual_days"`
	RiskFree     fixed.Point `yaml:"risk_free"`
}

type Strategy struct {
	Name   string          `yaml:"name"`
	Params strategy.Params `yaml:"params"`
}

// Parameter is either a range (start, end, step) or an explicit list of values.
type Parameter struct {
	Name   string        `yaml:"name"`
	Start  fixed.Point   `yaml:"start"`
	End    fixed.Point   `yaml:"end"`
	Step   fixed.Point   `yaml:"step"`
	Values []fixed.Point `yaml:"values"`
}

type Genetic struct {
	Population  int     `yaml:"population"`
	Generations int     `yaml:"generations"`
	Mu          int     `yaml:"mu"`
	Lambda      int     `yaml:"lambda"`
	Crossover   float64 `yaml:"crossover"`
	Mutation    float64 `yaml:"mutation"`
	Seed        int64   `yaml:"seed"`
}

type Optimization struct {
	Mode       string      `yaml:"mode"`
	Workers    int         `yaml:"workers"`
	Targets    []string    `yaml:"targets"`
	Parameters []Parameter `yaml:"parameters"`
	Genetic    Genetic     `yaml:"genetic"`
	// Segments enables the overfitting estimate of grid results when at least 2.
	Segments int `yaml:"segments"`
}

type Output struct {
	Export  string `yaml:"export"`
	PsqlDSN string `yaml:"psql_dsn"`
}

// Default is the configuration every file is decoded over.
func Default() Config {
	engine := simulation.DefaultConfiguration()
	genetic := optimization.DefaultGeneticOptions()
	return Config{
		Data: Data{Source: SourceSynthetic, Seed: 1},
		Engine: Engine{
			Rate:       engine.Rate,
			Slippage:   engine.Slippage,
			Size:       engine.Size,
			PriceTick:  engine.PriceTick,
			Capital:    engine.Capital,
			AnnualDays: engine.AnnualDays,
			RiskFree:   engine.RiskFree,
		},
		Optimization: Optimization{
			Mode: ModeGrid,
			Genetic: Genetic{
				Population:  genetic.Population,
				Generations: genetic.Generations,
				Mu:          genetic.Mu,
				Lambda:      genetic.Lambda,
				Crossover:   genetic.CrossoverProb,
				Mutation:    genetic.MutationProb,
				Seed:        genetic.Seed,
			},
		},
	}
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("unable to parse config: %w", err)
	}

	switch c.Data.Source {
	case SourceSynthetic, SourceBinary, SourceDuckDB:
	default:
		return Config{}, fmt.Errorf("%q: %w", c.Data.Source, ErrUnknownSource)
	}
	switch c.Optimization.Mode {
	case ModeGrid, ModeGenetic:
	default:
		return Config{}, fmt.Errorf("%q: %w", c.Optimization.Mode, ErrUnknownMode)
	}

	if _, err := c.Simulation(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Simulation returns the validated replay configuration.
func (c Config) Simulation() (simulation.Configuration, error) {
	s := simulation.Configuration{
		Symbols:      c.Engine.Symbols,
		Start:        c.Engine.Start,
		End:          c.Engine.End,
		Rate:         c.Engine.Rate,
		Slippage:     c.Engine.Slippage,
		Size:         c.Engine.Size,
		PriceTick:    c.Engine.PriceTick,
		Capital:      c.Engine.Capital,
		Inverse:      c.Engine.Inverse,
		PartialFills: c.Engine.PartialFills,
		AnnualDays:   c.Engine.AnnualDays,
		RiskFree:     c.Engine.RiskFree,
	}
	if err := s.Validate(); err != nil {
		return simulation.Configuration{}, err
	}
	return s, nil
}

// Setting builds the optimization space. Malformed parameters are logged by
// the setting and left out.
func (c Config) Setting(logger *zap.Logger) *optimization.Setting {
	setting := optimization.NewSetting(logger)
	for _, param := range c.Optimization.Parameters {
		if len(param.Values) > 0 {
			_ = setting.AddValues(param.Name, param.Values...)
			continue
		}
		_ = setting.AddParameter(param.Name, param.Start, param.End, param.Step)
	}
	for _, target := range c.Optimization.Targets {
		setting.AddTarget(target)
	}
	return setting
}

func (c Config) GeneticOptions() optimization.GeneticOptions {
	options := optimization.DefaultGeneticOptions()
	g := c.Optimization.Genetic
	options.Population = g.Population
	options.Generations = g.Generations
	options.Mu = g.Mu
	options.Lambda = g.Lambda
	options.CrossoverProb = g.Crossover
	options.MutationProb = g.Mutation
	options.Seed = g.Seed
	if c.Optimization.Workers > 0 {
		options.Workers = c.Optimization.Workers
	}
	return options
}

// Provider opens the configured tick source behind a cache. The returned
// function releases it.
func (c Config) Provider(logger *zap.Logger) (datasource.TickProvider, func(), error) {
	var provider datasource.TickProvider
	closer := func() {}

	switch c.Data.Source {
	case SourceSynthetic:
		provider = synthetic.NewProvider(synthetic.DefaultConfig(), c.Data.Seed)
	case SourceBinary:
		provider = historical.NewTickReader(c.Data.Path)
	case SourceDuckDB:
		store := duckdb.NewStore(logger, c.Data.Path)
		if err := store.Connect(); err != nil {
			return nil, nil, err
		}
		provider, closer = store, store.Close
	default:
		return nil, nil, fmt.Errorf("%q: %w", c.Data.Source, ErrUnknownSource)
	}

	logger.Info("tick source opened", zap.String("source", c.Data.Source), zap.String("path", c.Data.Path))
	return datasource.NewCachedProvider(provider), closer, nil
}
