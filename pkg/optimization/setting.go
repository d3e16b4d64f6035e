package optimization

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/peter-kozarec/ticksim/pkg/simulation"
	"github.com/peter-kozarec/ticksim/pkg/strategy"
	"github.com/peter-kozarec/ticksim/pkg/tools/metrics"
	"github.com/peter-kozarec/ticksim/pkg/utility/fixed"
)

const settingComponentName = "optimization.setting"

var (
	ErrEmptySpace     = errors.New("optimization space is empty")
	ErrNoTarget       = errors.New("optimization target is not set")
	ErrMalformedRange = errors.New("malformed parameter range")
)

// Evaluator runs one isolated backtest for a parameter set.
type Evaluator func(ctx context.Context, params strategy.Params) (simulation.BacktestResult, error)

// Simulate evaluates parameter sets by replaying rc. rc is shared read-only by
// every evaluation.
func Simulate(rc simulation.RunContext) Evaluator {
	return func(ctx context.Context, params strategy.Params) (simulation.BacktestResult, error) {
		return simulation.Evaluate(ctx, rc, params)
	}
}

// Result is one evaluated parameter set ranked by its target metric.
type Result struct {
	Params      strategy.Params
	Target      string
	TargetValue fixed.Point
	// Objectives holds the value of every target, the primary one first.
	Objectives []fixed.Point
	Backtest   simulation.BacktestResult
}

// Setting is the optimization space: candidate values per parameter in insertion
// order, plus the metrics to maximise.
type Setting struct {
	logger  *zap.Logger
	names   []string
	values  map[string][]fixed.Point
	targets []string
}

func NewSetting(logger *zap.Logger) *Setting {
	return &Setting{
		logger: logger.With(zap.String("component", settingComponentName)),
		values: make(map[string][]fixed.Point),
	}
}

// AddParameter adds the values start, start+step, ... up to and including end.
// With zero end and step the parameter is fixed at start. A malformed range is
// logged and the parameter is left out of the space.
func (s *Setting) AddParameter(name string, start, end, step fixed.Point) error {
	if end.IsZero() && step.IsZero() {
		s.set(name, []fixed.Point{start})
		return nil
	}

	if start.Gte(end) {
		s.logger.Warn("parameter start must be below end, parameter skipped",
			zap.String("name", name),
			zap.Stringer("start", start),
			zap.Stringer("end", end))
		return fmt.Errorf("%s: start %s >= end %s: %w", name, start, end, ErrMalformedRange)
	}
	if !step.IsPos() {
		s.logger.Warn("parameter step must be positive, parameter skipped",
			zap.String("name", name),
			zap.Stringer("step", step))
		return fmt.Errorf("%s: step %s: %w", name, step, ErrMalformedRange)
	}

	var values []fixed.Point
	for value := start; value.Lte(end); value = value.Add(step) {
		values = append(values, value.Trim())
	}
	s.set(name, values)
	return nil
}

// AddValues adds an explicit list of candidate values.
func (s *Setting) AddValues(name string, values ...fixed.Point) error {
	if len(values) == 0 {
		s.logger.Warn("parameter has no values, parameter skipped", zap.String("name", name))
		return fmt.Errorf("%s: no values: %w", name, ErrMalformedRange)
	}
	s.set(name, append([]fixed.Point(nil), values...))
	return nil
}

func (s *Setting) set(name string, values []fixed.Point) {
	if _, ok := s.values[name]; !ok {
		s.names = append(s.names, name)
	}
	s.values[name] = values
}

// SetTarget sets the primary metric to maximise.
func (s *Setting) SetTarget(name string) {
	if len(s.targets) == 0 {
		s.targets = []string{name}
		return
	}
	s.targets[0] = name
}

// AddTarget adds a further objective for the genetic search. The first target
// added becomes the primary one when none is set.
func (s *Setting) AddTarget(name string) {
	s.targets = append(s.targets, name)
}

func (s *Setting) Target() string {
	if len(s.targets) == 0 {
		return ""
	}
	return s.targets[0]
}

func (s *Setting) Targets() []string {
	return append([]string(nil), s.targets...)
}

func (s *Setting) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Setting) Values(name string) []fixed.Point {
	return append([]fixed.Point(nil), s.values[name]...)
}

// Size is the number of parameter sets in the space.
func (s *Setting) Size() int {
	if len(s.names) == 0 {
		return 0
	}
	size := 1
	for _, name := range s.names {
		size *= len(s.values[name])
	}
	return size
}

// Generate returns the cartesian product of all parameter values, the last
// added parameter varying fastest.
func (s *Setting) Generate() ([]strategy.Params, error) {
	if s.Size() == 0 {
		return nil, ErrEmptySpace
	}

	out := make([]strategy.Params, 0, s.Size())
	indexes := make([]int, len(s.names))
	for {
		out = append(out, s.params(indexes))

		pos := len(indexes) - 1
		for ; pos >= 0; pos-- {
			indexes[pos]++
			if indexes[pos] < len(s.values[s.names[pos]]) {
				break
			}
			indexes[pos] = 0
		}
		if pos < 0 {
			return out, nil
		}
	}
}

func (s *Setting) params(indexes []int) strategy.Params {
	params := make(strategy.Params, len(s.names))
	for idx, name := range s.names {
		params[idx] = strategy.Param{Name: name, Value: s.values[name][indexes[idx]]}
	}
	return params
}

func (s *Setting) validateTargets() error {
	if len(s.targets) == 0 || s.targets[0] == "" {
		return ErrNoTarget
	}
	for _, target := range s.targets {
		if _, err := (metrics.Statistics{}).Value(target); err != nil {
			return err
		}
	}
	return nil
}

// objectives reads every target of the setting from a backtest.
func (s *Setting) objectives(result simulation.BacktestResult) ([]fixed.Point, error) {
	values := make([]fixed.Point, len(s.targets))
	for idx, target := range s.targets {
		value, err := result.Statistics.Value(target)
		if err != nil {
			return nil, err
		}
		values[idx] = value
	}
	return values, nil
}
