package strategy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/peter-kozarec/ticksim/pkg/strategy"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

var registry = map[string]strategy.Factory{
	QueueMakerName: NewQueueMaker,
}

// Lookup returns the factory registered under name.
func Lookup(name string) (strategy.Factory, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%q (known: %v): %w", name, Names(), ErrUnknownStrategy)
	}
	return factory, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
