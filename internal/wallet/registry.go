package wallet

import "fmt"

// Registry resolves adjustment kinds to strategies. It is immutable once built.
type Registry struct {
	strategies map[Kind]Strategy
}

// NewRegistry indexes the given strategies by kind. Two strategies declaring
// the same kind is a configuration error.
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	index := make(map[Kind]Strategy, len(strategies))
	for _, s := range strategies {
		if _, exists := index[s.Kind()]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.Kind())
		}
		index[s.Kind()] = s
	}
	return &Registry{strategies: index}, nil
}

// DefaultRegistry returns the registry holding every built-in strategy.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(AddFunds{}, SubtractFunds{}, ForceSubtractFunds{})
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the strategy registered for kind.
func (r *Registry) Lookup(kind Kind) (Strategy, error) {
	s, ok := r.strategies[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
	}
	return s, nil
}
