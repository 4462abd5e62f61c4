package resilience

import (
	"context"
	"sync"

	"github.com/penpalhq/keel/observe"
)

// RegistryConfig configures the circuit breaker registry.
type RegistryConfig struct {
	// Logger records state transitions for every registered breaker.
	Logger observe.Logger

	// Metrics records state transitions as counter increments.
	Metrics *observe.Metrics
}

// Registry holds one named circuit breaker per guarded dependency.
// Breakers are created once and live for the process lifetime; the health
// layer reads States for the composite report.
type Registry struct {
	config RegistryConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	order    []string // registration order
}

// NewRegistry creates an empty breaker registry.
func NewRegistry(config RegistryConfig) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate returns the breaker registered under name, creating it with
// the given config on first use. Subsequent calls for the same name return
// the existing breaker and ignore the config.
func (r *Registry) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	userHook := config.OnStateChange
	config.OnStateChange = func(from, to State) {
		r.observeTransition(name, from, to)
		if userHook != nil {
			userHook(from, to)
		}
	}

	cb := NewCircuitBreaker(config)
	r.breakers[name] = cb
	r.order = append(r.order, name)
	return cb
}

// Get returns the breaker registered under name, if any.
func (r *Registry) Get(name string) (*CircuitBreaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[name]
	return cb, ok
}

// Names returns the registered breaker names in registration order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// States returns a snapshot of every breaker's current state.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	breakers := make(map[string]*CircuitBreaker, len(r.breakers))
	for name, cb := range r.breakers {
		breakers[name] = cb
	}
	r.mu.Unlock()

	states := make(map[string]State, len(breakers))
	for name, cb := range breakers {
		states[name] = cb.State()
	}
	return states
}

// ResetAll forces every registered breaker closed. Administrative use only.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.Unlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}

func (r *Registry) observeTransition(name string, from, to State) {
	ctx := context.Background()
	if r.config.Logger != nil {
		r.config.Logger.Warn(ctx, "circuit state changed",
			observe.Field{Key: "circuit", Value: name},
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()})
	}
	if r.config.Metrics != nil {
		r.config.Metrics.RecordCircuitTransition(ctx, name, from.String(), to.String())
	}
}
