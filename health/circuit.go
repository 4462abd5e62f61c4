package health

import (
	"context"
	"sort"
	"strings"

	"github.com/penpalhq/keel/resilience"
)

// CircuitChecker folds a circuit breaker registry into the health report.
// Open circuits mean a dependency is being shed, so the service is degraded
// rather than unhealthy: it still serves traffic, just with fallbacks.
type CircuitChecker struct {
	registry *resilience.Registry
}

// NewCircuitChecker wraps the given registry.
func NewCircuitChecker(registry *resilience.Registry) *CircuitChecker {
	return &CircuitChecker{registry: registry}
}

// Name implements Checker.
func (c *CircuitChecker) Name() string { return "circuits" }

// Check implements Checker.
func (c *CircuitChecker) Check(ctx context.Context) Result {
	states := c.registry.States()

	details := make(map[string]any, len(states))
	var open []string
	for name, state := range states {
		details[name] = state.String()
		if state == resilience.StateOpen {
			open = append(open, name)
		}
	}

	if len(open) > 0 {
		sort.Strings(open)
		return Degraded("open circuits: " + strings.Join(open, ", ")).WithDetails(details)
	}
	return Healthy("all circuits closed").WithDetails(details)
}

var _ Checker = (*CircuitChecker)(nil)
