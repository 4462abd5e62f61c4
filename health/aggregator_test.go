package health

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func staticChecker(result Result) Checker {
	return NewCheckerFunc("static", func(ctx context.Context) Result {
		return result
	})
}

func TestAggregator_RegisterKeepsOrder(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register("db", staticChecker(Healthy("ok")))
	agg.Register("redis", staticChecker(Healthy("ok")))
	agg.Register("circuits", staticChecker(Healthy("ok")))

	// Re-registering an existing name keeps its slot.
	agg.Register("db", staticChecker(Degraded("slow")))

	want := []string{"db", "redis", "circuits"}
	if got := agg.CheckerNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("CheckerNames() = %v, want %v", got, want)
	}
}

func TestAggregator_Unregister(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register("db", staticChecker(Healthy("ok")))
	agg.Register("redis", staticChecker(Healthy("ok")))

	agg.Unregister("db")

	want := []string{"redis"}
	if got := agg.CheckerNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("CheckerNames() = %v, want %v", got, want)
	}
	if _, err := agg.Check(context.Background(), "db"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(db) error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckUnknown(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})

	if _, err := agg.Check(context.Background(), "nope"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check() error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	agg.Register("db", staticChecker(Healthy("reachable")))
	agg.Register("redis", staticChecker(Degraded("pool pressure")))

	results := agg.CheckAll(context.Background())

	if len(results) != 2 {
		t.Fatalf("CheckAll() returned %d results, want 2", len(results))
	}
	if results["db"].Status != StatusHealthy {
		t.Errorf("db status = %v, want healthy", results["db"].Status)
	}
	if results["redis"].Status != StatusDegraded {
		t.Errorf("redis status = %v, want degraded", results["redis"].Status)
	}
	if results["db"].Timestamp.IsZero() {
		t.Error("result missing timestamp")
	}
}

func TestAggregator_CheckAllSequential(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Sequential: true})
	agg.Register("a", staticChecker(Healthy("ok")))
	agg.Register("b", staticChecker(Healthy("ok")))

	if results := agg.CheckAll(context.Background()); len(results) != 2 {
		t.Errorf("CheckAll() returned %d results, want 2", len(results))
	}
}

func TestAggregator_CheckAllEmpty(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})

	if results := agg.CheckAll(context.Background()); len(results) != 0 {
		t.Errorf("CheckAll() returned %d results, want 0", len(results))
	}
}

func TestAggregator_SlowCheckTimesOut(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register("slow", NewCheckerFunc("slow", func(ctx context.Context) Result {
		time.Sleep(200 * time.Millisecond)
		return Healthy("too late")
	}))

	results := agg.CheckAll(context.Background())

	r := results["slow"]
	if r.Status != StatusUnhealthy {
		t.Errorf("status = %v, want unhealthy", r.Status)
	}
	if !errors.Is(r.Error, ErrCheckTimeout) {
		t.Errorf("error = %v, want ErrCheckTimeout", r.Error)
	}
}

func TestAggregator_OverallStatus(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})

	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", map[string]Result{}, StatusHealthy},
		{"all healthy", map[string]Result{"a": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := agg.OverallStatus(tt.results); got != tt.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
