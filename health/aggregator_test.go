package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

func staticChecker(name string, r Result) Checker {
	return NewCheckerFunc(name, func(context.Context) Result { return r })
}

func TestAggregator_RegisterKeepsOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register(staticChecker("shell", Healthy("ok")))
	agg.Register(staticChecker("upstream", Healthy("ok")))
	agg.Register(staticChecker("shell", Degraded("replaced")))

	names := agg.CheckerNames()
	if len(names) != 2 || names[0] != "shell" || names[1] != "upstream" {
		t.Fatalf("CheckerNames() = %v", names)
	}

	r, err := agg.Check(context.Background(), "shell")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusDegraded {
		t.Errorf("replaced checker not used: %v", r.Status)
	}
}

func TestAggregator_CheckUnknown(t *testing.T) {
	agg := NewAggregator()
	if _, err := agg.Check(context.Background(), "nope"); !errors.Is(err, ErrCheckerNotFound) {
		t.Fatalf("expected ErrCheckerNotFound, got %v", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	agg := NewAggregator()
	agg.Register(staticChecker("a", Healthy("ok")))
	agg.Register(staticChecker("b", Degraded("slow")))

	results := agg.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results["b"].Status != StatusDegraded {
		t.Errorf("b = %v", results["b"].Status)
	}
	if OverallStatus(results) != StatusDegraded {
		t.Errorf("overall = %v", OverallStatus(results))
	}
}

func TestAggregator_Timeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	agg.Register(NewCheckerFunc("slow", func(ctx context.Context) Result {
		<-ctx.Done()
		time.Sleep(5 * time.Millisecond)
		return Healthy("late")
	}))

	r := agg.CheckAll(context.Background())["slow"]
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckTimeout) {
		t.Fatalf("expected timeout result, got %+v", r)
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"healthy", map[string]Result{"a": Healthy("")}, StatusHealthy},
		{"degraded", map[string]Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]Result{"a": Degraded(""), "b": Unhealthy("", nil)}, StatusUnhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := OverallStatus(tc.results); got != tc.want {
				t.Errorf("OverallStatus() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	if StatusHealthy.String() != "healthy" || StatusDegraded.String() != "degraded" ||
		StatusUnhealthy.String() != "unhealthy" || Status(9).String() != "unknown" {
		t.Error("unexpected status strings")
	}
}
