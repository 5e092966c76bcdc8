package health_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/shellcache/health"
)

func ExampleAggregator() {
	agg := health.NewAggregator()
	agg.Register(health.NewCheckerFunc("shell", func(context.Context) health.Result {
		return health.Healthy("shell complete")
	}))
	agg.Register(health.NewCheckerFunc("upstream", func(context.Context) health.Result {
		return health.Degraded("origin circuit open, serving from cache")
	}))

	results := agg.CheckAll(context.Background())
	fmt.Println(health.OverallStatus(results))
	// Output: degraded
}
