package epac_test

import (
	"context"
	"fmt"
	"log"

	"github.com/neurospin/epac"
	"github.com/neurospin/epac/pkg/domain"
	"github.com/neurospin/epac/pkg/estimators"
	"github.com/neurospin/epac/pkg/workflow"
)

// Cross-validate two competing classifiers over one dataset and aggregate
// their per-fold test scores.
func Example() {
	ctx := context.Background()

	methods, err := workflow.NewMethods(
		workflow.NewEstimator(estimators.NewNearestCentroid(0)),
		workflow.NewEstimator(estimators.NewMajority()),
	)
	if err != nil {
		log.Fatal(err)
	}
	tree := workflow.NewCV(methods, 3, workflow.WithCVSeed(7))

	n := 30
	x := make(domain.FloatMatrix, n)
	y := make(domain.IntVector, n)
	for i := 0; i < n; i++ {
		c := i % 2
		y[i] = c
		v := float64(i % 5)
		if c == 1 {
			v += 10
		}
		x[i] = []float64{v}
	}

	eng := epac.New(tree)
	if _, err := eng.FitPredict(ctx, epac.DataFlow{"X": x, "y": y}); err != nil {
		log.Fatal(err)
	}
	results, err := eng.Reduce(ctx)
	if err != nil {
		log.Fatal(err)
	}

	best, _ := results.Get("NearestCentroid")
	mean, _ := best.Float("mean_score/test")
	fmt.Printf("NearestCentroid mean test score: %.2f\n", mean)
	// Output:
	// NearestCentroid mean test score: 1.00
}
