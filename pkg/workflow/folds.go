package workflow

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/neurospin/epac/pkg/domain"
)

// Cross-validation fold strategies.
const (
	CVRandom     = "random"
	CVStratified = "stratified"
	CVLOO        = "loo"
)

// foldPair is one fold's train/test row partition.
type foldPair struct {
	train []int
	test  []int
}

// foldPlan computes the per-fold row partitions for n rows. The plan is
// deterministic under seed; the union of test sets partitions [0, n) with no
// overlap. labels is consulted only by the stratified strategy.
func foldPlan(cvType string, n, nFolds int, seed int64, labels domain.Array) ([]foldPair, error) {
	switch cvType {
	case CVLOO:
		plan := make([]foldPair, n)
		for i := range plan {
			plan[i] = pairFromTest(n, []int{i})
		}
		return plan, nil
	case CVRandom, "":
		if nFolds < 2 || nFolds > n {
			return nil, fmt.Errorf("%w: n_folds %d out of range for %d rows", domain.ErrConfiguration, nFolds, n)
		}
		rows := rand.New(rand.NewSource(seed)).Perm(n)
		return chunkFolds(n, nFolds, rows), nil
	case CVStratified:
		if nFolds < 2 || nFolds > n {
			return nil, fmt.Errorf("%w: n_folds %d out of range for %d rows", domain.ErrConfiguration, nFolds, n)
		}
		if labels == nil {
			return nil, fmt.Errorf("%w: stratified folds need a label array", domain.ErrConfiguration)
		}
		return stratifiedFolds(n, nFolds, seed, labels), nil
	default:
		return nil, fmt.Errorf("%w: unknown cv_type %q", domain.ErrConfiguration, cvType)
	}
}

func pairFromTest(n int, test []int) foldPair {
	inTest := make(map[int]bool, len(test))
	for _, i := range test {
		inTest[i] = true
	}
	train := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}
	return foldPair{train: train, test: test}
}

// chunkFolds splits the shuffled rows into nFolds near-equal test chunks.
func chunkFolds(n, nFolds int, rows []int) []foldPair {
	plan := make([]foldPair, nFolds)
	start := 0
	for k := 0; k < nFolds; k++ {
		size := n / nFolds
		if k < n%nFolds {
			size++
		}
		test := append([]int(nil), rows[start:start+size]...)
		sort.Ints(test)
		plan[k] = pairFromTest(n, test)
		start += size
	}
	return plan
}

// stratifiedFolds deals each class's rows round-robin across folds so every
// fold's test set preserves the class balance.
func stratifiedFolds(n, nFolds int, seed int64, labels domain.Array) []foldPair {
	byClass := make(map[string][]int)
	var classes []string
	for i := 0; i < n; i++ {
		c := labelAt(labels, i)
		if _, ok := byClass[c]; !ok {
			classes = append(classes, c)
		}
		byClass[c] = append(byClass[c], i)
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewSource(seed))
	tests := make([][]int, nFolds)
	for _, c := range classes {
		rows := byClass[c]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		for i, row := range rows {
			k := i % nFolds
			tests[k] = append(tests[k], row)
		}
	}
	plan := make([]foldPair, nFolds)
	for k, test := range tests {
		sort.Ints(test)
		plan[k] = pairFromTest(n, test)
	}
	return plan
}

// labelAt renders row i of a label array as a class identity.
func labelAt(arr domain.Array, i int) string {
	switch a := arr.(type) {
	case domain.IntVector:
		return fmt.Sprintf("%d", a[i])
	case domain.FloatVector:
		return fmt.Sprintf("%v", a[i])
	case domain.StringVector:
		return a[i]
	default:
		return fmt.Sprintf("%v", arr.Take([]int{i}))
	}
}

// permutation returns the row permutation for one virtual child of a Perms
// node. Index 0 is the identity permutation, the unpermuted reference run;
// each further index draws an independent Fisher-Yates shuffle so children
// are computable out of order.
func permutation(n int, index int, seed int64) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	if index == 0 {
		return perm
	}
	rng := rand.New(rand.NewSource(seed + int64(index)))
	rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm
}
