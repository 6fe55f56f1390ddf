package reduce

import (
	"fmt"

	"github.com/neurospin/epac/pkg/domain"
)

// PvalPrefix names the p-value metrics emitted by PvalPermutations.
const PvalPrefix = "pval_"

// Direction selects the tail of the permutation test.
type Direction int

const (
	// GreaterEqual counts null values greater than or equal to the
	// reference. This is the usual direction for scores where higher is
	// better.
	GreaterEqual Direction = iota

	// LessEqual counts null values less than or equal to the reference,
	// for loss-like metrics.
	LessEqual
)

// PvalPermutations reduces across a permutation axis. The group's first
// entry is the unpermuted reference run; the remaining entries form the
// empirical null distribution. For each numeric reference metric the
// fraction of null values meeting the reference under the configured
// direction is emitted as "pval_<metric>", and the reference value passes
// through under the original name.
type PvalPermutations struct {
	direction Direction
}

// PvalOption configures a PvalPermutations.
type PvalOption func(*PvalPermutations)

// WithDirection sets the test direction. Default GreaterEqual.
func WithDirection(d Direction) PvalOption {
	return func(p *PvalPermutations) {
		p.direction = d
	}
}

// NewPvalPermutations creates a PvalPermutations reducer.
func NewPvalPermutations(opts ...PvalOption) *PvalPermutations {
	p := &PvalPermutations{direction: GreaterEqual}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Direction returns the configured test direction.
func (p *PvalPermutations) Direction() Direction { return p.direction }

func (p *PvalPermutations) Reduce(key string, group []domain.Result) (domain.Result, error) {
	if len(group) < 2 {
		return nil, fmt.Errorf("%w: permutation reduction needs a reference run and at least one permuted run, got %d results", domain.ErrConfiguration, len(group))
	}
	ref := group[0]
	null := group[1:]
	out := domain.NewResult(key)
	for _, name := range metricNames(group) {
		refValue, ok := ref[name]
		if !ok {
			continue
		}
		refFloat, numeric := toFloat(refValue)
		out[name] = refValue
		if !numeric {
			continue
		}
		hits := 0
		total := 0
		for _, res := range null {
			v, ok := res.Float(name)
			if !ok {
				continue
			}
			total++
			if p.meets(v, refFloat) {
				hits++
			}
		}
		if total == 0 {
			continue
		}
		out[PvalPrefix+name] = float64(hits) / float64(total)
	}
	return out, nil
}

func (p *PvalPermutations) meets(null, ref float64) bool {
	if p.direction == LessEqual {
		return null <= ref
	}
	return null >= ref
}
