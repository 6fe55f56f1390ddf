package reduce

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurospin/epac/pkg/domain"
)

func TestPvalPermutations(t *testing.T) {
	group := scoreGroup(0.9, 0.5, 0.95, 0.85, 0.91, 0.2)

	out, err := NewPvalPermutations().Reduce("Clf", group)
	require.NoError(t, err)

	pval, ok := out.Float("pval_score/test")
	require.True(t, ok)
	assert.InDelta(t, 0.4, pval, 1e-9, "2 of 5 null values reach 0.9")

	ref, ok := out.Float("score/test")
	require.True(t, ok)
	assert.Equal(t, 0.9, ref, "reference statistic passes through")
}

func TestPvalPermutationsLessEqual(t *testing.T) {
	group := scoreGroup(0.1, 0.5, 0.05, 0.2, 0.08)

	out, err := NewPvalPermutations(WithDirection(LessEqual)).Reduce("Clf", group)
	require.NoError(t, err)

	pval, ok := out.Float("pval_score/test")
	require.True(t, ok)
	assert.InDelta(t, 0.5, pval, 1e-9)
}

func TestPvalPermutationsNeedsNull(t *testing.T) {
	_, err := NewPvalPermutations().Reduce("Clf", scoreGroup(0.9))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}
