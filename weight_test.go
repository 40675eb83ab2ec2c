package splitmerge

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestComputeMergeWeights(t *testing.T) {
	g, _ := scenarioFixture(t)
	a, _ := g.Symbols.Id("<A>")

	weights, err := ComputeMergeWeights(g, WeightSymmetric)
	mustNil(t, err)
	if weights[RootId] != nil {
		t.Fatal("root must have no weights")
	}
	if weights[a][0] != 0.75 || weights[a][1] != 0.25 {
		t.Fatalf("weights of A: %v", weights[a])
	}

	// Legacy formula uses the same numerator for both halves
	weights, err = ComputeMergeWeights(g, WeightLegacy)
	mustNil(t, err)
	if weights[a][0] != 0.75 || weights[a][1] != 0.75 {
		t.Fatalf("legacy weights of A: %v", weights[a])
	}

	if _, err := ComputeMergeWeights(g, "median"); err == nil {
		t.Fatal("err != nil expected")
	}
}

func TestMergeWeightsSumToOne(t *testing.T) {
	symbols := NewSymbolTable()
	a := symbols.Add("<A>")
	mustNil(t, symbols.SetNumSubsymbols(a, 8))
	g := NewGrammar(symbols)
	counts := []float64{0.1, 0.2, 3, 7, 1e-12, 5e6, 0.3333, 0.6667}
	mustNil(t, g.SetParentCounts(map[int][]float64{a: counts}))

	weights, err := ComputeMergeWeights(g, WeightSymmetric)
	mustNil(t, err)
	for j := 0; j < 8; j += 2 {
		if sum := weights[a][j] + weights[a][j+1]; sum != 1 {
			t.Fatalf("pair %d: weights sum to %v", j, sum)
		}
		if !scalar.EqualWithinRel(weights[a][j], counts[j]/(counts[j]+counts[j+1]), 1e-12) {
			t.Fatalf("pair %d: weight %v", j, weights[a][j])
		}
	}
}

func TestMergeWeightsZeroCount(t *testing.T) {
	symbols := NewSymbolTable()
	a := symbols.Add("<A>")
	mustNil(t, symbols.SetNumSubsymbols(a, 4))
	g := NewGrammar(symbols)
	mustNil(t, g.SetParentCounts(map[int][]float64{a: {0, 0, 1, 3}}))

	weights, err := ComputeMergeWeights(g, WeightSymmetric)
	mustNil(t, err)
	if !math.IsNaN(weights[a][0]) || weights.Mergeable(a, 0) {
		t.Fatalf("pair (0,1) must not be mergeable: %v", weights[a])
	}
	if !weights.Mergeable(a, 2) {
		t.Fatal("pair (2,3) must be mergeable")
	}
	if weights.Mergeable(RootId, 0) || weights.Mergeable(a, 4) {
		t.Fatal("invalid pairs must not be mergeable")
	}
}

func TestMergeWeightsInvalidCounts(t *testing.T) {
	symbols := NewSymbolTable()
	a := symbols.Add("<A>")
	b := symbols.Add("<B>")
	mustNil(t, symbols.SetNumSubsymbols(a, 2))
	mustNil(t, symbols.SetNumSubsymbols(b, 3))
	g := NewGrammar(symbols)

	// Stale counts
	if _, err := ComputeMergeWeights(g, WeightSymmetric); errors.Cause(err) != ErrStaleCounts {
		t.Fatalf("ErrStaleCounts expected, got %v", err)
	}

	// Missing counts of B
	mustNil(t, g.SetParentCounts(map[int][]float64{a: {1, 2}}))
	if _, err := ComputeMergeWeights(g, WeightSymmetric); err == nil {
		t.Fatal("err != nil expected")
	}

	// Odd number of subsymbols of B
	mustNil(t, g.SetParentCounts(map[int][]float64{a: {1, 2}, b: {1, 2, 3}}))
	if _, err := ComputeMergeWeights(g, WeightSymmetric); errors.Cause(err) != ErrInconsistent {
		t.Fatalf("ErrInconsistent expected, got %v", err)
	}

	// Counts of the wrong length are rejected when stored
	if err := g.SetParentCounts(map[int][]float64{a: {1}}); errors.Cause(err) != ErrInconsistent {
		t.Fatalf("ErrInconsistent expected, got %v", err)
	}
}
