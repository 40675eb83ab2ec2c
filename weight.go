package splitmerge

import (
	"math"

	"github.com/pkg/errors"
)

// WeightFormula selects how the two halves of a subsymbol pair are weighted
type WeightFormula string

const (
	// WeightSymmetric gives each half its own share of the pair count, so
	// the two weights of a pair sum to 1
	WeightSymmetric WeightFormula = "symmetric"

	// WeightLegacy uses the count of the even subsymbol as numerator for
	// both halves. Only useful to reproduce outputs of older models
	WeightLegacy WeightFormula = "legacy"
)

// MergeWeights holds, for every symbol id, the weight of each subsymbol when
// its pair is merged. The root entry is nil. A pair whose count is zero has
// NaN weights and can not be merged
type MergeWeights [][]float64

// Mergeable reports whether the pair starting at the even index pair of
// symbol has defined weights
func (w MergeWeights) Mergeable(symbol, pair int) bool {
	if symbol <= RootId || symbol >= len(w) || pair < 0 || pair+1 >= len(w[symbol]) {
		return false
	}
	return !math.IsNaN(w[symbol][pair]) && !math.IsNaN(w[symbol][pair+1])
}

// ComputeMergeWeights derives the merge weights from the parent counts of g.
// Every split symbol must have an even number of subsymbols
func ComputeMergeWeights(g *Grammar, formula WeightFormula) (MergeWeights, error) {
	counts, err := g.ParentCounts()
	if err != nil {
		return nil, errors.Wrap(err, "ComputeMergeWeights")
	}
	if formula == "" {
		formula = WeightSymmetric
	}
	if formula != WeightSymmetric && formula != WeightLegacy {
		return nil, errors.Errorf("ComputeMergeWeights: unknown formula %q", formula)
	}

	// Root symbol is never split and never merged
	weights := make(MergeWeights, g.Symbols.Len())
	for symbol := 1; symbol < g.Symbols.Len(); symbol++ {
		n := g.Symbols.NumSubsymbols(symbol)
		c, ok := counts[symbol]
		if !ok {
			return nil, errors.Errorf("ComputeMergeWeights: no counts for %s", g.Symbols.Name(symbol))
		}
		if len(c) != n {
			return nil, errors.Wrapf(
				ErrInconsistent,
				"ComputeMergeWeights: %s has %d subsymbols, %d counts found",
				g.Symbols.Name(symbol),
				n,
				len(c))
		}
		if n == 1 {
			// Unsplit symbol, nothing to merge
			weights[symbol] = []float64{1}
			continue
		}
		if n%2 != 0 {
			return nil, errors.Wrapf(
				ErrInconsistent,
				"ComputeMergeWeights: %s has an odd number (%d) of subsymbols",
				g.Symbols.Name(symbol),
				n)
		}

		w := make([]float64, n)
		for j := 0; j < n; j += 2 {
			total := c[j] + c[j+1]
			if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
				w[j], w[j+1] = math.NaN(), math.NaN()
				continue
			}
			w[j] = c[j] / total
			if formula == WeightLegacy {
				w[j+1] = c[j] / total
			} else {
				w[j+1] = 1 - w[j]
			}
		}
		weights[symbol] = w
	}
	return weights, nil
}
