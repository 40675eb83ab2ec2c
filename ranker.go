package splitmerge

import (
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Candidate is a subsymbol pair that may be merged
type Candidate struct {
	// Id of the nonterminal symbol
	Symbol int

	// Even index of the subsymbol pair (Pair, Pair+1)
	Pair int

	// Estimated log of P(treebank after merge) / P(treebank before merge)
	LogRatio float64

	// Ratio is exp(LogRatio)
	Ratio float64
}

func (c Candidate) String() string {
	return fmt.Sprintf("#%d(%d,%d) %g", c.Symbol, c.Pair, c.Pair+1, c.Ratio)
}

// better reports whether c ranks before o. Ties are broken by symbol and
// pair so that the order is deterministic
func (c Candidate) better(o Candidate) bool {
	if c.LogRatio != o.LogRatio {
		return c.LogRatio > o.LogRatio
	}
	if c.Symbol != o.Symbol {
		return c.Symbol < o.Symbol
	}
	return c.Pair < o.Pair
}

// Ranker estimates, for every mergeable subsymbol pair, the likelihood ratio
// of the treebank if that pair were merged. It only reads the grammar and
// the treebank
type Ranker struct {
	Grammar  *Grammar
	Treebank *Treebank
	Weights  MergeWeights

	// Maximum number of candidates evaluated at the same time. Zero means
	// GOMAXPROCS
	Workers int
}

// Rank evaluates all candidates and returns them ordered from the smallest
// estimated loss to the largest
func (r *Ranker) Rank() ([]Candidate, error) {
	symbols := r.Grammar.Symbols
	if err := r.Treebank.Validate(symbols); err != nil {
		return nil, errors.Wrap(err, "Rank")
	}
	sentenceScores, err := r.Treebank.SentenceScores()
	if err != nil {
		return nil, errors.Wrap(err, "Rank")
	}
	for i, score := range sentenceScores {
		if score <= 0 || math.IsNaN(score) {
			return nil, errors.Wrapf(ErrDegenerate, "Rank: tree %d has score %g", i, score)
		}
	}

	// Root symbol is never merged
	candidates := []Candidate{}
	for symbol := 1; symbol < symbols.Len(); symbol++ {
		for pair := 0; pair+1 < symbols.NumSubsymbols(symbol); pair += 2 {
			if !r.Weights.Mergeable(symbol, pair) {
				glog.V(1).Infof(
					"%s (%d,%d) has no count, skipped",
					symbols.Name(symbol),
					pair,
					pair+1)
				continue
			}
			candidates = append(candidates, Candidate{Symbol: symbol, Pair: pair})
		}
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i := range candidates {
		c := &candidates[i]
		eg.Go(func() error {
			logRatio := 0.0
			for t, tree := range r.Treebank.Trees() {
				treeLogRatio, err := r.treeLogRatio(tree.Node, c.Symbol, c.Pair, sentenceScores[t])
				if err != nil {
					return errors.Wrapf(err, "Rank: tree %d", t)
				}
				logRatio += treeLogRatio
			}
			c.LogRatio = logRatio
			c.Ratio = math.Exp(logRatio)
			glog.V(1).Infof(
				"merging %s (%d,%d): treebank likelihood ratio %g",
				symbols.Name(c.Symbol),
				c.Pair,
				c.Pair+1,
				c.Ratio)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].better(candidates[j])
	})
	return candidates, nil
}

// treeLogRatio computes the log ratio contributed by the subtree under node.
// Children are composed first, then the node itself if it is labeled with
// symbol
func (r *Ranker) treeLogRatio(node *Node, symbol, pair int, sentenceScore float64) (float64, error) {
	logRatio := 0.0
	for _, child := range node.Children {
		if child.IsLeaf() {
			continue
		}
		childLogRatio, err := r.treeLogRatio(child, symbol, pair, sentenceScore)
		if err != nil {
			return 0, err
		}
		logRatio += childLogRatio
	}
	if node.Label.Symbol == symbol && symbol != RootId {
		merged, err := MergedNodeScore(node, pair, r.Weights)
		if err != nil {
			return 0, err
		}
		logRatio += math.Log(merged / sentenceScore)
	}
	return logRatio, nil
}

// MergedNodeScore estimates the probability of the sentence if the pair of
// subsymbols starting at pair was collapsed at node, keeping the rest of the
// tree fixed:
//
//	(w[p]*in[p] + w[p+1]*in[p+1]) * (out[p] + out[p+1]) + sum_{i != p, p+1} in[i]*out[i]
//
// An odd pair is moved to the even index of its pair. The root symbol is
// never merged and scores 0
func MergedNodeScore(node *Node, pair int, weights MergeWeights) (float64, error) {
	if !node.HasScores() {
		return 0, ErrMissingScores
	}
	if node.IsLeaf() {
		return 0, errors.New("MergedNodeScore: leaf node can not be merged")
	}
	symbol := node.Label.Symbol
	if symbol == RootId {
		return 0, nil
	}

	inner := node.Label.Inner
	outer := node.Label.Outer
	pair = pairStart(pair)
	if len(inner) != len(outer) || pair+1 >= len(inner) {
		return 0, errors.Wrapf(
			ErrInconsistent,
			"MergedNodeScore: pair %d of %d/%d scores",
			pair,
			len(inner),
			len(outer))
	}
	if symbol >= len(weights) || len(weights[symbol]) != len(inner) {
		return 0, errors.Wrapf(ErrInconsistent, "MergedNodeScore: no weights for symbol %d", symbol)
	}

	w := weights[symbol]
	score := 0.0
	for i := 0; i < len(inner); i++ {
		if i == pair {
			score += (w[i]*inner[i] + w[i+1]*inner[i+1]) * (outer[i] + outer[i+1])
			i++
		} else {
			score += inner[i] * outer[i]
		}
	}
	return score, nil
}
