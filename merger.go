// Package splitmerge implements the merge phase of split-merge training of
// latent-variable grammars
package splitmerge

import (
	"runtime"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// MergeReport describes what a merge round did
type MergeReport struct {
	// Number of ranked candidates
	Candidates int

	// Number of merges allowed by the merge rate
	Requested int

	// Merged candidates in selection order
	Selected []Candidate

	// Ascending even indices of the merged pairs, per symbol id
	Instructions map[int][]int

	// Subsymbol counts before and after the round
	OldSubsymbols []int
	NewSubsymbols []int
}

// Merger merges subsymbol pairs of a split grammar back together
type Merger struct {
	Config MergeConfig
}

// NewMerger creates a merger with config
func NewMerger(config MergeConfig) *Merger {
	return &Merger{Config: config}
}

// MergeGrammar merges with the default configuration. See Merger.MergeGrammar
func MergeGrammar(g *Grammar, treebank *Treebank, mergeRate float64) (*MergeReport, error) {
	return NewMerger(DefaultConfig()).MergeGrammar(g, treebank, mergeRate)
}

// MergeGrammar runs one merge round: it ranks every subsymbol pair by the
// estimated treebank likelihood after merging it, merges the best
// mergeRate fraction of them in all rule tables and the symbol table, and
// relabels every tree. Inner and outer scores of the trees are dropped and
// must be recomputed before the next round.
//
// If it fails, grammar and treebank are left unchanged
func (m *Merger) MergeGrammar(g *Grammar, treebank *Treebank, mergeRate float64) (*MergeReport, error) {
	if err := checkRate(mergeRate); err != nil {
		return nil, errors.Wrap(err, "MergeGrammar")
	}
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "MergeGrammar")
	}

	if _, err := g.ParentCounts(); errors.Cause(err) == ErrStaleCounts {
		glog.Infof("parent counts are stale, recounting from %d trees", treebank.Len())
		if err := g.RecountParents(treebank); err != nil {
			return nil, errors.Wrap(err, "MergeGrammar")
		}
	}
	weights, err := ComputeMergeWeights(g, m.Config.WeightFormula)
	if err != nil {
		return nil, errors.Wrap(err, "MergeGrammar")
	}

	// Rank and select
	ranker := &Ranker{
		Grammar:  g,
		Treebank: treebank,
		Weights:  weights,
		Workers:  m.Config.Workers,
	}
	ranked, err := ranker.Rank()
	if err != nil {
		return nil, errors.Wrap(err, "MergeGrammar")
	}
	selected, requested, err := SelectCandidates(ranked, BudgetPolicy{Rate: mergeRate}, m.Config.EarlyStop)
	if err != nil {
		return nil, errors.Wrap(err, "MergeGrammar")
	}
	glog.Infof("%d candidates, %d merges requested, %d selected", len(ranked), requested, len(selected))

	report := &MergeReport{
		Candidates:    len(ranked),
		Requested:     requested,
		Selected:      selected,
		Instructions:  mergeInstructions(selected),
		OldSubsymbols: g.Symbols.SubsymbolCounts(),
	}
	report.NewSubsymbols = g.Symbols.SubsymbolCounts()
	for symbol, pairs := range report.Instructions {
		report.NewSubsymbols[symbol] -= len(pairs)
		glog.V(1).Infof("%s: merged pairs %v, %d subsymbols left",
			g.Symbols.Name(symbol),
			pairs,
			report.NewSubsymbols[symbol])
	}
	if len(selected) > 0 {
		glog.Infof("last merged candidate has ratio %g", selected[len(selected)-1].Ratio)
	}

	// Collapse all tables before touching anything
	tables := map[*Rule]*Table{}
	for _, rule := range g.AllRules() {
		table, touched, err := rule.merge(report.Instructions, weights)
		if err != nil {
			return nil, errors.Wrapf(err, "MergeGrammar: %s", rule.Head(g.Symbols))
		}
		if touched {
			tables[rule] = table
			glog.V(2).Infof("%s: %v -> %v", rule.Head(g.Symbols), rule.Probs.Dims, table.Dims)
		}
	}

	g.applyMerge(tables, report.NewSubsymbols)
	relabelTrees(g.Symbols, treebank, m.Config.Workers)
	if m.Config.NormalizeAfterMerge {
		g.Normalize()
	}
	return report, nil
}

// mergeInstructions groups the selected pairs by symbol, in ascending order
func mergeInstructions(selected []Candidate) map[int][]int {
	instructions := map[int][]int{}
	for _, c := range selected {
		instructions[c.Symbol] = append(instructions[c.Symbol], c.Pair)
	}
	for _, pairs := range instructions {
		sort.Ints(pairs)
	}
	return instructions
}

// relabelTrees sets the subsymbol count of every internal node to the one in
// symbols and forgets its scores. Trees are processed concurrently
func relabelTrees(symbols *SymbolTable, treebank *Treebank, workers int) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for _, tree := range treebank.Trees() {
		tree := tree
		eg.Go(func() error {
			relabelNode(symbols, tree.Node)
			return nil
		})
	}
	// relabelNode cannot fail, Wait only joins the workers
	_ = eg.Wait()
}

func relabelNode(symbols *SymbolTable, node *Node) {
	if node.IsLeaf() {
		return
	}
	node.Label.NumSubsymbols = symbols.NumSubsymbols(node.Label.Symbol)
	node.ForgetScores()
	for _, child := range node.Children {
		relabelNode(symbols, child)
	}
}
