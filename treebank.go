package splitmerge

import (
	"github.com/pkg/errors"
)

// Treebank is an ordered collection of annotated trees. Trees are assumed to
// be independent when computing the corpus likelihood
type Treebank struct {
	trees []*Tree
}

// NewTreebank creates a treebank from trees
func NewTreebank(trees ...*Tree) *Treebank {
	return &Treebank{trees: trees}
}

// Add appends a tree to the treebank
func (tb *Treebank) Add(tree *Tree) {
	tb.trees = append(tb.trees, tree)
}

// Len returns the number of trees
func (tb *Treebank) Len() int {
	return len(tb.trees)
}

// Tree returns the i-th tree
func (tb *Treebank) Tree(i int) *Tree {
	return tb.trees[i]
}

// Trees returns the trees in order. The slice must not be modified
func (tb *Treebank) Trees() []*Tree {
	return tb.trees
}

// SentenceScores returns the sentence probability of every tree
func (tb *Treebank) SentenceScores() ([]float64, error) {
	scores := make([]float64, len(tb.trees))
	for i, tree := range tb.trees {
		score, err := tree.SentenceScore()
		if err != nil {
			return nil, errors.Wrapf(err, "tree %d", i)
		}
		scores[i] = score
	}
	return scores, nil
}

// Validate checks that every internal node agrees with symbols and carries
// inner/outer scores sized to its subsymbol count
func (tb *Treebank) Validate(symbols *SymbolTable) error {
	for i, tree := range tb.trees {
		if tree == nil || tree.Node == nil {
			return errors.Wrapf(ErrInconsistent, "tree %d is empty", i)
		}
		err := tree.Walk(func(node *Node, path []int) error {
			if node.IsLeaf() {
				return nil
			}
			return checkNode(symbols, node, path)
		})
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}
	return nil
}

// checkNode checks the label of a single internal node
func checkNode(symbols *SymbolTable, node *Node, path []int) error {
	label := &node.Label
	if !symbols.Contains(label.Symbol) {
		return errors.Wrapf(ErrInconsistent, "node %v: unknown symbol %d", path, label.Symbol)
	}
	if label.NumSubsymbols != symbols.NumSubsymbols(label.Symbol) {
		return errors.Wrapf(
			ErrInconsistent,
			"node %v (%s): %d subsymbols, symbol table has %d",
			path,
			symbols.Name(label.Symbol),
			label.NumSubsymbols,
			symbols.NumSubsymbols(label.Symbol))
	}
	if !node.HasScores() {
		return errors.Wrapf(ErrMissingScores, "node %v (%s)", path, symbols.Name(label.Symbol))
	}
	if len(label.Inner) != label.NumSubsymbols || len(label.Outer) != label.NumSubsymbols {
		return errors.Wrapf(
			ErrInconsistent,
			"node %v (%s): %d/%d scores for %d subsymbols",
			path,
			symbols.Name(label.Symbol),
			len(label.Inner),
			len(label.Outer),
			label.NumSubsymbols)
	}
	return nil
}
