package splitmerge

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Label is the annotation of an internal node in a parsing tree
type Label struct {
	// Id of the nonterminal symbol
	Symbol int

	// Number of subsymbols of Symbol when the scores were computed
	NumSubsymbols int

	// Inner[i] is the probability of the span given subsymbol i
	Inner []float64

	// Outer[i] is the probability of everything outside the span given
	// subsymbol i
	Outer []float64
}

// Node represents a single node in an annotated parsing tree. Leaf nodes
// carry a terminal word and no label statistics
type Node struct {
	Label Label

	// Terminal word, only for leaf nodes
	Word string

	// Children nodes, owned by this node
	Children []*Node
}

// Tree represents an annotated parsing tree
type Tree struct {
	*Node
}

// NewLeaf creates a leaf node for word
func NewLeaf(word string) *Node {
	return &Node{Word: word}
}

// NewNode creates an internal node of symbol with numSubsymbols subsymbols
func NewNode(symbol, numSubsymbols int, children ...*Node) *Node {
	return &Node{
		Label:    Label{Symbol: symbol, NumSubsymbols: numSubsymbols},
		Children: children,
	}
}

// IsLeaf returns true if n is a terminal node
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// HasScores returns true if both inner and outer scores are present
func (n *Node) HasScores() bool {
	return n.Label.Inner != nil && n.Label.Outer != nil
}

// SetScores stores the inner and outer scores computed by inside-outside
func (n *Node) SetScores(inner, outer []float64) error {
	if n.IsLeaf() {
		return errors.New("SetScores: leaf node has no scores")
	}
	if len(inner) != n.Label.NumSubsymbols || len(outer) != n.Label.NumSubsymbols {
		return errors.Wrapf(
			ErrInconsistent,
			"SetScores: %d/%d scores for %d subsymbols",
			len(inner),
			len(outer),
			n.Label.NumSubsymbols)
	}
	n.Label.Inner = inner
	n.Label.Outer = outer
	return nil
}

// ForgetScores drops the inner and outer scores. Calling it on a node
// without scores does nothing
func (n *Node) ForgetScores() {
	n.Label.Inner = nil
	n.Label.Outer = nil
}

// Walk visits n and all of its descendants in pre-order. The path is the
// child index sequence from the tree root to the visited node
func (n *Node) Walk(fn func(node *Node, path []int) error) error {
	return n.walk(nil, fn)
}

func (n *Node) walk(path []int, fn func(node *Node, path []int) error) error {
	if err := fn(n, path); err != nil {
		return err
	}
	for i, child := range n.Children {
		if err := child.walk(append(path[:len(path):len(path)], i), fn); err != nil {
			return err
		}
	}
	return nil
}

// Yield returns the terminal words under n from left to right
func (n *Node) Yield() []string {
	if n.IsLeaf() {
		return []string{n.Word}
	}
	words := []string{}
	for _, child := range n.Children {
		words = append(words, child.Yield()...)
	}
	return words
}

// String converts the node to the bracketed string format, symbols are
// written as ids
func (n *Node) String() string {
	return n.repr(nil, 0)
}

// Format converts the node to the bracketed string format using the symbol
// names in symbols
func (n *Node) Format(symbols *SymbolTable) string {
	return n.repr(symbols, 0)
}

// repr gets the string representation of the node recursively
func (n *Node) repr(symbols *SymbolTable, level int) string {
	prefix := strings.Repeat(" ", level*2)
	if level != 0 {
		prefix = "\n" + prefix
	}

	// Don't wrap with parentheses when it's a leaf node
	if n.IsLeaf() {
		return prefix + n.Word
	}

	name := fmt.Sprintf("#%d", n.Label.Symbol)
	if symbols != nil {
		name = symbols.Name(n.Label.Symbol)
	}
	childrenReprs := []string{}
	for _, child := range n.Children {
		childrenReprs = append(childrenReprs, child.repr(symbols, level+1))
	}
	return fmt.Sprintf(
		"%s(%s[%d] %s)",
		prefix,
		name,
		n.Label.NumSubsymbols,
		strings.Join(childrenReprs, " "))
}

// score returns sum_i inner[i] * outer[i] of the node, which equals the
// probability of the whole sentence for any node of a tree
func (n *Node) score() (float64, error) {
	if !n.HasScores() {
		return 0, ErrMissingScores
	}
	if len(n.Label.Inner) != len(n.Label.Outer) {
		return 0, errors.Wrapf(
			ErrInconsistent,
			"%d inner scores but %d outer scores",
			len(n.Label.Inner),
			len(n.Label.Outer))
	}
	return floats.Dot(n.Label.Inner, n.Label.Outer), nil
}

// SentenceScore returns the probability of the sentence under the tree, the
// inner score of the root weighted by its outer score (which is 1 for a
// well-formed root)
func (t *Tree) SentenceScore() (float64, error) {
	if t.Node == nil || t.IsLeaf() {
		return 0, errors.New("SentenceScore: empty tree")
	}
	return t.score()
}
