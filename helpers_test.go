package splitmerge

import (
	"math"
	"testing"
)

// newFixture builds a normalized grammar
//
//	<root> ::= <A>        [0.6, 0.4]
//	<A> ::= <B> <B>       A0: [0.1 0.2 0.3 0.4], A1: [0.4 0.3 0.2 0.1]
//	<B> ::= x             [0.7, 0.2]
//	<B> ::= y             [0.3, 0.8]
//
// and three trees (root (A (B x|y) (B x|y))) with inside-outside scores
func newFixture(t *testing.T) (*Grammar, *Treebank) {
	symbols := NewSymbolTable()
	a := symbols.Add("<A>")
	b := symbols.Add("<B>")
	mustNil(t, symbols.SetNumSubsymbols(a, 2))
	mustNil(t, symbols.SetNumSubsymbols(b, 2))

	g := NewGrammar(symbols)
	addRule(t, g, "<root> ::= <A>", 0.6, 0.4)
	addRule(t, g, "<A> ::= <B> <B>", 0.1, 0.2, 0.3, 0.4, 0.4, 0.3, 0.2, 0.1)
	addRule(t, g, "<B> ::= x", 0.7, 0.2)
	addRule(t, g, "<B> ::= y", 0.3, 0.8)

	treebank := NewTreebank()
	for _, words := range [][2]string{{"x", "y"}, {"y", "y"}, {"x", "x"}} {
		tree := &Tree{NewNode(RootId, 1,
			NewNode(a, 2,
				NewNode(b, 2, NewLeaf(words[0])),
				NewNode(b, 2, NewLeaf(words[1]))))}
		insideOutside(t, g, tree)
		treebank.Add(tree)
	}
	return g, treebank
}

func addRule(t *testing.T, g *Grammar, head string, probs ...float64) *Rule {
	h, err := ParseRuleHead(head)
	mustNil(t, err)
	rule := NewRuleFromHead(g.Symbols, h)
	table, err := NewTableFrom(probs, rule.Probs.Dims...)
	mustNil(t, err)
	rule.Probs = table
	mustNil(t, g.AddRule(rule))
	return rule
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

// insideOutside fills the inner and outer scores of tree
func insideOutside(t *testing.T, g *Grammar, tree *Tree) {
	t.Helper()
	inside(t, g, tree.Node)
	tree.Label.Outer = []float64{1}
	outside(t, g, tree.Node)
}

func lookup(t *testing.T, g *Grammar, head string) *Rule {
	t.Helper()
	h, err := ParseRuleHead(head)
	mustNil(t, err)
	rule, ok := g.Lookup(h)
	if !ok {
		t.Fatalf("rule %s not found", head)
	}
	return rule
}

func inside(t *testing.T, g *Grammar, node *Node) {
	name := func(n *Node) string { return g.Symbols.Name(n.Label.Symbol) }
	n := node.Label.NumSubsymbols
	inner := make([]float64, n)
	switch {
	case len(node.Children) == 1 && node.Children[0].IsLeaf():
		rule := lookup(t, g, name(node)+" ::= "+node.Children[0].Word)
		for p := 0; p < n; p++ {
			inner[p] = rule.Probs.At(p)
		}
	case len(node.Children) == 1:
		child := node.Children[0]
		inside(t, g, child)
		rule := lookup(t, g, name(node)+" ::= "+name(child))
		for p := 0; p < n; p++ {
			for c := 0; c < child.Label.NumSubsymbols; c++ {
				inner[p] += rule.Probs.At(p, c) * child.Label.Inner[c]
			}
		}
	default:
		left, right := node.Children[0], node.Children[1]
		inside(t, g, left)
		inside(t, g, right)
		rule := lookup(t, g, name(node)+" ::= "+name(left)+" "+name(right))
		for p := 0; p < n; p++ {
			for l := 0; l < left.Label.NumSubsymbols; l++ {
				for r := 0; r < right.Label.NumSubsymbols; r++ {
					inner[p] += rule.Probs.At(p, l, r) * left.Label.Inner[l] * right.Label.Inner[r]
				}
			}
		}
	}
	node.Label.Inner = inner
}

func outside(t *testing.T, g *Grammar, node *Node) {
	name := func(n *Node) string { return g.Symbols.Name(n.Label.Symbol) }
	n := node.Label.NumSubsymbols
	switch {
	case len(node.Children) == 1 && node.Children[0].IsLeaf():
		return
	case len(node.Children) == 1:
		child := node.Children[0]
		rule := lookup(t, g, name(node)+" ::= "+name(child))
		outer := make([]float64, child.Label.NumSubsymbols)
		for p := 0; p < n; p++ {
			for c := range outer {
				outer[c] += node.Label.Outer[p] * rule.Probs.At(p, c)
			}
		}
		child.Label.Outer = outer
		outside(t, g, child)
	default:
		left, right := node.Children[0], node.Children[1]
		rule := lookup(t, g, name(node)+" ::= "+name(left)+" "+name(right))
		leftOuter := make([]float64, left.Label.NumSubsymbols)
		rightOuter := make([]float64, right.Label.NumSubsymbols)
		for p := 0; p < n; p++ {
			for l := range leftOuter {
				for r := range rightOuter {
					prob := node.Label.Outer[p] * rule.Probs.At(p, l, r)
					leftOuter[l] += prob * right.Label.Inner[r]
					rightOuter[r] += prob * left.Label.Inner[l]
				}
			}
		}
		left.Label.Outer = leftOuter
		right.Label.Outer = rightOuter
		outside(t, g, left)
		outside(t, g, right)
	}
}

// scenarioFixture is a single tree (root (A w)) where A has inner
// [0.4, 0.1], outer [0.5, 0.5], the sentence score is 0.09 and the parent
// counts of A are [30, 10]
func scenarioFixture(t *testing.T) (*Grammar, *Treebank) {
	symbols := NewSymbolTable()
	a := symbols.Add("<A>")
	mustNil(t, symbols.SetNumSubsymbols(a, 2))
	g := NewGrammar(symbols)
	mustNil(t, g.SetParentCounts(map[int][]float64{a: {30, 10}}))

	node := NewNode(a, 2, NewLeaf("w"))
	mustNil(t, node.SetScores([]float64{0.4, 0.1}, []float64{0.5, 0.5}))
	root := NewNode(RootId, 1, node)
	mustNil(t, root.SetScores([]float64{0.09}, []float64{1}))
	return g, NewTreebank(&Tree{root})
}
