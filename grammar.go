package splitmerge

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Grammar consists of latent-annotated binary, unary and lexical rules over
// a symbol table
type Grammar struct {
	Symbols *SymbolTable

	rules [3][]*Rule
	index map[ruleKey]*Rule

	// version increases every time the rule set or the subsymbol layout
	// changes
	version uint64
	counts  parentCounts
}

// parentCounts caches, for every parent symbol, how often each subsymbol
// occurred as the left hand side of a rule
type parentCounts struct {
	// Grammar version the counts were computed for
	version uint64
	valid   bool
	data    map[int][]float64
}

// NewGrammar creates an empty grammar over symbols
func NewGrammar(symbols *SymbolTable) *Grammar {
	return &Grammar{
		Symbols: symbols,
		index:   map[ruleKey]*Rule{},
	}
}

// AddRule adds a rule into grammar. It fails if the rule already exists or
// its table does not match the symbol table
func (g *Grammar) AddRule(rule *Rule) error {
	if err := rule.check(g.Symbols); err != nil {
		return errors.Wrap(err, "AddRule")
	}
	key := rule.key()
	if _, ok := g.index[key]; ok {
		return errors.Errorf("AddRule: duplicated rule %s", rule.Head(g.Symbols))
	}
	g.index[key] = rule
	g.rules[rule.Kind] = append(g.rules[rule.Kind], rule)
	g.touch()
	return nil
}

// Rules returns the rules of kind. The slice must not be modified
func (g *Grammar) Rules(kind RuleKind) []*Rule {
	return g.rules[kind]
}

// AllRules returns binary, unary and lexical rules in that order
func (g *Grammar) AllRules() []*Rule {
	rules := []*Rule{}
	for _, r := range g.rules {
		rules = append(rules, r...)
	}
	return rules
}

// Lookup finds the rule with the same identity as head
func (g *Grammar) Lookup(head *RuleHead) (*Rule, bool) {
	parent, ok := g.Symbols.Id(string(head.Left))
	if !ok {
		return nil, false
	}
	key := ruleKey{parent: parent}
	switch {
	case len(head.Right) == 2:
		key.kind = Binary
		left, okLeft := g.Symbols.Id(string(head.Right[0]))
		right, okRight := g.Symbols.Id(string(head.Right[1]))
		if !okLeft || !okRight {
			return nil, false
		}
		key.left, key.right = left, right
	case head.Right[0].IsTerminal():
		key.kind = Lexical
		key.word = string(head.Right[0])
	default:
		key.kind = Unary
		child, ok := g.Symbols.Id(string(head.Right[0]))
		if !ok {
			return nil, false
		}
		key.left = child
	}
	rule, ok := g.index[key]
	return rule, ok
}

// Version returns a number that changes whenever the rules or the subsymbol
// layout change
func (g *Grammar) Version() uint64 {
	return g.version
}

// touch marks the grammar as modified, invalidating the parent counts
func (g *Grammar) touch() {
	g.version++
	g.counts.valid = false
}

// Validate checks every rule against the symbol table
func (g *Grammar) Validate() error {
	for _, rule := range g.AllRules() {
		if err := rule.check(g.Symbols); err != nil {
			return err
		}
	}
	return nil
}

// InvalidateCounts drops the parent counts. They must be recomputed before
// the next merge round
func (g *Grammar) InvalidateCounts() {
	g.counts = parentCounts{}
}

// ParentCounts returns the parent counts. It fails with ErrStaleCounts if
// the grammar changed since they were computed
func (g *Grammar) ParentCounts() (map[int][]float64, error) {
	if !g.counts.valid || g.counts.version != g.version {
		return nil, ErrStaleCounts
	}
	return g.counts.data, nil
}

// SetParentCounts stores parent counts computed by an external estimator for
// the current version of the grammar
func (g *Grammar) SetParentCounts(counts map[int][]float64) error {
	for symbol, c := range counts {
		if !g.Symbols.Contains(symbol) {
			return errors.Wrapf(ErrInconsistent, "SetParentCounts: unknown symbol %d", symbol)
		}
		if len(c) != g.Symbols.NumSubsymbols(symbol) {
			return errors.Wrapf(
				ErrInconsistent,
				"SetParentCounts: %s has %d subsymbols, %d counts found",
				g.Symbols.Name(symbol),
				g.Symbols.NumSubsymbols(symbol),
				len(c))
		}
		for j, v := range c {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(
					ErrInconsistent,
					"SetParentCounts: %s has count %g at subsymbol %d",
					g.Symbols.Name(symbol),
					v,
					j)
			}
		}
	}
	g.counts = parentCounts{version: g.version, valid: true, data: counts}
	return nil
}

// RecountParents recomputes the parent counts as the posterior expected
// number of occurrences of each subsymbol in treebank:
//
//	count[A][i] = sum over nodes of A: inner[i] * outer[i] / P(sentence)
func (g *Grammar) RecountParents(treebank *Treebank) error {
	if err := treebank.Validate(g.Symbols); err != nil {
		return errors.Wrap(err, "RecountParents")
	}
	counts := map[int][]float64{}
	for id := 1; id < g.Symbols.Len(); id++ {
		counts[id] = make([]float64, g.Symbols.NumSubsymbols(id))
	}
	for i, tree := range treebank.Trees() {
		sentenceScore, err := tree.SentenceScore()
		if err != nil {
			return errors.Wrapf(err, "RecountParents: tree %d", i)
		}
		if sentenceScore <= 0 {
			return errors.Wrapf(ErrDegenerate, "RecountParents: tree %d has score %g", i, sentenceScore)
		}
		err = tree.Walk(func(node *Node, path []int) error {
			if node.IsLeaf() || node.Label.Symbol == RootId {
				return nil
			}
			c := counts[node.Label.Symbol]
			for j := range c {
				c[j] += node.Label.Inner[j] * node.Label.Outer[j] / sentenceScore
			}
			return nil
		})
		if err != nil {
			return errors.Wrapf(err, "RecountParents: tree %d", i)
		}
	}
	return g.SetParentCounts(counts)
}

// Normalize makes sure that, for every parent subsymbol, the probabilities of
// all rules from that parent sum to 1.0. Parent subsymbols without any mass
// are left untouched
func (g *Grammar) Normalize() {
	sums := map[int][]float64{}
	rules := g.AllRules()
	for _, rule := range rules {
		n := rule.Probs.Dims[0]
		if sums[rule.Parent] == nil {
			sums[rule.Parent] = make([]float64, n)
		}
		stride := len(rule.Probs.Data) / n
		for p := 0; p < n; p++ {
			sums[rule.Parent][p] += floats.Sum(rule.Probs.Data[p*stride : (p+1)*stride])
		}
	}
	for _, rule := range rules {
		n := rule.Probs.Dims[0]
		stride := len(rule.Probs.Data) / n
		for p := 0; p < n; p++ {
			sum := sums[rule.Parent][p]
			if sum == 0 || math.IsNaN(sum) {
				continue
			}
			floats.Scale(1/sum, rule.Probs.Data[p*stride:(p+1)*stride])
		}
	}
	glog.V(2).Infof("normalized %d rules", len(rules))
}

// applyMerge replaces the tables of all rules and the subsymbol layout. The
// caller must have checked that every collapse succeeds
func (g *Grammar) applyMerge(tables map[*Rule]*Table, numSubsymbols []int) {
	for rule, table := range tables {
		rule.Probs = table
	}
	if err := g.Symbols.SetSubsymbolCounts(numSubsymbols); err != nil {
		// numSubsymbols was validated while planning the round
		panic(err)
	}
	g.touch()
	g.InvalidateCounts()
}

// String prints all rules of the grammar, one per line
func (g *Grammar) String() string {
	lines := []string{}
	for _, rule := range g.AllRules() {
		lines = append(lines, fmt.Sprintf("%s %v", rule.Head(g.Symbols), rule.Probs.Data))
	}
	return strings.Join(lines, "\n")
}
