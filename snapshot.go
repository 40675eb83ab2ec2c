package splitmerge

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Snapshot is the YAML form of a grammar together with its annotated
// treebank, used to hand a merge round over between tools:
//
//	symbols:
//	  - {name: <NP>, subsymbols: 2}
//	rules:
//	  - {rule: "<root> ::= <NP>", probs: [0.5, 0.5]}
//	counts:
//	  <NP>: [30, 10]
//	trees:
//	  - symbol: <root>
//	    inner: [0.09]
//	    outer: [1]
//	    children:
//	      - {symbol: <NP>, inner: [0.4, 0.1], outer: [0.5, 0.5], children: [{word: dog}]}
type Snapshot struct {
	Symbols []SymbolEntry        `yaml:"symbols"`
	Rules   []RuleEntry          `yaml:"rules"`
	Counts  map[string][]float64 `yaml:"counts,omitempty"`
	Trees   []*NodeEntry         `yaml:"trees"`
}

// SymbolEntry declares a nonterminal and its number of subsymbols
type SymbolEntry struct {
	Name       string `yaml:"name"`
	Subsymbols int    `yaml:"subsymbols"`
}

// RuleEntry is a rule head with its row-major probability table
type RuleEntry struct {
	Rule  string    `yaml:"rule"`
	Probs []float64 `yaml:"probs,flow"`
}

// NodeEntry is a tree node. Leaves only have a word
type NodeEntry struct {
	Symbol   string       `yaml:"symbol,omitempty"`
	Word     string       `yaml:"word,omitempty"`
	Inner    []float64    `yaml:"inner,flow,omitempty"`
	Outer    []float64    `yaml:"outer,flow,omitempty"`
	Children []*NodeEntry `yaml:"children,omitempty"`
}

// ReadSnapshot decodes a snapshot from r
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	snapshot := &Snapshot{}
	if err := yaml.NewDecoder(r).Decode(snapshot); err != nil {
		return nil, errors.Wrap(err, "ReadSnapshot")
	}
	return snapshot, nil
}

// LoadSnapshot reads a snapshot file
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "LoadSnapshot")
	}
	defer f.Close()
	return ReadSnapshot(f)
}

// Write encodes the snapshot to w
func (s *Snapshot) Write(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(s); err != nil {
		return errors.Wrap(err, "Snapshot.Write")
	}
	return encoder.Close()
}

// Save writes the snapshot to a file
func (s *Snapshot) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "Snapshot.Save")
	}
	if err := s.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Build creates the grammar and the treebank described by the snapshot
func (s *Snapshot) Build() (*Grammar, *Treebank, error) {
	symbols := NewSymbolTable()
	for _, entry := range s.Symbols {
		name := Symbol(entry.Name)
		if !name.IsValid() || name.IsTerminal() {
			return nil, nil, errors.Errorf("Build: invalid nonterminal '%s'", entry.Name)
		}
		if err := symbols.SetNumSubsymbols(symbols.Add(entry.Name), entry.Subsymbols); err != nil {
			return nil, nil, errors.Wrapf(err, "Build: %s", entry.Name)
		}
	}

	g := NewGrammar(symbols)
	for _, entry := range s.Rules {
		head, err := ParseRuleHead(entry.Rule)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Build")
		}
		for _, symbol := range append([]Symbol{head.Left}, head.Right...) {
			if _, ok := symbols.Id(string(symbol)); !symbol.IsTerminal() && !ok {
				return nil, nil, errors.Errorf("Build: '%s' uses undeclared symbol %s", entry.Rule, symbol)
			}
		}
		rule := NewRuleFromHead(symbols, head)
		table, err := NewTableFrom(entry.Probs, rule.Probs.Dims...)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Build: '%s'", entry.Rule)
		}
		rule.Probs = table
		if err := g.AddRule(rule); err != nil {
			return nil, nil, errors.Wrap(err, "Build")
		}
	}

	if len(s.Counts) > 0 {
		counts := map[int][]float64{}
		for name, c := range s.Counts {
			id, ok := symbols.Id(name)
			if !ok {
				return nil, nil, errors.Errorf("Build: counts of undeclared symbol %s", name)
			}
			counts[id] = c
		}
		if err := g.SetParentCounts(counts); err != nil {
			return nil, nil, errors.Wrap(err, "Build")
		}
	}

	treebank := NewTreebank()
	for i, entry := range s.Trees {
		node, err := entry.build(symbols)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Build: tree %d", i)
		}
		treebank.Add(&Tree{node})
	}
	return g, treebank, nil
}

func (e *NodeEntry) build(symbols *SymbolTable) (*Node, error) {
	if len(e.Children) == 0 {
		if e.Word == "" {
			return nil, errors.New("leaf without word")
		}
		return NewLeaf(e.Word), nil
	}
	id, ok := symbols.Id(e.Symbol)
	if !ok {
		return nil, errors.Errorf("undeclared symbol '%s'", e.Symbol)
	}
	node := NewNode(id, symbols.NumSubsymbols(id))
	for _, child := range e.Children {
		childNode, err := child.build(symbols)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, childNode)
	}
	if e.Inner != nil || e.Outer != nil {
		if err := node.SetScores(e.Inner, e.Outer); err != nil {
			return nil, errors.Wrap(err, e.Symbol)
		}
	}
	return node, nil
}

// NewSnapshot converts a grammar and its treebank to a snapshot. Parent
// counts are only included while they are valid
func NewSnapshot(g *Grammar, treebank *Treebank) *Snapshot {
	s := &Snapshot{}
	for id := 1; id < g.Symbols.Len(); id++ {
		s.Symbols = append(s.Symbols, SymbolEntry{
			Name:       g.Symbols.Name(id),
			Subsymbols: g.Symbols.NumSubsymbols(id),
		})
	}
	for _, rule := range g.AllRules() {
		s.Rules = append(s.Rules, RuleEntry{
			Rule:  rule.Head(g.Symbols).String(),
			Probs: append([]float64(nil), rule.Probs.Data...),
		})
	}
	if counts, err := g.ParentCounts(); err == nil {
		s.Counts = map[string][]float64{}
		for id, c := range counts {
			s.Counts[g.Symbols.Name(id)] = append([]float64(nil), c...)
		}
	}
	for _, tree := range treebank.Trees() {
		s.Trees = append(s.Trees, newNodeEntry(g.Symbols, tree.Node))
	}
	return s
}

func newNodeEntry(symbols *SymbolTable, node *Node) *NodeEntry {
	if node.IsLeaf() {
		return &NodeEntry{Word: node.Word}
	}
	e := &NodeEntry{
		Symbol: symbols.Name(node.Label.Symbol),
		Inner:  node.Label.Inner,
		Outer:  node.Label.Outer,
	}
	for _, child := range node.Children {
		e.Children = append(e.Children, newNodeEntry(symbols, child))
	}
	return e
}
