package splitmerge

import (
	"testing"

	"github.com/pkg/errors"
)

func TestParseRuleHead(t *testing.T) {
	// TestCase-1: binary rule
	h, err := ParseRuleHead("<S> ::= <NP>   <VP>")
	if err != nil {
		t.Fatal(err)
	}
	expected := "<S> ::= <NP> <VP>"
	if h.String() != expected {
		t.Fatalf("'%s' != '%s'", h.String(), expected)
	}

	// TestCase-2: unary and lexical rules
	h, err = ParseRuleHead("<NP> ::= <NN>")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Right) != 1 || h.Right[0].IsTerminal() {
		t.Fatalf("unary rule expected: %s", h)
	}
	h, err = ParseRuleHead("<NN> ::= dog")
	if err != nil {
		t.Fatal(err)
	}
	if len(h.Right) != 1 || !h.Right[0].IsTerminal() {
		t.Fatalf("lexical rule expected: %s", h)
	}

	// Failed cases
	for _, text := range []string{
		"<S> ::= <NP",
		"<S> ::= <NP> dog",
		"dog ::= <NP>",
		"<S> ::= ",
		"<S> ::= <A> <B> <C>",
		"<S> <NP>",
	} {
		if _, err := ParseRuleHead(text); err == nil {
			t.Fatalf("'%s': err != nil expected", text)
		}
	}
}

func TestNewRuleFromHead(t *testing.T) {
	symbols := NewSymbolTable()
	np := symbols.Add("<NP>")
	mustNil(t, symbols.SetNumSubsymbols(np, 4))

	for _, c := range []struct {
		head string
		kind RuleKind
		dims []int
	}{
		{"<S> ::= <NP> <VP>", Binary, []int{1, 4, 1}},
		{"<NP> ::= <NN>", Unary, []int{4, 1}},
		{"<NP> ::= dogs", Lexical, []int{4}},
	} {
		h, err := ParseRuleHead(c.head)
		mustNil(t, err)
		rule := NewRuleFromHead(symbols, h)
		if rule.Kind != c.kind {
			t.Fatalf("%s: %s != %s", c.head, rule.Kind, c.kind)
		}
		if len(rule.Probs.Dims) != len(c.dims) {
			t.Fatalf("%s: dims %v != %v", c.head, rule.Probs.Dims, c.dims)
		}
		for i := range c.dims {
			if rule.Probs.Dims[i] != c.dims[i] {
				t.Fatalf("%s: dims %v != %v", c.head, rule.Probs.Dims, c.dims)
			}
		}
		if rule.Head(symbols).String() != c.head {
			t.Fatalf("'%s' != '%s'", rule.Head(symbols), c.head)
		}
	}
}

func TestRuleCheck(t *testing.T) {
	g, _ := newFixture(t)
	rule := lookup(t, g, "<A> ::= <B> <B>")
	mustNil(t, rule.check(g.Symbols))

	b, _ := g.Symbols.Id("<B>")
	mustNil(t, g.Symbols.SetNumSubsymbols(b, 4))
	if err := rule.check(g.Symbols); errors.Cause(err) != ErrInconsistent {
		t.Fatalf("ErrInconsistent expected, got %v", err)
	}
}

func TestRuleMergeUntouched(t *testing.T) {
	g, _ := newFixture(t)
	rule := lookup(t, g, "<B> ::= x")
	a, _ := g.Symbols.Id("<A>")
	table, touched, err := rule.merge(map[int][]int{a: {0}}, nil)
	mustNil(t, err)
	if touched || table != rule.Probs {
		t.Fatal("rule without merged symbols must be untouched")
	}
}
