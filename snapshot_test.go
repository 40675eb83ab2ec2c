package splitmerge

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const scenarioSnapshot = `
symbols:
  - {name: <A>, subsymbols: 2}
rules:
  - {rule: "<root> ::= <A>", probs: [0.5, 0.5]}
  - {rule: "<A> ::= w", probs: [1, 1]}
counts:
  <A>: [30, 10]
trees:
  - symbol: <root>
    inner: [0.09]
    outer: [1]
    children:
      - symbol: <A>
        inner: [0.4, 0.1]
        outer: [0.5, 0.5]
        children: [{word: w}]
`

func TestSnapshotBuild(t *testing.T) {
	snapshot, err := ReadSnapshot(strings.NewReader(scenarioSnapshot))
	mustNil(t, err)
	g, treebank, err := snapshot.Build()
	mustNil(t, err)

	a, ok := g.Symbols.Id("<A>")
	if !ok || g.Symbols.NumSubsymbols(a) != 2 {
		t.Fatal("<A> with 2 subsymbols expected")
	}
	if got := lookup(t, g, "<root> ::= <A>").Probs.At(0, 1); got != 0.5 {
		t.Fatalf("%g != 0.5", got)
	}
	counts, err := g.ParentCounts()
	mustNil(t, err)
	if diff := cmp.Diff([]float64{30, 10}, counts[a]); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
	if treebank.Len() != 1 {
		t.Fatalf("%d trees", treebank.Len())
	}
	mustNil(t, treebank.Validate(g.Symbols))

	report, err := MergeGrammar(g, treebank, 1.0)
	mustNil(t, err)
	if len(report.Selected) != 1 || !near(report.Selected[0].Ratio, 0.325/0.09) {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := lookup(t, g, "<A> ::= w").Probs.At(0); !near(got, 1) {
		t.Fatalf("%g != 1", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	g, treebank := newFixture(t)
	mustNil(t, g.RecountParents(treebank))

	var buf bytes.Buffer
	mustNil(t, NewSnapshot(g, treebank).Write(&buf))
	snapshot, err := ReadSnapshot(&buf)
	mustNil(t, err)
	g2, treebank2, err := snapshot.Build()
	mustNil(t, err)

	if diff := cmp.Diff(g.Symbols.SubsymbolCounts(), g2.Symbols.SubsymbolCounts()); diff != "" {
		t.Fatalf("subsymbols (-want +got):\n%s", diff)
	}
	for _, rule := range g.AllRules() {
		head := rule.Head(g.Symbols).String()
		if diff := cmp.Diff(rule.Probs, lookup(t, g2, head).Probs); diff != "" {
			t.Fatalf("%s (-want +got):\n%s", head, diff)
		}
	}
	for i := range treebank.Trees() {
		want := treebank.Tree(i).Format(g.Symbols)
		if got := treebank2.Tree(i).Format(g2.Symbols); got != want {
			t.Fatalf("tree %d: '%s' != '%s'", i, got, want)
		}
		s1, err := treebank.Tree(i).SentenceScore()
		mustNil(t, err)
		s2, err := treebank2.Tree(i).SentenceScore()
		mustNil(t, err)
		if s1 != s2 {
			t.Fatalf("tree %d: score %v != %v", i, s2, s1)
		}
	}

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	mustNil(t, NewSnapshot(g, treebank).Save(path))
	loaded, err := LoadSnapshot(path)
	mustNil(t, err)
	if diff := cmp.Diff(snapshot, loaded); diff != "" {
		t.Fatalf("snapshot (-want +got):\n%s", diff)
	}
}

func TestSnapshotInvalid(t *testing.T) {
	for _, text := range []string{
		"symbols: [{name: A, subsymbols: 2}]",
		"symbols: [{name: <A>, subsymbols: 0}]",
		"rules: [{rule: \"<root> ::= <A>\", probs: [1]}]",
		"symbols: [{name: <A>, subsymbols: 2}]\nrules: [{rule: \"<root> ::= <A>\", probs: [1]}]",
		"counts: {<A>: [1]}",
		"symbols: [{name: <A>, subsymbols: 2}]\ncounts: {<A>: [-5, 10]}",
		"trees: [{symbol: <B>, children: [{word: w}]}]",
		"trees: [{symbol: <root>, children: [{symbol: <root>}]}]",
	} {
		snapshot, err := ReadSnapshot(strings.NewReader(text))
		mustNil(t, err)
		if _, _, err := snapshot.Build(); err == nil {
			t.Fatalf("'%s': err != nil expected", text)
		}
	}
}
