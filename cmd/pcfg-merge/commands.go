package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
	"github.com/pkg/errors"

	"github.com/ling0322/splitmerge"
)

var (
	configFile    string
	inputFile     string
	outputFile    string
	mergeRate     float64
	workers       int
	weightFormula string
	noEarlyStop   bool
	normalize     bool
	topN          int
)

// Snapshots and tables go to stdout, round reports to stderr so that the
// merged snapshot can be redirected to a file
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// loadJob reads the configuration and the input snapshot. Flags given on
// the command line override the configuration file
func loadJob(cmd *commander.Command) (splitmerge.MergeConfig, *splitmerge.Grammar, *splitmerge.Treebank, error) {
	config := splitmerge.DefaultConfig()
	if configFile != "" {
		var err error
		if config, err = splitmerge.LoadConfig(configFile); err != nil {
			return config, nil, nil, err
		}
	}
	cmd.Flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rate":
			config.MergeRate = mergeRate
		case "workers":
			config.Workers = workers
		case "formula":
			config.WeightFormula = splitmerge.WeightFormula(weightFormula)
		case "noearlystop":
			config.EarlyStop.Enabled = !noEarlyStop
		case "normalize":
			config.NormalizeAfterMerge = normalize
		}
	})
	if err := config.Validate(); err != nil {
		return config, nil, nil, err
	}

	if inputFile == "" {
		return config, nil, nil, errors.New("no input snapshot, use -in")
	}
	snapshot, err := splitmerge.LoadSnapshot(inputFile)
	if err != nil {
		return config, nil, nil, err
	}
	g, treebank, err := snapshot.Build()
	return config, g, treebank, err
}

func addJobFlags(cmd *commander.Command) {
	cmd.Flag.StringVar(&configFile, "c", "", "Optional - Merge configuration file (YAML)")
	cmd.Flag.StringVar(&inputFile, "in", "", "Input snapshot file")
	cmd.Flag.IntVar(&workers, "workers", 0, "Number of concurrent workers (0 = GOMAXPROCS)")
	cmd.Flag.StringVar(&weightFormula, "formula", "symmetric", "Merge weight formula [symmetric, legacy]")
}

func runMerge(cmd *commander.Command, args []string) error {
	config, g, treebank, err := loadJob(cmd)
	if err != nil {
		return err
	}
	report, err := splitmerge.NewMerger(config).MergeGrammar(g, treebank, config.MergeRate)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "%d candidates, %d merges requested, %d merged\n",
		report.Candidates,
		report.Requested,
		len(report.Selected))
	for _, c := range report.Selected {
		fmt.Fprintf(stderr, "  %s (%d,%d)\t%g\n", g.Symbols.Name(c.Symbol), c.Pair, c.Pair+1, c.Ratio)
	}

	if outputFile == "" {
		return splitmerge.NewSnapshot(g, treebank).Write(stdout)
	}
	return splitmerge.NewSnapshot(g, treebank).Save(outputFile)
}

func mergeCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       runMerge,
		UsageLine: "merge -in <snapshot> [-out <snapshot>] [options]",
		Short:     "runs one merge round",
		Long: `
runs one merge round on a snapshot and writes the merged snapshot. Inner and
outer scores are dropped from the output trees.

	$ pcfg-merge merge -in split.yaml -out merged.yaml -rate 0.5

`,
		Flag: *flag.NewFlagSet("merge", flag.ExitOnError),
	}
	addJobFlags(cmd)
	cmd.Flag.StringVar(&outputFile, "out", "", "Output snapshot file (default stdout)")
	cmd.Flag.Float64Var(&mergeRate, "rate", 0.5, "Fraction of candidate pairs to merge")
	cmd.Flag.BoolVar(&noEarlyStop, "noearlystop", false, "Do not stop at the first candidate with ratio below the threshold")
	cmd.Flag.BoolVar(&normalize, "normalize", false, "Normalize rule probabilities after merging")
	return cmd
}

func runRank(cmd *commander.Command, args []string) error {
	config, g, treebank, err := loadJob(cmd)
	if err != nil {
		return err
	}
	if _, err := g.ParentCounts(); err != nil {
		if err := g.RecountParents(treebank); err != nil {
			return err
		}
	}
	weights, err := splitmerge.ComputeMergeWeights(g, config.WeightFormula)
	if err != nil {
		return err
	}
	ranker := &splitmerge.Ranker{
		Grammar:  g,
		Treebank: treebank,
		Weights:  weights,
		Workers:  config.Workers,
	}
	candidates, err := ranker.Rank()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintln(w, "rank\tsymbol\tpair\tratio\tlog ratio")
	for i, c := range candidates {
		if topN > 0 && i >= topN {
			break
		}
		fmt.Fprintf(w, "%d\t%s\t(%d,%d)\t%g\t%g\n",
			i+1,
			g.Symbols.Name(c.Symbol),
			c.Pair,
			c.Pair+1,
			c.Ratio,
			c.LogRatio)
	}
	return w.Flush()
}

func rankCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       runRank,
		UsageLine: "rank -in <snapshot> [options]",
		Short:     "prints the ranked merge candidates",
		Long: `
prints every mergeable subsymbol pair with its estimated treebank likelihood
ratio, best first

	$ pcfg-merge rank -in split.yaml -n 20

`,
		Flag: *flag.NewFlagSet("rank", flag.ExitOnError),
	}
	addJobFlags(cmd)
	cmd.Flag.IntVar(&topN, "n", 0, "Only print the first n candidates")
	return cmd
}

func runWeights(cmd *commander.Command, args []string) error {
	config, g, treebank, err := loadJob(cmd)
	if err != nil {
		return err
	}
	if _, err := g.ParentCounts(); err != nil {
		if err := g.RecountParents(treebank); err != nil {
			return err
		}
	}
	weights, err := splitmerge.ComputeMergeWeights(g, config.WeightFormula)
	if err != nil {
		return err
	}
	for symbol := 1; symbol < len(weights); symbol++ {
		fmt.Fprintf(stdout, "%s\t%v\n", g.Symbols.Name(symbol), weights[symbol])
	}
	return nil
}

func weightsCmd() *commander.Command {
	cmd := &commander.Command{
		Run:       runWeights,
		UsageLine: "weights -in <snapshot> [options]",
		Short:     "prints the merge weight of every subsymbol",
		Flag:      *flag.NewFlagSet("weights", flag.ExitOnError),
	}
	addJobFlags(cmd)
	return cmd
}
