// pcfg-merge runs the merge phase of split-merge grammar training on YAML
// snapshots of a grammar and its annotated treebank
package main

import (
	stdflag "flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
)

var (
	verbosity int
	logToFile bool
)

func allCommands() *commander.Command {
	cmd := &commander.Command{
		UsageLine: "pcfg-merge <command> [options]",
		Short:     "merges subsymbols of a latent-variable grammar",
		Subcommands: []*commander.Command{
			mergeCmd(),
			rankCmd(),
			weightsCmd(),
		},
		Flag: *flag.NewFlagSet("pcfg-merge", flag.ExitOnError),
	}
	cmd.Flag.IntVar(&verbosity, "v", 0, "Log verbosity")
	cmd.Flag.BoolVar(&logToFile, "logfile", false, "Write logs to files instead of stderr")
	return cmd
}

// setupLogging passes the logging options to glog, which reads them from the
// standard flag set
func setupLogging() {
	stdflag.Set("logtostderr", fmt.Sprint(!logToFile))
	stdflag.Set("v", fmt.Sprint(verbosity))
	stdflag.CommandLine.Parse(nil)
}

func main() {
	cmd := allCommands()
	err := cmd.Flag.Parse(os.Args[1:])
	if err != nil {
		fmt.Printf("**err**: %v\n", err)
		os.Exit(1)
	}
	setupLogging()
	defer glog.Flush()

	err = cmd.Dispatch(cmd.Flag.Args())
	if err != nil {
		glog.Flush()
		fmt.Printf("**err**: %v\n", err)
		os.Exit(1)
	}
}
