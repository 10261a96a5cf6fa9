// Package cmd provides the command-line interface of the coherence simulator.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

const usage = `This simulator supports 3 syntaxes:
  1. Standard: coherence <PROTOCOL> <BENCHMARK> <CACHE_SIZE> <ASSOCIATIVITY> <BLOCK_SIZE>
  2. Use default cache size, associativity and block size: coherence <PROTOCOL> <BENCHMARK>
  3. Optimized MESI: coherence <PROTOCOL> <BENCHMARK> <CACHE_SIZE> <ASSOCIATIVITY> <BLOCK_SIZE> true
`

var opts options

var exitCode int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "coherence <PROTOCOL> <BENCHMARK> " +
		"[<CACHE_SIZE> <ASSOCIATIVITY> <BLOCK_SIZE> [true]]",
	Short: "Simulate the MESI and Dragon cache coherence protocols.",
	Long: `Coherence replays the memory traces of a four-core benchmark on ` +
		`private set-associative caches kept coherent by the MESI or the ` +
		`Dragon protocol, and reports the cycles, misses and bus traffic ` +
		`of every core.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		opts.changed = func(name string) bool {
			return cmd.Flags().Changed(name)
		}

		exitCode = simulate(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
	},
}

func init() {
	flags := rootCmd.Flags()

	flags.StringVar(&opts.traceDir, "trace-dir", ".",
		"Directory that holds the <benchmark>_four trace directories.")
	flags.StringVar(&opts.resultDir, "result-dir", "results",
		"Directory the result logs are written to.")
	flags.StringVar(&opts.sqlitePath, "sqlite", "",
		"Record the results in this SQLite database.")
	flags.StringVar(&opts.analysisCSV, "analysis", "",
		"Append a summary row to this CSV file.")
	flags.StringVar(&opts.opLog, "op-log", "",
		"Log every cache access, in completion order, to this CSV file.")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Serve a web page that shows the progress of the cores.")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitoring server. 0 picks a random port.")
	flags.BoolVar(&opts.openBrowser, "open-browser", false,
		"Open the monitoring page in a browser.")
}

// Execute runs the simulator with the command-line arguments and exits the
// process, flushing the recorders on the way out.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln("ERROR:", err)
		atexit.Exit(1)
	}

	atexit.Exit(exitCode)
}
