package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bit2swaz/bulkload/internal/bench"
	"github.com/bit2swaz/bulkload/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "bulkload <count> <block-size>",
	Short: "bulkload - batched insert micro-benchmark",
	Long: `bulkload fills the contacts table with <count> generated records, committing
<block-size> records per transaction through one prepared INSERT per chunk,
then looks up the last record and reports how long both phases took.

The schema is created only when the database file does not exist yet.`,
	Example:       "  bulkload 100000 1000\n  bulkload --driver postgres --dsn postgres://localhost/bench 10000 500",
	Args:          cobra.ExactArgs(2),
	RunE:          runLoad,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(bench.ExitCode(err))
	}
}

func main() {
	Execute()
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(migrateCmd)
}
