package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/restexec/packages/history"
	"github.com/abdul-hamid-achik/restexec/packages/output"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List exchanges recorded with --history",
	Long: `List the exchanges recorded in a history database, newest first.

Examples:
  restexec history --db .restexec.db
  restexec history --db .restexec.db --limit 50 -v
  restexec history --db .restexec.db --clear`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var (
	historyDBFlag    string
	historyLimitFlag int
	historyClearFlag bool
	historyVerbose   bool
)

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("RESTEXEC_HISTORY", ""), "History database (env: RESTEXEC_HISTORY)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", 20, "Number of entries to show, 0 for all")
	historyCmd.Flags().BoolVar(&historyClearFlag, "clear", false, "Delete every recorded exchange")
	historyCmd.Flags().BoolVarP(&historyVerbose, "verbose", "v", false, "Show error details")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	if historyDBFlag == "" {
		return withExitCode(ExitUsageError, errors.New("--db is required"))
	}

	store, err := history.Open(historyDBFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	if historyClearFlag {
		removed, err := store.Clear()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d exchanges\n", removed)
		return nil
	}

	entries, err := store.List(historyLimitFlag)
	if err != nil {
		return err
	}

	output.NewConsoleFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithVerbose(historyVerbose),
		output.WithNoColor(getEnvBool("RESTEXEC_NO_COLOR", false)),
	).FormatHistory(entries)
	return nil
}
