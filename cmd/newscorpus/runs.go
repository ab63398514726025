package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/pevans/newscorpus/ledger"
	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "Show past crawl runs",
		Long: `runs lists the most recent crawl runs from the ledger. Given a run id it
shows the outcome of every article in that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			store, err := ledger.NewStore(a.settings.LedgerDSN)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return listRuns(out, store, limit)
			}

			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}
			return showRun(out, store, runID)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to list")
	return cmd
}

func listRuns(out io.Writer, store *ledger.Store, limit int) error {
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-19s  %5s  %5s  %6s\n", "RUN", "STARTED", "FOUND", "SAVED", "FAILED")
	for _, run := range runs {
		fmt.Fprintf(out, "%-36s  %-19s  %5d  %5d  %6d\n",
			run.RunID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.URLsFound,
			run.Saved,
			run.Failed,
		)
	}
	return nil
}

func showRun(out io.Writer, store *ledger.Store, runID uuid.UUID) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}

	outcomes, err := store.Outcomes(runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run: %s\n", run.RunID)
	fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Finished: %s\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Max articles: %d\n", run.MaxArticles)
	for _, seed := range run.SeedURLs {
		fmt.Fprintf(out, "Seed: %s\n", seed)
	}
	if run.Error != nil {
		fmt.Fprintf(out, "Error: %s\n", *run.Error)
	}

	fmt.Fprintln(out)
	for _, o := range outcomes {
		line := fmt.Sprintf("  #%-3d %-6s %s", o.ArticleID, o.Status, o.URL)
		if o.ErrorKind != "" {
			line += fmt.Sprintf(" [%s]", o.ErrorKind)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
